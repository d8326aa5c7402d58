package memory

/*
 * nemu-mips32 - Host-backed RAM devices
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

const pageSize = 4096

// RAM is a flat little-endian memory device. Both the boot BRAM and
// main DDR are instances of it. Every page is host-mappable, so the
// CPU's soft-MMU can read and write it without a bus round trip.
type RAM struct {
	name string
	base uint32
	data []byte
}

// NewRAM creates a RAM device of size bytes at physical address base.
func NewRAM(name string, base, size uint32) *RAM {
	return &RAM{name: name, base: base, data: make([]byte, size)}
}

func (r *RAM) Name() string {
	return r.name
}

// Base returns the physical address the device is registered at.
func (r *RAM) Base() uint32 {
	return r.base
}

// Size returns the size of the memory in bytes.
func (r *RAM) Size() uint32 {
	return uint32(len(r.data))
}

// Read a little-endian value, zero-extended to 32 bits. Sizes up to 4
// bytes are honored byte-wise; the unaligned word loads issue 3-byte
// accesses.
func (r *RAM) Read(offset uint32, size int) uint32 {
	var v uint32
	for i := 0; i < size; i++ {
		v |= uint32(r.data[offset+uint32(i)]) << (8 * i)
	}
	return v
}

// Write the low size bytes of value, little-endian.
func (r *RAM) Write(offset uint32, size int, value uint32) {
	for i := 0; i < size; i++ {
		r.data[offset+uint32(i)] = byte(value >> (8 * i))
	}
}

// MapPage returns the host bytes backing the 4 KiB page at pageOffset.
func (r *RAM) MapPage(pageOffset uint32, _ int) []byte {
	if pageOffset+pageSize > uint32(len(r.data)) {
		return nil
	}
	return r.data[pageOffset : pageOffset+pageSize]
}

// WriteBytes copies an image blob into memory. Used by the loader.
func (r *RAM) WriteBytes(offset uint32, b []byte) {
	copy(r.data[offset:], b)
}
