/*
   nemu-mips32 - Memory bus device interfaces and registry.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package device

import "fmt"

// Device is anything that owns a physical address range on the bus.
// Reads and writes are little-endian, size is 1, 2 or 4 bytes, and
// values are zero-extended to 32 bits. A device implements only the
// capabilities it has; the CPU treats a missing capability on an
// accessed address as a fatal bus error, not a guest exception.
type Device interface {
	Name() string
}

// Reader is implemented by devices that accept loads.
type Reader interface {
	Read(offset uint32, size int) uint32
}

// Writer is implemented by devices that accept stores.
type Writer interface {
	Write(offset uint32, size int, value uint32)
}

// PageMapper is implemented by host-backed RAM-like devices. MapPage
// returns the host bytes for the 4 KiB page at pageOffset, or nil if
// that page cannot be mapped and accesses must go through Read/Write.
// Pages returned here are eligible for the CPU's soft-MMU cache.
type PageMapper interface {
	MapPage(pageOffset uint32, flags int) []byte
}

// Range binds a device to its half-open physical address range.
type Range struct {
	Start uint32
	End   uint32
	Dev   Device
}

var devices []*Range

// Register adds a device covering [start, end) to the bus.
// Ranges must not overlap.
func Register(start, end uint32, dev Device) error {
	if end <= start {
		return fmt.Errorf("device %s: empty range %08x-%08x", dev.Name(), start, end)
	}
	for _, r := range devices {
		if start < r.End && r.Start < end {
			return fmt.Errorf("device %s: range %08x-%08x overlaps %s",
				dev.Name(), start, end, r.Dev.Name())
		}
	}
	devices = append(devices, &Range{Start: start, End: end, Dev: dev})
	return nil
}

// Find returns the device range covering the physical address, or nil.
func Find(paddr uint32) *Range {
	for _, r := range devices {
		if paddr >= r.Start && paddr < r.End {
			return r
		}
	}
	return nil
}

// Reset drops all registered devices. Used at configuration time and
// between tests.
func Reset() {
	devices = nil
}
