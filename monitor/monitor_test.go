/*
   Monitor bring-up and loader tests.

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

package monitor

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/wierton/nemu-mips32/config/machine"
	"github.com/wierton/nemu-mips32/emu/cpu"
)

func testConfig() *machine.Config {
	return &machine.Config{
		Entry: 0xbfc00000,
		Memory: []machine.MemRegion{
			{Name: "DDR", Base: 0, Size: 64 * 1024 * 1024},
			{Name: "BRAM", Base: 0x1fc00000, Size: 1024 * 1024},
		},
	}
}

func writeImage(t *testing.T, words ...uint32) string {
	t.Helper()
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	name := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(name, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

// A flat image lands behind the reset vector and executes.
func TestLoadFlatImage(t *testing.T) {
	img := writeImage(t,
		0x3c081234, // lui $t0, 0x1234
		0x35085678, // ori $t0, $t0, 0x5678
		0x42000020, // wait
	)
	mon, err := Initialize(testConfig(), Options{Image: img})
	if err != nil {
		t.Fatal(err)
	}
	defer mon.Shutdown()

	if v, ok := cpu.Peek(0xbfc00000); !ok || v != 0x3c081234 {
		t.Errorf("image word got: %08x expected: 3c081234", v)
	}
	cpu.Execute(2)
	if got := cpu.Register(8); got != 0x12345678 {
		t.Errorf("loaded program result got: %08x expected: 12345678", got)
	}
}

// The uImage blob lands 24 MiB into DDR.
func TestLoadKernelImage(t *testing.T) {
	img := writeImage(t, 0x42000020) // wait
	kern := writeImage(t, 0xdeadbeef, 0x0badf00d)
	mon, err := Initialize(testConfig(), Options{Image: img, Kernel: kern})
	if err != nil {
		t.Fatal(err)
	}
	defer mon.Shutdown()

	if v, ok := cpu.Peek(0xa0000000 + 24*1024*1024); !ok || v != 0xdeadbeef {
		t.Errorf("uImage word got: %08x expected: deadbeef", v)
	}
}

// Without anything to run, bring-up fails.
func TestNothingToRun(t *testing.T) {
	if _, err := Initialize(testConfig(), Options{}); err == nil {
		t.Error("empty options accepted")
	}
}

// An image that does not fit any region is rejected.
func TestImageOutsideMemory(t *testing.T) {
	img := writeImage(t, 1, 2, 3)
	cfg := testConfig()
	cfg.Entry = 0x30000000 // no RAM there
	if _, err := Initialize(cfg, Options{Image: img}); err == nil {
		t.Error("image outside memory accepted")
	}
}
