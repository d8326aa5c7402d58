/*
   Monitor: machine bring-up and guest image loading.

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
	"debug/elf"
	"fmt"
	"log/slog"
	"os"

	"github.com/wierton/nemu-mips32/config/machine"
	"github.com/wierton/nemu-mips32/emu/cpu"
	"github.com/wierton/nemu-mips32/emu/device"
	"github.com/wierton/nemu-mips32/emu/memory"
	"github.com/wierton/nemu-mips32/emu/rtc"
	"github.com/wierton/nemu-mips32/emu/serial"
	"github.com/wierton/nemu-mips32/util/debug"
)

// The uImage blob lands this far into DDR.
const uimageOffset = 24 * 1024 * 1024

// Options selects what to load into the fresh machine.
type Options struct {
	Image       string // Flat binary, placed at the entry point
	Elf         string // ELF executable; entry comes from its header
	Kernel      string // uImage blob, placed at DDR + 24 MiB
	Interactive bool   // Console owns the host terminal
}

// Monitor owns the machine configuration and its devices.
type Monitor struct {
	cfg    *machine.Config
	rams   []*memory.RAM
	serial *serial.Serial
	ddr    *memory.RAM
}

// paddrOf strips the kseg0/kseg1 window from an address the loader was
// given. Load addresses in mapped segments are taken as physical.
func paddrOf(vaddr uint32) uint32 {
	if vaddr >= 0x80000000 && vaddr < 0xc0000000 {
		return vaddr & 0x1fffffff
	}
	return vaddr
}

// Initialize builds the bus from the machine description, loads the
// guest, and resets the CPU at the entry point.
func Initialize(cfg *machine.Config, opts Options) (*Monitor, error) {
	m := &Monitor{cfg: cfg}

	device.Reset()
	for _, region := range cfg.Memory {
		ram := memory.NewRAM(region.Name, region.Base, region.Size)
		if err := device.Register(region.Base, region.Base+region.Size, ram); err != nil {
			return nil, err
		}
		m.rams = append(m.rams, ram)
		if m.ddr == nil || ram.Base() < m.ddr.Base() {
			m.ddr = ram
		}
	}
	if cfg.RTC != nil {
		if err := device.Register(*cfg.RTC, *cfg.RTC+rtc.Size, rtc.New()); err != nil {
			return nil, err
		}
	}
	if cfg.Serial != nil {
		m.serial = serial.New()
		if err := device.Register(*cfg.Serial, *cfg.Serial+serial.Size, m.serial); err != nil {
			return nil, err
		}
	}

	if cfg.DebugFile != "" {
		if err := debug.SetFile(cfg.DebugFile); err != nil {
			return nil, err
		}
	}
	if err := cpu.SetDebugOption(cfg.Debug); err != nil {
		return nil, err
	}
	if cfg.DecodeCache != nil {
		cpu.SetDecodeCache(*cfg.DecodeCache)
	}
	cpu.SetSegment(cfg.Segment)
	cpu.SetFrames(cfg.Frames)

	entry := cfg.Entry
	switch {
	case opts.Elf != "":
		elfEntry, err := m.loadELF(opts.Elf)
		if err != nil {
			return nil, err
		}
		entry = elfEntry
	case opts.Image != "":
		if err := m.loadImage(opts.Image, entry); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("nothing to run: need an image or an elf file")
	}

	if opts.Kernel != "" {
		if m.ddr == nil {
			return nil, fmt.Errorf("uImage needs a DDR memory region")
		}
		base := m.ddr.Base() + uimageOffset
		if err := m.loadImage(opts.Kernel, base); err != nil {
			return nil, err
		}
		if m.serial != nil {
			// Hand the boot command to the guest's loader console.
			m.serial.Enqueue(fmt.Sprintf("bootm 0x%08x\n", 0xa0000000+base))
		}
	}

	cpu.Initialize(entry)
	if m.serial != nil {
		m.serial.Start(opts.Interactive)
	}
	slog.Info("Machine initialized", "entry", fmt.Sprintf("%08x", entry))
	return m, nil
}

// Shutdown releases host resources held by devices.
func (m *Monitor) Shutdown() {
	if m.serial != nil {
		m.serial.Stop()
	}
}

// ramAt finds the RAM region covering [paddr, paddr+size).
func (m *Monitor) ramAt(paddr, size uint32) (*memory.RAM, error) {
	for _, ram := range m.rams {
		if paddr >= ram.Base() && paddr+size <= ram.Base()+ram.Size() {
			return ram, nil
		}
	}
	return nil, fmt.Errorf("load address %08x+%x outside any memory region", paddr, size)
}

func (m *Monitor) loadImage(name string, vaddr uint32) error {
	buf, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("image %s: %w", name, err)
	}
	paddr := paddrOf(vaddr)
	ram, err := m.ramAt(paddr, uint32(len(buf)))
	if err != nil {
		return err
	}
	ram.WriteBytes(paddr-ram.Base(), buf)
	slog.Info("Loaded image", "file", name, "addr", fmt.Sprintf("%08x", vaddr),
		"size", len(buf))
	return nil
}

func (m *Monitor) loadELF(name string) (uint32, error) {
	f, err := elf.Open(name)
	if err != nil {
		return 0, fmt.Errorf("elf %s: %w", name, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_MIPS {
		return 0, fmt.Errorf("elf %s: not a MIPS32 executable", name)
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		buf := make([]byte, prog.Memsz)
		if prog.Filesz > 0 {
			if _, err := prog.ReadAt(buf[:prog.Filesz], 0); err != nil {
				return 0, fmt.Errorf("elf %s: %w", name, err)
			}
		}
		paddr := paddrOf(uint32(prog.Vaddr))
		ram, err := m.ramAt(paddr, uint32(prog.Memsz))
		if err != nil {
			return 0, err
		}
		ram.WriteBytes(paddr-ram.Base(), buf)
	}
	slog.Info("Loaded ELF", "file", name, "entry", fmt.Sprintf("%08x", uint32(f.Entry)))
	return uint32(f.Entry), nil
}
