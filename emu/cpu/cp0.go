/*
   CP0: privileged register file and exception engine.

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

package cpu

import (
	"github.com/wierton/nemu-mips32/util/debug"
)

func (s *cp0Status) pack() uint32 {
	v := uint32(s.CU&0xf) << 28
	if s.RP {
		v |= 1 << 27
	}
	if s.RE {
		v |= 1 << 25
	}
	if s.BEV {
		v |= 1 << 22
	}
	if s.TS {
		v |= 1 << 21
	}
	if s.SR {
		v |= 1 << 20
	}
	if s.NMI {
		v |= 1 << 19
	}
	v |= uint32(s.IM) << 8
	if s.UM {
		v |= 1 << 4
	}
	if s.ERL {
		v |= 1 << 2
	}
	if s.EXL {
		v |= 1 << 1
	}
	if s.IE {
		v |= 1
	}
	return v
}

func (c *cp0Cause) pack() uint32 {
	v := uint32(c.ExcCode&0x1f) << 2
	v |= uint32(c.IP) << 8
	if c.WP {
		v |= 1 << 22
	}
	if c.IV {
		v |= 1 << 23
	}
	if c.BD {
		v |= 1 << 31
	}
	return v
}

func (e *cp0EntryHi) pack() uint32 {
	return e.vpn2<<13 | uint32(e.asid)
}

func (e *cp0EntryLo) pack() uint32 {
	v := e.pfn<<6 | uint32(e.c&7)<<3
	if e.d {
		v |= 1 << 2
	}
	if e.v {
		v |= 1 << 1
	}
	if e.g {
		v |= 1
	}
	return v
}

func (e *cp0EntryLo) unpack(v uint32) {
	e.pfn = (v >> 6) & 0xffffff
	e.c = uint8(v>>3) & 7
	e.d = v&(1<<2) != 0
	e.v = v&(1<<1) != 0
	e.g = v&1 != 0
}

func (x *cp0Context) pack() uint32 {
	return x.pteBase<<23 | (x.badVPN2&0x7ffff)<<4
}

func (f *cp0Config) pack() uint32 {
	v := uint32(f.k0 & 7)
	v |= uint32(f.mt&7) << 7
	if f.be {
		v |= 1 << 15
	}
	if f.m {
		v |= 1 << 31
	}
	return v
}

// Config1 for a 4Kc profile: 64 TLB entries and 4-way 256-set caches
// with 4-byte lines.
func packConfig1() uint32 {
	v := uint32(nrTLBEntries-1) << 25 // MMU size - 1
	v |= 2 << 22                      // icache sets
	v |= 1 << 19                      // icache line size
	v |= 3 << 16                      // icache ways - 1
	v |= 2 << 13                      // dcache sets
	v |= 1 << 10                      // dcache line size
	v |= 3 << 7                       // dcache ways - 1
	return v
}

func cprs(reg, sel uint8) uint16 {
	return uint16(reg)<<3 | uint16(sel&7)
}

func (c *cpuState) readCP0(reg, sel uint8) uint32 {
	switch cprs(reg, sel) {
	case cprs(cpIndex, 0):
		return c.cp0.index
	case cprs(cpRandom, 0):
		return c.cp0.random
	case cprs(cpEntryLo0, 0):
		return c.cp0.entryLo[0].pack()
	case cprs(cpEntryLo1, 0):
		return c.cp0.entryLo[1].pack()
	case cprs(cpContext, 0):
		return c.cp0.context.pack()
	case cprs(cpPageMask, 0):
		return c.cp0.pageMask
	case cprs(cpWired, 0):
		return 0
	case cprs(cpBadVAddr, 0):
		return c.cp0.badVAddr
	case cprs(cpCount, 0):
		// Guests reading Count get scaled host time, simulating a
		// 50 MHz core regardless of interpreter speed.
		return uint32(currentTimeMicros() * 50)
	case cprs(cpCount, 1):
		return uint32((currentTimeMicros() * 50) >> 32)
	case cprs(cpEntryHi, 0):
		return c.cp0.entryHi.pack()
	case cprs(cpCompare, 0):
		return c.cp0.compare
	case cprs(cpStatus, 0):
		return c.cp0.status.pack()
	case cprs(cpCause, 0):
		return c.cp0.cause.pack()
	case cprs(cpEPC, 0):
		return c.cp0.epc
	case cprs(cpPRId, 0):
		return c.cp0.prid
	case cprs(cpConfig, 0):
		return c.cp0.config.pack()
	case cprs(cpConfig, 1):
		return c.cp0.config1
	case cprs(cpErrorEPC, 0):
		return c.cp0.errorEPC
	default:
		return c.cp0.cpr[reg][sel&7]
	}
}

// writeCP0 applies an MTC0. Only architecturally writable fields take
// effect, and writes that change the translation environment drop the
// soft-MMU and decode caches.
func (c *cpuState) writeCP0(reg, sel uint8, val uint32) {
	switch cprs(reg, sel) {
	case cprs(cpIndex, 0):
		c.cp0.index = val & (nrTLBEntries - 1)
	case cprs(cpEntryLo0, 0):
		c.cp0.entryLo[0].unpack(val)
	case cprs(cpEntryLo1, 0):
		c.cp0.entryLo[1].unpack(val)
	case cprs(cpContext, 0):
		c.cp0.context.pteBase = val >> 23
	case cprs(cpPageMask, 0):
		c.cp0.pageMask = val & 0x1fffe000
	case cprs(cpBadVAddr, 0):
		// Read only.
	case cprs(cpCount, 0):
		c.cp0.cpr[cpCount][0] = val
	case cprs(cpEntryHi, 0):
		c.cp0.entryHi.vpn2 = val >> 13
		c.cp0.entryHi.asid = uint8(val)
		c.clearMMUCache()
		c.clearDecodeCache()
	case cprs(cpCompare, 0):
		c.cp0.compare = val
		c.cp0.cause.IP &^= IPTimer
	case cprs(cpStatus, 0):
		newERL := val&(1<<2) != 0
		if c.cp0.status.ERL != newERL {
			c.clearMMUCache()
			c.clearDecodeCache()
		}
		c.cp0.status.CU = uint8(val>>28) & 0xf
		c.cp0.status.RP = val&(1<<27) != 0
		c.cp0.status.RE = val&(1<<25) != 0
		c.cp0.status.BEV = val&(1<<22) != 0
		c.cp0.status.TS = val&(1<<21) != 0
		c.cp0.status.SR = val&(1<<20) != 0
		c.cp0.status.NMI = val&(1<<19) != 0
		c.cp0.status.IM = uint8(val >> 8)
		c.cp0.status.UM = val&(1<<4) != 0
		c.cp0.status.ERL = newERL
		c.cp0.status.EXL = val&(1<<1) != 0
		c.cp0.status.IE = val&1 != 0
	case cprs(cpCause, 0):
		// Only IV, WP and the two software interrupt bits are writable.
		const swIPMask = 3
		c.cp0.cause.IV = val&(1<<23) != 0
		c.cp0.cause.WP = val&(1<<22) != 0
		c.cp0.cause.IP = (uint8(val>>8) & swIPMask) | (c.cp0.cause.IP &^ swIPMask)
	case cprs(cpEPC, 0):
		c.cp0.epc = val
	case cprs(cpConfig, 0):
		c.cp0.config.k0 = uint8(val) & 7
	case cprs(cpErrorEPC, 0):
		c.cp0.errorEPC = val
	default:
		debug.Debugf("CPU", debugMsk, debugCP0, "%08x: mtc0 $%d, sel %d = %08x",
			c.pc, reg, sel, val)
		c.cp0.cpr[reg][sel&7] = val
	}
}

// signalException records exception state and aims the PC at the right
// vector. The PC rewrite itself happens at the end of the step, via
// hasException/brTarget.
func (c *cpuState) signalException(code uint8) {
	cpuAssert(code != excTrap, "hit bad trap @%08x", c.pc)

	if c.isDelaySlot {
		c.cp0.epc = c.pc - 4
		c.cp0.cause.BD = !c.cp0.status.EXL
		c.isDelaySlot = false
	} else {
		c.cp0.epc = c.pc
		c.cp0.cause.BD = false
	}

	debug.Debugf("CPU", debugMsk, debugIRQ, "exception %d@%08x badvaddr=%08x",
		code, c.pc, c.cp0.badVAddr)

	// Vector table per MIPS32 R1, reference linux arch/mips/kernel/cps-vec.S.
	ebase := uint32(0x80000000)
	if c.cp0.status.BEV {
		ebase = 0xbfc00000
	}
	c.hasException = true
	switch {
	case code == excIntr && c.cp0.cause.IV:
		c.brTarget = ebase + 0x0200
	case (code == excTLBL || code == excTLBS) && c.tlbRefill && !c.cp0.status.EXL:
		c.brTarget = ebase
	default:
		c.brTarget = ebase + 0x0180
	}
	c.tlbRefill = false

	if enableSegment {
		c.base = 0 // kernel segment base is zero
	}

	c.cp0.status.EXL = true
	c.cp0.cause.ExcCode = code
}

// checkInterrupts runs after every retired instruction.
func (c *cpuState) checkInterrupts() {
	ie := !c.cp0.status.ERL && !c.cp0.status.EXL && c.cp0.status.IE
	if ie && (c.cp0.status.IM&c.cp0.cause.IP) != 0 {
		c.signalException(excIntr)
	}
}

// updateTimer advances virtual time by one retired instruction.
func (c *cpuState) updateTimer() {
	c.cp0.count++
	if c.cp0.compare != 0 && uint32(c.cp0.count) == c.cp0.compare {
		debug.Debugf("CPU", debugMsk, debugIRQ, "timer INTR@%08x", c.pc)
		c.cp0.cause.IP |= IPTimer
	}

	// Random free-runs from NrEntries-1 down to 1.
	if c.cp0.random <= 1 {
		c.cp0.random = nrTLBEntries - 1
	} else {
		c.cp0.random--
	}
}

// RaiseIRQ sets an interrupt pending bit. Devices must call this from
// the simulation goroutine (an event callback), never concurrently
// with the CPU.
func RaiseIRQ(bit uint8) {
	sysCPU.cp0.cause.IP |= bit
}

// ClearIRQ lowers an interrupt pending bit.
func ClearIRQ(bit uint8) {
	sysCPU.cp0.cause.IP &^= bit
}

// SignalException lets a device inject an architectural exception at
// the current PC. The code follows the Cause.ExcCode numbering. Like
// RaiseIRQ, it must only be called from the simulation goroutine.
func SignalException(code uint8) {
	sysCPU.signalException(code)
}
