/*
 * CP0 and exception engine test cases.
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

package cpu

import (
	"testing"
)

// Reset profile: ERL and BEV set, interrupts masked, 4Kc PRId.
func TestResetProfile(t *testing.T) {
	setupTest()
	if !sysCPU.cp0.status.ERL || !sysCPU.cp0.status.BEV {
		t.Error("reset profile must have ERL and BEV set")
	}
	if sysCPU.cp0.status.IM != 0 {
		t.Errorf("reset IM got: %02x expected: 00", sysCPU.cp0.status.IM)
	}
	if sysCPU.cp0.prid != 0x00018000 {
		t.Errorf("prid got: %08x expected: %08x", sysCPU.cp0.prid, 0x00018000)
	}
	if mmu := (sysCPU.cp0.config1 >> 25) & 0x3f; mmu != nrTLBEntries-1 {
		t.Errorf("config1 MMU size got: %d expected: %d", mmu, nrTLBEntries-1)
	}
	if sysCPU.pc != testEntry {
		t.Errorf("reset pc got: %08x expected: %08x", sysCPU.pc, testEntry)
	}
}

// Status round trips through mtc0/mfc0 with field masking.
func TestStatusReadWrite(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iLUI(rT0, 0x0040),       // BEV
		iORI(rT0, rT0, 0x8001),  // IM7 | IE
		iMTC0(rT0, cpStatus, 0), // mtc0 t0, status
		iMFC0(rT1, cpStatus, 0), // mfc0 t1, status
		iWAIT(),
	)
	runSteps(4)
	if !sysCPU.cp0.status.BEV || !sysCPU.cp0.status.IE {
		t.Error("status write did not take")
	}
	if sysCPU.cp0.status.IM != 0x80 {
		t.Errorf("IM got: %02x expected: 80", sysCPU.cp0.status.IM)
	}
	if sysCPU.cp0.status.ERL || sysCPU.cp0.status.EXL {
		t.Error("ERL/EXL should have been cleared by the write")
	}
	if sysCPU.gpr[rT1] != 0x00408001 {
		t.Errorf("mfc0 status got: %08x expected: %08x", sysCPU.gpr[rT1], 0x00408001)
	}
}

// ERET with ERL set branches to ErrorEPC clearing only ERL.
func TestERETErrorLevel(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iLUI(rT0, 0xbfc0),
		iORI(rT0, rT0, 0x1000),
		iMTC0(rT0, cpErrorEPC, 0),
		iERET(),
	)
	sysCPU.cp0.status.EXL = true // must survive the eret
	runSteps(4)
	if sysCPU.pc != 0xbfc01000 {
		t.Errorf("eret pc got: %08x expected: %08x", sysCPU.pc, 0xbfc01000)
	}
	if sysCPU.cp0.status.ERL {
		t.Error("ERL still set after eret")
	}
	if !sysCPU.cp0.status.EXL {
		t.Error("EXL cleared by error-level eret")
	}
}

// ERET with ERL clear branches to EPC clearing EXL.
func TestERETExceptionLevel(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iLUI(rT0, 0xbfc0),
		iORI(rT0, rT0, 0x2000),
		iMTC0(rT0, cpEPC, 0),
		iERET(),
	)
	sysCPU.cp0.status.ERL = false
	sysCPU.cp0.status.EXL = true
	runSteps(4)
	if sysCPU.pc != 0xbfc02000 {
		t.Errorf("eret pc got: %08x expected: %08x", sysCPU.pc, 0xbfc02000)
	}
	if sysCPU.cp0.status.EXL {
		t.Error("EXL still set after eret")
	}
}

// Exception entry followed by eret resumes at the faulting address.
func TestExceptionERETRoundTrip(t *testing.T) {
	bram := setupTest()
	// Vector at 0xbfc00180 holds an eret; reset profile has BEV=1.
	bram.Write(0x180, 4, iERET())
	seedProgram(bram,
		iLUI(rT0, 0x7fff),
		iORI(rT0, rT0, 0xffff),
		iADDI(rT1, rT0, 1), // overflow, vector, eret, re-execute, overflow...
		iWAIT(),
	)
	sysCPU.cp0.status.ERL = false
	runSteps(4) // lui, ori, addi (faults), eret
	if sysCPU.pc != testEntry+8 {
		t.Errorf("resume pc got: %08x expected: %08x", sysCPU.pc, testEntry+8)
	}
	if sysCPU.cp0.status.EXL {
		t.Error("EXL still set after eret")
	}
}

// A pending, enabled interrupt is taken between instructions.
func TestInterruptDelivery(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iNOP(),
		iNOP(),
		iNOP(),
		iWAIT(),
	)
	sysCPU.cp0.status.ERL = false
	sysCPU.cp0.status.IE = true
	sysCPU.cp0.status.IM = IPTimer
	sysCPU.cp0.cause.IP = IPTimer
	runSteps(1)
	if sysCPU.cp0.cause.ExcCode != excIntr {
		t.Errorf("ExcCode got: %d expected: %d", sysCPU.cp0.cause.ExcCode, excIntr)
	}
	if sysCPU.pc != 0xbfc00180 {
		t.Errorf("vector got: %08x expected: %08x", sysCPU.pc, 0xbfc00180)
	}
	if !sysCPU.cp0.status.EXL {
		t.Error("EXL not set on interrupt entry")
	}
	// EPC points at the next instruction to resume.
	if sysCPU.cp0.epc != testEntry+4 {
		t.Errorf("epc got: %08x expected: %08x", sysCPU.cp0.epc, testEntry+4)
	}
}

// With Cause.IV set, interrupts vector to the special entry.
func TestInterruptVectorIV(t *testing.T) {
	bram := setupTest()
	seedProgram(bram, iNOP(), iNOP(), iWAIT())
	sysCPU.cp0.status.ERL = false
	sysCPU.cp0.status.IE = true
	sysCPU.cp0.status.IM = IPSerial
	sysCPU.cp0.cause.IP = IPSerial
	sysCPU.cp0.cause.IV = true
	runSteps(1)
	if sysCPU.pc != 0xbfc00200 {
		t.Errorf("IV vector got: %08x expected: %08x", sysCPU.pc, 0xbfc00200)
	}
}

// Masked or disabled interrupts are not delivered.
func TestInterruptMasked(t *testing.T) {
	bram := setupTest()
	seedProgram(bram, iNOP(), iNOP(), iNOP(), iWAIT())
	sysCPU.cp0.status.ERL = false
	sysCPU.cp0.status.IE = false
	sysCPU.cp0.status.IM = IPTimer
	sysCPU.cp0.cause.IP = IPTimer
	runSteps(3)
	if sysCPU.cp0.status.EXL {
		t.Error("interrupt delivered with IE clear")
	}

	sysCPU.cp0.status.IE = true
	sysCPU.cp0.status.IM = 0
	runSteps(1)
	if sysCPU.cp0.status.EXL {
		t.Error("interrupt delivered with IM clear")
	}
}

// The virtual timer posts IP7 when Count reaches Compare.
func TestTimerInterruptBit(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iNOP(), iNOP(), iNOP(), iNOP(), iNOP(),
		iNOP(), iNOP(), iNOP(), iNOP(), iWAIT(),
	)
	sysCPU.cp0.compare = 5
	runSteps(4)
	if sysCPU.cp0.cause.IP&IPTimer != 0 {
		t.Error("timer bit set early")
	}
	runSteps(1)
	if sysCPU.cp0.cause.IP&IPTimer == 0 {
		t.Error("timer bit not set at compare")
	}
}

// Writing Compare acknowledges the timer interrupt.
func TestCompareWriteClearsTimer(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iADDIU(rT0, rZero, 100),
		iMTC0(rT0, cpCompare, 0),
		iWAIT(),
	)
	sysCPU.cp0.cause.IP = IPTimer
	runSteps(2)
	if sysCPU.cp0.cause.IP&IPTimer != 0 {
		t.Error("timer bit survived a compare write")
	}
	if sysCPU.cp0.compare != 100 {
		t.Errorf("compare got: %d expected: 100", sysCPU.cp0.compare)
	}
}

// Cause software interrupt bits are guest writable, hardware bits not.
func TestCauseWriteMasking(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iORI(rT0, rZero, 0x0300), // IP1|IP0
		iMTC0(rT0, cpCause, 0),
		iWAIT(),
	)
	sysCPU.cp0.cause.IP = IPTimer
	runSteps(2)
	if sysCPU.cp0.cause.IP != IPTimer|3 {
		t.Errorf("IP got: %02x expected: %02x", sysCPU.cp0.cause.IP, IPTimer|3)
	}
}

// BadVAddr is read only.
func TestBadVAddrReadOnly(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		iORI(rT0, rZero, 0x1234),
		iMTC0(rT0, cpBadVAddr, 0),
		iWAIT(),
	)
	sysCPU.cp0.badVAddr = 0xdeadbeef
	runSteps(2)
	if sysCPU.cp0.badVAddr != 0xdeadbeef {
		t.Errorf("badvaddr got: %08x expected: %08x", sysCPU.cp0.badVAddr, 0xdeadbeef)
	}
}

// Status pack/unpack round trip of individual fields.
func TestStatusPack(t *testing.T) {
	var s cp0Status
	s.CU = 1
	s.BEV = true
	s.IM = 0x81
	s.ERL = true
	s.IE = true
	v := s.pack()
	if v != 0x10408105 {
		t.Errorf("status pack got: %08x expected: %08x", v, 0x10408105)
	}
}

// Cause pack layout.
func TestCausePack(t *testing.T) {
	var c cp0Cause
	c.BD = true
	c.IV = true
	c.IP = 0x84
	c.ExcCode = excOv
	v := c.pack()
	if v != 0x80808430 {
		t.Errorf("cause pack got: %08x expected: %08x", v, 0x80808430)
	}
}

// EntryLo pack/unpack round trip.
func TestEntryLoPack(t *testing.T) {
	var lo cp0EntryLo
	lo.unpack(0x00001fdf)
	if lo.pfn != 0x7f || lo.c != 3 || !lo.d || !lo.v || !lo.g {
		t.Errorf("entrylo unpack wrong: %+v", lo)
	}
	if lo.pack() != 0x00001fdf {
		t.Errorf("entrylo pack got: %08x expected: %08x", lo.pack(), 0x00001fdf)
	}
}

// The interrupt vector with BEV clear sits in RAM.
func TestRAMVectors(t *testing.T) {
	bram := setupTest()
	seedProgram(bram,
		encR(0, 0, 0, 0, 0, 0x0c), // syscall
		iWAIT(),
	)
	sysCPU.cp0.status.BEV = false
	runSteps(1)
	if sysCPU.pc != 0x80000180 {
		t.Errorf("RAM vector got: %08x expected: %08x", sysCPU.pc, 0x80000180)
	}
}
