/*
   System instruction handlers: CP0 moves, TLB maintenance, ERET,
   traps, syscall and breakpoint.

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

func (c *cpuState) opMFC0(op *decodeSlot) {
	c.gpr[op.rt] = c.readCP0(op.rd, op.sel)
}

func (c *cpuState) opMTC0(op *decodeSlot) {
	c.writeCP0(op.rd, op.sel, c.gpr[op.rt])
}

func (c *cpuState) opTLBP(_ *decodeSlot) {
	c.tlbProbe()
}

func (c *cpuState) opTLBR(_ *decodeSlot) {
	c.tlbReadEntry(c.cp0.index & (nrTLBEntries - 1))
}

func (c *cpuState) opTLBWI(_ *decodeSlot) {
	c.tlbWriteEntry(c.cp0.index & (nrTLBEntries - 1))
}

func (c *cpuState) opTLBWR(_ *decodeSlot) {
	c.tlbWriteEntry(c.cp0.random)
}

// opERET returns from exception or error level. It never has a delay
// slot; the PC rewrite rides the common exception fix-up path.
func (c *cpuState) opERET(_ *decodeSlot) {
	c.hasException = true
	if c.cp0.status.ERL {
		c.brTarget = c.cp0.errorEPC
		c.cp0.status.ERL = false
	} else {
		c.brTarget = c.cp0.epc
		c.cp0.status.EXL = false
	}

	if enableSegment {
		c.base = c.cp0.cpr[cpReserved][0]
	}

	c.clearMMUCache()
	c.clearDecodeCache()
}

func (c *cpuState) opSyscall(_ *decodeSlot) {
	c.signalException(excSys)
}

func (c *cpuState) opBreak(_ *decodeSlot) {
	c.signalException(excBp)
}

// opWAIT idles by not advancing PC; an interrupt moves execution on.
func (c *cpuState) opWAIT(_ *decodeSlot) {
	c.advancePC = false
}

func (c *cpuState) opCACHE(_ *decodeSlot) {
	c.clearDecodeCache()
}

/*
 * Trap instructions. A taken trap is fatal here: no supported guest
 * uses them as part of normal control flow.
 */

func (c *cpuState) opTEQ(op *decodeSlot) {
	if int32(c.gpr[op.rs]) == int32(c.gpr[op.rt]) {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTNE(op *decodeSlot) {
	if int32(c.gpr[op.rs]) != int32(c.gpr[op.rt]) {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTGE(op *decodeSlot) {
	if int32(c.gpr[op.rs]) >= int32(c.gpr[op.rt]) {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTGEU(op *decodeSlot) {
	if c.gpr[op.rs] >= c.gpr[op.rt] {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTLT(op *decodeSlot) {
	if int32(c.gpr[op.rs]) < int32(c.gpr[op.rt]) {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTLTU(op *decodeSlot) {
	if c.gpr[op.rs] < c.gpr[op.rt] {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTEQI(op *decodeSlot) {
	if int32(c.gpr[op.rs]) == op.simm {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTNEI(op *decodeSlot) {
	if int32(c.gpr[op.rs]) != op.simm {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTGEI(op *decodeSlot) {
	if int32(c.gpr[op.rs]) >= op.simm {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTGEIU(op *decodeSlot) {
	if c.gpr[op.rs] >= uint32(op.simm) {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTLTI(op *decodeSlot) {
	if int32(c.gpr[op.rs]) < op.simm {
		c.signalException(excTrap)
	}
}

func (c *cpuState) opTLTIU(op *decodeSlot) {
	if c.gpr[op.rs] < uint32(op.simm) {
		c.signalException(excTrap)
	}
}
