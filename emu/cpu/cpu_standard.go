/*
   Standard instruction handlers: ALU, shifts, multiply/divide,
   branches, loads and stores.

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

import "math/bits"

// instAssert raises a reserved instruction exception when a field that
// must be zero is not. Returns the condition so handlers can bail out.
func (c *cpuState) instAssert(cond bool) bool {
	if !cond {
		c.cp0.badVAddr = c.pc
		c.signalException(excRI)
	}
	return cond
}

func (c *cpuState) opInvalid(_ *decodeSlot) {
	c.signalException(excRI)
}

/*
 * Arithmetic and logic.
 */

func (c *cpuState) opADD(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	ret := int64(int32(c.gpr[op.rs])) + int64(int32(c.gpr[op.rt]))
	if (ret>>32)&1 != (ret>>31)&1 {
		c.signalException(excOv)
		return
	}
	c.gpr[op.rd] = uint32(ret)
}

func (c *cpuState) opSUB(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	ret := int64(int32(c.gpr[op.rs])) - int64(int32(c.gpr[op.rt]))
	if (ret>>32)&1 != (ret>>31)&1 {
		c.signalException(excOv)
		return
	}
	c.gpr[op.rd] = uint32(ret)
}

func (c *cpuState) opADDU(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rs] + c.gpr[op.rt]
}

func (c *cpuState) opSUBU(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rs] - c.gpr[op.rt]
}

func (c *cpuState) opAND(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rs] & c.gpr[op.rt]
}

func (c *cpuState) opOR(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rs] | c.gpr[op.rt]
}

func (c *cpuState) opXOR(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rs] ^ c.gpr[op.rt]
}

func (c *cpuState) opNOR(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = ^(c.gpr[op.rs] | c.gpr[op.rt])
}

func (c *cpuState) opSLT(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	if int32(c.gpr[op.rs]) < int32(c.gpr[op.rt]) {
		c.gpr[op.rd] = 1
	} else {
		c.gpr[op.rd] = 0
	}
}

func (c *cpuState) opSLTU(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	if c.gpr[op.rs] < c.gpr[op.rt] {
		c.gpr[op.rd] = 1
	} else {
		c.gpr[op.rd] = 0
	}
}

func (c *cpuState) opMOVN(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	if c.gpr[op.rt] != 0 {
		c.gpr[op.rd] = c.gpr[op.rs]
	}
}

func (c *cpuState) opMOVZ(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	if c.gpr[op.rt] == 0 {
		c.gpr[op.rd] = c.gpr[op.rs]
	}
}

func (c *cpuState) opCLZ(op *decodeSlot) {
	c.gpr[op.rd] = uint32(bits.LeadingZeros32(c.gpr[op.rs]))
}

func (c *cpuState) opSEB(op *decodeSlot) {
	c.gpr[op.rd] = uint32(int32(int8(c.gpr[op.rt])))
}

func (c *cpuState) opSEH(op *decodeSlot) {
	c.gpr[op.rd] = uint32(int32(int16(c.gpr[op.rt])))
}

/*
 * Immediate forms.
 */

func (c *cpuState) opADDI(op *decodeSlot) {
	ret := int64(int32(c.gpr[op.rs])) + int64(op.simm)
	if (ret>>32)&1 != (ret>>31)&1 {
		c.signalException(excOv)
		return
	}
	c.gpr[op.rt] = uint32(ret)
}

func (c *cpuState) opADDIU(op *decodeSlot) {
	c.gpr[op.rt] = c.gpr[op.rs] + uint32(op.simm)
}

func (c *cpuState) opANDI(op *decodeSlot) {
	c.gpr[op.rt] = c.gpr[op.rs] & op.uimm
}

func (c *cpuState) opORI(op *decodeSlot) {
	c.gpr[op.rt] = c.gpr[op.rs] | op.uimm
}

func (c *cpuState) opXORI(op *decodeSlot) {
	c.gpr[op.rt] = c.gpr[op.rs] ^ op.uimm
}

func (c *cpuState) opLUI(op *decodeSlot) {
	if !c.instAssert(op.rs == 0) {
		return
	}
	c.gpr[op.rt] = op.uimm << 16
}

func (c *cpuState) opSLTI(op *decodeSlot) {
	if int32(c.gpr[op.rs]) < op.simm {
		c.gpr[op.rt] = 1
	} else {
		c.gpr[op.rt] = 0
	}
}

func (c *cpuState) opSLTIU(op *decodeSlot) {
	if c.gpr[op.rs] < uint32(op.simm) {
		c.gpr[op.rt] = 1
	} else {
		c.gpr[op.rt] = 0
	}
}

/*
 * Shifts.
 */

func (c *cpuState) opSLL(op *decodeSlot) {
	if !c.instAssert(op.rs == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rt] << op.shamt
}

func (c *cpuState) opSRL(op *decodeSlot) {
	if !c.instAssert(op.rs == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rt] >> op.shamt
}

func (c *cpuState) opSRA(op *decodeSlot) {
	if !c.instAssert(op.rs == 0) {
		return
	}
	c.gpr[op.rd] = uint32(int32(c.gpr[op.rt]) >> op.shamt)
}

func (c *cpuState) opSLLV(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rt] << (c.gpr[op.rs] & 0x1f)
}

func (c *cpuState) opSRLV(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.gpr[op.rt] >> (c.gpr[op.rs] & 0x1f)
}

func (c *cpuState) opSRAV(op *decodeSlot) {
	if !c.instAssert(op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = uint32(int32(c.gpr[op.rt]) >> (c.gpr[op.rs] & 0x1f))
}

/*
 * Multiply and divide.
 */

func (c *cpuState) setHiLo(v uint64) {
	c.hi = uint32(v >> 32)
	c.lo = uint32(v)
}

func (c *cpuState) hiLo() uint64 {
	return uint64(c.hi)<<32 | uint64(c.lo)
}

func (c *cpuState) opMULT(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	prod := int64(int32(c.gpr[op.rs])) * int64(int32(c.gpr[op.rt]))
	c.setHiLo(uint64(prod))
}

func (c *cpuState) opMULTU(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	c.setHiLo(uint64(c.gpr[op.rs]) * uint64(c.gpr[op.rt]))
}

func (c *cpuState) opMUL(op *decodeSlot) {
	c.gpr[op.rd] = c.gpr[op.rs] * c.gpr[op.rt]
}

func (c *cpuState) opDIV(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	rs := int32(c.gpr[op.rs])
	rt := int32(c.gpr[op.rt])
	if rt == 0 {
		// Architecturally UNPREDICTABLE; pick a result that cannot
		// fault the host.
		c.lo = ^uint32(0)
		c.hi = uint32(rs)
		return
	}
	c.lo = uint32(rs / rt)
	c.hi = uint32(rs % rt)
}

func (c *cpuState) opDIVU(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	rs := c.gpr[op.rs]
	rt := c.gpr[op.rt]
	if rt == 0 {
		c.lo = ^uint32(0)
		c.hi = rs
		return
	}
	c.lo = rs / rt
	c.hi = rs % rt
}

func (c *cpuState) opMADD(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	prod := int64(int32(c.gpr[op.rs])) * int64(int32(c.gpr[op.rt]))
	c.setHiLo(uint64(int64(c.hiLo()) + prod))
}

func (c *cpuState) opMADDU(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	c.setHiLo(c.hiLo() + uint64(c.gpr[op.rs])*uint64(c.gpr[op.rt]))
}

func (c *cpuState) opMSUB(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	prod := int64(int32(c.gpr[op.rs])) * int64(int32(c.gpr[op.rt]))
	c.setHiLo(uint64(int64(c.hiLo()) - prod))
}

func (c *cpuState) opMSUBU(op *decodeSlot) {
	if !c.instAssert(op.rd == 0 && op.shamt == 0) {
		return
	}
	c.setHiLo(c.hiLo() - uint64(c.gpr[op.rs])*uint64(c.gpr[op.rt]))
}

func (c *cpuState) opMFHI(op *decodeSlot) {
	if !c.instAssert(op.rs == 0 && op.rt == 0 && op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.hi
}

func (c *cpuState) opMTHI(op *decodeSlot) {
	if !c.instAssert(op.rt == 0 && op.rd == 0 && op.shamt == 0) {
		return
	}
	c.hi = c.gpr[op.rs]
}

func (c *cpuState) opMFLO(op *decodeSlot) {
	if !c.instAssert(op.rs == 0 && op.rt == 0 && op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.lo
}

func (c *cpuState) opMTLO(op *decodeSlot) {
	if !c.instAssert(op.rt == 0 && op.rd == 0 && op.shamt == 0) {
		return
	}
	c.lo = c.gpr[op.rs]
}

/*
 * Branches. Branch handlers enter the delay slot themselves: they set
 * the pending target, advance PC onto the slot instruction and leave
 * the rest to the main loop.
 */

func (c *cpuState) prepareDelaySlot() {
	c.isDelaySlot = true
	c.pc += 4
	c.advancePC = false
}

func (c *cpuState) condBranch(op *decodeSlot, taken bool) {
	if taken {
		c.brTarget = c.pc + uint32(op.simm<<2) + 4
	} else {
		c.brTarget = c.pc + 8
	}
	c.prepareDelaySlot()
}

// Likely variants annul the delay slot on a branch not taken.
func (c *cpuState) condBranchLikely(op *decodeSlot, taken bool) {
	if taken {
		c.brTarget = c.pc + uint32(op.simm<<2) + 4
		c.prepareDelaySlot()
		return
	}
	c.brTarget = c.pc + 8
	c.pc += 4
}

func (c *cpuState) opBEQ(op *decodeSlot) {
	c.condBranch(op, c.gpr[op.rs] == c.gpr[op.rt])
}

func (c *cpuState) opBNE(op *decodeSlot) {
	c.condBranch(op, c.gpr[op.rs] != c.gpr[op.rt])
}

func (c *cpuState) opBLEZ(op *decodeSlot) {
	if !c.instAssert(op.rt == 0) {
		return
	}
	c.condBranch(op, int32(c.gpr[op.rs]) <= 0)
}

func (c *cpuState) opBGTZ(op *decodeSlot) {
	c.condBranch(op, int32(c.gpr[op.rs]) > 0)
}

func (c *cpuState) opBLTZ(op *decodeSlot) {
	c.condBranch(op, int32(c.gpr[op.rs]) < 0)
}

func (c *cpuState) opBGEZ(op *decodeSlot) {
	c.condBranch(op, int32(c.gpr[op.rs]) >= 0)
}

func (c *cpuState) opBLTZAL(op *decodeSlot) {
	c.gpr[31] = c.pc + 8
	c.condBranch(op, int32(c.gpr[op.rs]) < 0)
}

func (c *cpuState) opBGEZAL(op *decodeSlot) {
	c.gpr[31] = c.pc + 8
	c.condBranch(op, int32(c.gpr[op.rs]) >= 0)
}

func (c *cpuState) opBEQL(op *decodeSlot) {
	c.condBranchLikely(op, c.gpr[op.rs] == c.gpr[op.rt])
}

func (c *cpuState) opBNEL(op *decodeSlot) {
	c.condBranchLikely(op, c.gpr[op.rs] != c.gpr[op.rt])
}

func (c *cpuState) opBLEZL(op *decodeSlot) {
	if !c.instAssert(op.rt == 0) {
		return
	}
	c.condBranchLikely(op, int32(c.gpr[op.rs]) <= 0)
}

func (c *cpuState) opBGTZL(op *decodeSlot) {
	c.condBranchLikely(op, int32(c.gpr[op.rs]) > 0)
}

func (c *cpuState) opBLTZL(op *decodeSlot) {
	c.condBranchLikely(op, int32(c.gpr[op.rs]) < 0)
}

func (c *cpuState) opBGEZL(op *decodeSlot) {
	c.condBranchLikely(op, int32(c.gpr[op.rs]) >= 0)
}

func (c *cpuState) opBLTZALL(op *decodeSlot) {
	c.gpr[31] = c.pc + 8
	c.condBranchLikely(op, int32(c.gpr[op.rs]) < 0)
}

func (c *cpuState) opBGEZALL(op *decodeSlot) {
	c.gpr[31] = c.pc + 8
	c.condBranchLikely(op, int32(c.gpr[op.rs]) >= 0)
}

func (c *cpuState) opJ(op *decodeSlot) {
	c.brTarget = c.pc&0xf0000000 | op.addr<<2
	c.prepareDelaySlot()
}

func (c *cpuState) opJAL(op *decodeSlot) {
	c.gpr[31] = c.pc + 8
	c.brTarget = c.pc&0xf0000000 | op.addr<<2
	framesEnqueueCall(c.pc, c.brTarget)
	c.prepareDelaySlot()
}

func (c *cpuState) opJR(op *decodeSlot) {
	if !c.instAssert(op.rt == 0 && op.rd == 0) {
		return
	}
	c.brTarget = c.gpr[op.rs]
	if op.rs == 31 {
		framesEnqueueRet(c.pc, c.brTarget)
	}
	c.prepareDelaySlot()
}

func (c *cpuState) opJALR(op *decodeSlot) {
	if !c.instAssert(op.rt == 0 && op.shamt == 0) {
		return
	}
	c.gpr[op.rd] = c.pc + 8
	c.brTarget = c.gpr[op.rs]
	framesEnqueueCall(c.pc, c.brTarget)
	c.prepareDelaySlot()
}

/*
 * Loads and stores. A faulted access must not touch rt.
 */

func (c *cpuState) opLB(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	rdata, ok := c.loadMem(raddr, 1)
	if ok {
		c.gpr[op.rt] = uint32(int32(int8(rdata)))
	}
}

func (c *cpuState) opLBU(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	rdata, ok := c.loadMem(raddr, 1)
	if ok {
		c.gpr[op.rt] = rdata
	}
}

func (c *cpuState) opLH(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	if raddr&1 != 0 {
		c.cp0.badVAddr = raddr
		c.signalException(excAdEL)
		return
	}
	rdata, ok := c.loadMem(raddr, 2)
	if ok {
		c.gpr[op.rt] = uint32(int32(int16(rdata)))
	}
}

func (c *cpuState) opLHU(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	if raddr&1 != 0 {
		c.cp0.badVAddr = raddr
		c.signalException(excAdEL)
		return
	}
	rdata, ok := c.loadMem(raddr, 2)
	if ok {
		c.gpr[op.rt] = rdata
	}
}

func (c *cpuState) opLW(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	if raddr&3 != 0 {
		c.cp0.badVAddr = raddr
		c.signalException(excAdEL)
		return
	}
	rdata, ok := c.loadMem(raddr, 4)
	if ok {
		c.gpr[op.rt] = rdata
	}
}

func (c *cpuState) opLWL(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	length := int(raddr&3) + 1
	rdata, ok := c.loadMem(raddr&^3, length)
	if !ok {
		return
	}
	if length < 4 {
		c.gpr[op.rt] = rdata<<(8*(4-length)) |
			c.gpr[op.rt]<<(8*length)>>(8*length)
	} else {
		c.gpr[op.rt] = rdata
	}
}

func (c *cpuState) opLWR(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	idx := int(raddr & 3)
	length := 4 - idx
	rdata, ok := c.loadMem(raddr, length)
	if !ok {
		return
	}
	if length < 4 {
		c.gpr[op.rt] = rdata<<(8*idx)>>(8*idx) |
			c.gpr[op.rt]>>(8*length)<<(8*length)
	} else {
		c.gpr[op.rt] = rdata << (8 * idx) >> (8 * idx)
	}
}

func (c *cpuState) opSB(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	c.storeMem(waddr, 1, c.gpr[op.rt])
}

func (c *cpuState) opSH(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	if waddr&1 != 0 {
		c.cp0.badVAddr = waddr
		c.signalException(excAdES)
		return
	}
	c.storeMem(waddr, 2, c.gpr[op.rt])
}

func (c *cpuState) opSW(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	if waddr&3 != 0 {
		c.cp0.badVAddr = waddr
		c.signalException(excAdES)
		return
	}
	c.storeMem(waddr, 4, c.gpr[op.rt])
}

func (c *cpuState) opSWL(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	idx := int(waddr & 3)
	wdata := c.gpr[op.rt] >> (8 * (3 - idx))
	c.storeMem(waddr&^3, idx+1, wdata)
}

func (c *cpuState) opSWR(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	length := 4 - int(waddr&3)
	c.storeMem(waddr, length, c.gpr[op.rt])
}

// Load linked is a plain load; store conditional always succeeds.
// There is only one core, so the link can never be broken.
func (c *cpuState) opLL(op *decodeSlot) {
	raddr := c.gpr[op.rs] + uint32(op.simm)
	if raddr&3 != 0 {
		c.cp0.badVAddr = raddr
		c.signalException(excAdEL)
		return
	}
	rdata, ok := c.loadMem(raddr, 4)
	if ok {
		c.gpr[op.rt] = rdata
	}
}

func (c *cpuState) opSC(op *decodeSlot) {
	waddr := c.gpr[op.rs] + uint32(op.simm)
	if waddr&3 != 0 {
		c.cp0.badVAddr = waddr
		c.signalException(excAdES)
		return
	}
	if c.storeMem(waddr, 4, c.gpr[op.rt]) {
		c.gpr[op.rt] = 1
	}
}

func (c *cpuState) opPREF(_ *decodeSlot) {}

func (c *cpuState) opSync(_ *decodeSlot) {}
