/*
   Decoder and decode cache.

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

// decode classifies a raw instruction word into a handler token plus
// its extracted operand fields.
func (c *cpuState) decode(raw uint32, slot *decodeSlot) {
	slot.raw = raw
	slot.rs = uint8(raw >> 21 & 0x1f)
	slot.rt = uint8(raw >> 16 & 0x1f)
	slot.rd = uint8(raw >> 11 & 0x1f)
	slot.shamt = uint8(raw >> 6 & 0x1f)
	slot.fn = uint8(raw & 0x3f)
	slot.sel = uint8(raw & 0x7)
	slot.simm = int32(int16(raw))
	slot.uimm = raw & 0xffff
	slot.addr = raw & 0x3ffffff

	switch raw >> 26 {
	case 0x00: // SPECIAL
		slot.handler = c.specialTable[slot.fn]
	case 0x01: // REGIMM
		slot.handler = c.regimmTable[slot.rt]
	case 0x10: // COP0
		if slot.rs&0x10 != 0 {
			slot.handler = c.cop0FnTable[slot.fn]
		} else {
			slot.handler = c.cop0RsTable[slot.rs]
		}
	case 0x1c: // SPECIAL2
		slot.handler = c.special2Table[slot.fn]
	case 0x1f: // SPECIAL3
		if slot.fn == 0x20 {
			slot.handler = c.bshflTable[slot.shamt]
		} else {
			slot.handler = c.special3Table[slot.fn]
		}
	default:
		slot.handler = c.opcodeTable[raw>>26]
	}
}

// fetchDecode returns the decoded instruction at PC, from the decode
// cache when possible. A nil return means the fetch itself faulted and
// the exception is already pending.
func (c *cpuState) fetchDecode() *decodeSlot {
	if !enableDecodeCache {
		raw, ok := c.loadMemKind(c.pc, 4, accFetch)
		if !ok {
			return nil
		}
		c.decode(raw, &c.scratch)
		return &c.scratch
	}

	slot := &c.dcache[(c.pc>>2)&(dcacheSize-1)]
	if slot.pc == c.pc {
		c.dcacheHit++
		return slot
	}
	c.dcacheMiss++
	raw, ok := c.loadMemKind(c.pc, 4, accFetch)
	if !ok {
		return nil
	}
	c.decode(raw, slot)
	slot.pc = c.pc
	return slot
}

func (c *cpuState) clearDecodeCache() {
	for i := range c.dcache {
		c.dcache[i].pc = dcInvalidPC
	}
}

// Create the dispatch tables. Layout follows the MIPS32 opcode map;
// unassigned slots raise a reserved instruction exception.
func (c *cpuState) createTables() {
	inv := c.opInvalid

	c.specialTable = [64]handler{
		//  0          1         2          3          4         5         6          7
		c.opSLL, inv, c.opSRL, c.opSRA, c.opSLLV, inv, c.opSRLV, c.opSRAV, // 0x00
		c.opJR, c.opJALR, c.opMOVZ, c.opMOVN, c.opSyscall, c.opBreak, inv, c.opSync, // 0x08
		c.opMFHI, c.opMTHI, c.opMFLO, c.opMTLO, inv, inv, inv, inv, // 0x10
		c.opMULT, c.opMULTU, c.opDIV, c.opDIVU, inv, inv, inv, inv, // 0x18
		c.opADD, c.opADDU, c.opSUB, c.opSUBU, c.opAND, c.opOR, c.opXOR, c.opNOR, // 0x20
		inv, inv, c.opSLT, c.opSLTU, inv, inv, inv, inv, // 0x28
		c.opTGE, c.opTGEU, c.opTLT, c.opTLTU, c.opTEQ, inv, c.opTNE, inv, // 0x30
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x38
	}

	c.special2Table = [64]handler{
		c.opMADD, c.opMADDU, c.opMUL, inv, c.opMSUB, c.opMSUBU, inv, inv, // 0x00
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x08
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x10
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x18
		c.opCLZ, inv, inv, inv, inv, inv, inv, inv, // 0x20
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x28
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x30
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x38
	}

	// SPECIAL3 holds only the BSHFL group, which decode routes by
	// shamt; everything reached through fn is reserved.
	for i := range c.special3Table {
		c.special3Table[i] = inv
	}

	c.bshflTable = [32]handler{
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x00
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x08
		c.opSEB, inv, inv, inv, inv, inv, inv, inv, // 0x10
		c.opSEH, inv, inv, inv, inv, inv, inv, inv, // 0x18
	}

	c.regimmTable = [32]handler{
		c.opBLTZ, c.opBGEZ, c.opBLTZL, c.opBGEZL, inv, inv, inv, inv, // 0x00
		c.opTGEI, c.opTGEIU, c.opTLTI, c.opTLTIU, c.opTEQI, inv, c.opTNEI, inv, // 0x08
		c.opBLTZAL, c.opBGEZAL, c.opBLTZALL, c.opBGEZALL, inv, inv, inv, inv, // 0x10
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x18
	}

	c.cop0RsTable = [32]handler{
		c.opMFC0, inv, inv, inv, c.opMTC0, inv, inv, inv, // 0x00
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x08
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x10
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x18
	}

	c.cop0FnTable = [64]handler{
		inv, c.opTLBR, c.opTLBWI, inv, inv, inv, c.opTLBWR, inv, // 0x00
		c.opTLBP, inv, inv, inv, inv, inv, inv, inv, // 0x08
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x10
		c.opERET, inv, inv, inv, inv, inv, inv, inv, // 0x18
		c.opWAIT, inv, inv, inv, inv, inv, inv, inv, // 0x20
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x28
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x30
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x38
	}

	// SPECIAL, REGIMM, COP0, SPECIAL2 and SPECIAL3 are dispatched by
	// decode before this table is consulted.
	c.opcodeTable = [64]handler{
		inv, inv, c.opJ, c.opJAL, c.opBEQ, c.opBNE, c.opBLEZ, c.opBGTZ, // 0x00
		c.opADDI, c.opADDIU, c.opSLTI, c.opSLTIU, c.opANDI, c.opORI, c.opXORI, c.opLUI, // 0x08
		inv, inv, inv, inv, c.opBEQL, c.opBNEL, c.opBLEZL, c.opBGTZL, // 0x10
		inv, inv, inv, inv, inv, inv, inv, inv, // 0x18
		c.opLB, c.opLH, c.opLWL, c.opLW, c.opLBU, c.opLHU, c.opLWR, inv, // 0x20
		c.opSB, c.opSH, c.opSWL, c.opSW, inv, inv, c.opSWR, c.opCACHE, // 0x28
		c.opLL, inv, inv, c.opPREF, inv, inv, inv, inv, // 0x30
		c.opSC, inv, inv, inv, inv, inv, inv, inv, // 0x38
	}
}
