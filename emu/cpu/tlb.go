/*
   TLB: 64-entry translation table and virtual address translation.

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

// translate maps a virtual address to a physical one. kseg0 and kseg1
// are fixed windows onto low physical memory; kuseg and kseg2 go
// through the TLB. On failure the architectural exception has already
// been signalled and ok is false.
func (c *cpuState) translate(vaddr uint32, kind int) (paddr uint32, ok bool) {
	switch {
	case vaddr >= 0x80000000 && vaddr < 0xa0000000:
		return vaddr - 0x80000000, true
	case vaddr >= 0xa0000000 && vaddr < 0xc0000000:
		return vaddr - 0xa0000000, true
	}
	if enableSegment {
		vaddr += c.base
	}
	return c.tlbTranslate(vaddr, kind)
}

func (c *cpuState) tlbTranslate(vaddr uint32, kind int) (uint32, bool) {
	vpn2 := vaddr >> 13
	odd := (vaddr >> 12) & 1
	for i := range c.tlb {
		e := &c.tlb[i]
		if e.vpn2 != vpn2 || (!e.g && e.asid != c.cp0.entryHi.asid) {
			continue
		}
		lo := &e.lo[odd]
		if !lo.v {
			c.tlbFault(vaddr, kind, false)
			return 0, false
		}
		if kind == accStore && !lo.d {
			c.tlbMod(vaddr)
			return 0, false
		}
		return lo.pfn<<12 | vaddr&0xfff, true
	}
	c.tlbFault(vaddr, kind, true)
	return 0, false
}

// tlbFault raises TLBL or TLBS. refill selects the dedicated refill
// vector when EXL is still clear.
func (c *cpuState) tlbFault(vaddr uint32, kind int, refill bool) {
	c.cp0.badVAddr = vaddr
	c.cp0.entryHi.vpn2 = vaddr >> 13
	c.cp0.context.badVPN2 = vaddr >> 13
	c.tlbRefill = refill
	if kind == accStore {
		c.signalException(excTLBS)
	} else {
		c.signalException(excTLBL)
	}
}

// tlbMod raises the TLB-modified exception for a store through a
// clean page.
func (c *cpuState) tlbMod(vaddr uint32) {
	c.cp0.badVAddr = vaddr
	c.cp0.entryHi.vpn2 = vaddr >> 13
	c.cp0.context.badVPN2 = vaddr >> 13
	c.signalException(excMod)
}

// tlbProbe implements TLBP: look up EntryHi, leave the index in Index
// with the probe-failure bit on a miss.
func (c *cpuState) tlbProbe() {
	c.cp0.index = 1 << 31
	for i := range c.tlb {
		e := &c.tlb[i]
		if e.vpn2 == c.cp0.entryHi.vpn2 && (e.g || e.asid == c.cp0.entryHi.asid) {
			c.cp0.index = uint32(i)
			return
		}
	}
}

// tlbReadEntry implements TLBR: copy the indexed entry into EntryHi,
// EntryLo0/1 and PageMask.
func (c *cpuState) tlbReadEntry(idx uint32) {
	cpuAssert(idx < nrTLBEntries, "tlbr: invalid tlb index %d", idx)
	e := &c.tlb[idx]
	c.cp0.entryHi.vpn2 = e.vpn2
	c.cp0.entryHi.asid = e.asid
	c.cp0.pageMask = e.mask
	for k := range e.lo {
		c.cp0.entryLo[k] = cp0EntryLo{
			pfn: e.lo[k].pfn,
			c:   e.lo[k].c,
			d:   e.lo[k].d,
			v:   e.lo[k].v,
			g:   e.g,
		}
	}
}

// tlbWriteEntry implements TLBWI/TLBWR at the given index. Writing a
// page that another enabled entry already maps is undefined on real
// silicon; here it is a fatal guest bug.
func (c *cpuState) tlbWriteEntry(idx uint32) {
	cpuAssert(idx < nrTLBEntries, "tlbwi: invalid tlb index %d", idx)
	e := &c.tlb[idx]
	e.vpn2 = c.cp0.entryHi.vpn2
	e.asid = c.cp0.entryHi.asid
	e.g = c.cp0.entryLo[0].g && c.cp0.entryLo[1].g
	e.mask = c.cp0.pageMask
	for k := range e.lo {
		e.lo[k] = tlbLo{
			pfn: c.cp0.entryLo[k].pfn,
			c:   c.cp0.entryLo[k].c,
			d:   c.cp0.entryLo[k].d,
			v:   c.cp0.entryLo[k].v,
		}
	}

	for j := range c.tlb {
		o := &c.tlb[j]
		if uint32(j) == idx || o.vpn2 != e.vpn2 {
			continue
		}
		if o.g || e.g || o.asid == e.asid {
			cpuAssert(false, "tlb write %d conflicts with entry %d (vpn2=%05x)",
				idx, j, e.vpn2)
		}
	}

	debug.Debugf("CPU", debugMsk, debugTLB, "tlb[%d] = vpn2:%05x asid:%02x g:%v",
		idx, e.vpn2, e.asid, e.g)

	c.clearMMUCache()
	c.clearDecodeCache()
}
