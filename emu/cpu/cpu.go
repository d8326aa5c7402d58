/*
   CPU: main instruction fetch and execute.

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

/*
   Interpreter for the MIPS32 R1 (4Kc class) integer instruction set,
   little endian, with CP0, a 64-entry TLB and branch delay slots.

   Each step runs: timer tick, fetch (soft-MMU, then translate + bus),
   decode (optionally memoized by PC), dispatch through the opcode
   tables, interrupt check, and the pending-exception PC rewrite.

   The interpreter is single threaded. Devices feed it only through
   event callbacks and the interrupt-pending bits; nothing outside this
   package mutates CPU state while a step is in flight.
*/

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wierton/nemu-mips32/emu/device"
	"github.com/wierton/nemu-mips32/util/debug"
)

// Holds state of CPU.
var sysCPU cpuState

// Machine run state. Devices may end the machine from host callbacks,
// so it is the one piece of state shared across goroutines.
type State int32

const (
	Stop State = iota // Not executing, can be resumed
	Running
	End // Terminal; the machine cannot run again
)

var machState atomic.Int32

// MachineState returns the current run state.
func MachineState() State {
	return State(machState.Load())
}

// SetMachineState changes the run state.
func SetMachineState(s State) {
	machState.Store(int32(s))
}

// Halt moves the machine to the terminal END state. The main loop
// returns at the next instruction boundary.
func Halt() {
	machState.Store(int32(End))
}

// Feature toggles, set once at configuration time.
var (
	enableDecodeCache = true
	enableSegment     = false
	enableTrace       = false
)

// SetDecodeCache enables or disables decode memoization.
func SetDecodeCache(on bool) {
	enableDecodeCache = on
}

// SetSegment enables the coarse base-register user segment mode.
func SetSegment(on bool) {
	enableSegment = on
}

// SetTrace enables the per-instruction register dump.
func SetTrace(on bool) {
	enableTrace = on
}

// SetDebugOption enables named debug trace classes.
func SetDebugOption(opts []string) error {
	for _, o := range opts {
		m, ok := debugOption[o]
		if !ok {
			return fmt.Errorf("unknown debug option %s", o)
		}
		debugMsk |= m
	}
	return nil
}

var startTime = time.Now()

func currentTimeMicros() uint64 {
	return uint64(time.Since(startTime).Microseconds())
}

// Initialize resets the CPU to its power-on profile with the given
// entry point: ERL=1, BEV=1, interrupts masked, empty TLB and caches.
func Initialize(entry uint32) {
	c := &sysCPU
	*c = cpuState{}
	c.createTables()
	c.pc = entry

	c.cp0.random = nrTLBEntries - 1
	c.cp0.compare = 0xffffffff
	c.cp0.status.CU = 1 // CP0 usable
	c.cp0.status.ERL = true
	c.cp0.status.BEV = true
	c.cp0.status.IM = 0
	c.cp0.prid = 0x00018000 // MIPS32 4Kc
	c.cp0.config = cp0Config{m: true, mt: 1}
	c.cp0.config1 = packConfig1()

	for i := range c.tlb {
		c.tlb[i].vpn2 = tlbVPNInvalid
	}
	c.clearMMUCache()
	c.clearDecodeCache()

	startTime = time.Now()
	SetMachineState(Stop)
}

// cpuAssert reports a host-level fatal: a malformed guest image or a
// misconfigured machine, never an architectural condition.
func cpuAssert(cond bool, format string, args ...any) {
	if !cond {
		msg := fmt.Sprintf(format, args...)
		slog.Error("cpu: " + msg)
		panic("cpu: " + msg)
	}
}

func (c *cpuState) clearMMUCache() {
	for i := range c.smmu {
		c.smmu[i] = smmuEntry{tag: smmuInvalidTag}
	}
}

func (c *cpuState) smmuSlot(vaddr uint32) *smmuEntry {
	return &c.smmu[(vaddr>>12)&(smmuSize-1)]
}

func smmuTag(vaddr uint32) uint32 {
	return vaddr >> (12 + smmuBits)
}

func hostRead(page []byte, off uint32, size int) uint32 {
	var v uint32
	for i := 0; i < size; i++ {
		v |= uint32(page[off+uint32(i)]) << (8 * i)
	}
	return v
}

func hostWrite(page []byte, off uint32, size int, v uint32) {
	for i := 0; i < size; i++ {
		page[off+uint32(i)] = byte(v >> (8 * i))
	}
}

// updateSoftMMU caches the host page backing vaddr if the owning
// device is host-mappable. Callers never hand it a page-crossing
// access.
func (c *cpuState) updateSoftMMU(vaddr, paddr uint32, rng *device.Range) {
	m, ok := rng.Dev.(device.PageMapper)
	if !ok {
		return
	}
	page := m.MapPage((paddr&^0xfff)-rng.Start, 0)
	if page == nil {
		return
	}
	slot := c.smmuSlot(vaddr)
	slot.tag = smmuTag(vaddr)
	slot.page = page
}

func (c *cpuState) loadMem(vaddr uint32, size int) (uint32, bool) {
	return c.loadMemKind(vaddr, size, accLoad)
}

func (c *cpuState) loadMemKind(vaddr uint32, size int, kind int) (uint32, bool) {
	if slot := c.smmuSlot(vaddr); slot.tag == smmuTag(vaddr) {
		return hostRead(slot.page, vaddr&0xfff, size), true
	}
	paddr, ok := c.translate(vaddr, kind)
	if !ok {
		return 0, false
	}
	rng := device.Find(paddr)
	cpuAssert(rng != nil, "bad addr %08x (pc=%08x)", vaddr, c.pc)
	rd, canRead := rng.Dev.(device.Reader)
	cpuAssert(canRead, "bad addr %08x: %s is not readable", vaddr, rng.Dev.Name())
	c.updateSoftMMU(vaddr, paddr, rng)
	return rd.Read(paddr-rng.Start, size), true
}

func (c *cpuState) storeMem(vaddr uint32, size int, data uint32) bool {
	if slot := c.smmuSlot(vaddr); slot.tag == smmuTag(vaddr) {
		hostWrite(slot.page, vaddr&0xfff, size, data)
		return true
	}
	paddr, ok := c.translate(vaddr, accStore)
	if !ok {
		return false
	}
	rng := device.Find(paddr)
	cpuAssert(rng != nil, "bad addr %08x (pc=%08x)", vaddr, c.pc)
	wr, canWrite := rng.Dev.(device.Writer)
	cpuAssert(canWrite, "bad addr %08x: %s is not writable", vaddr, rng.Dev.Name())
	c.updateSoftMMU(vaddr, paddr, rng)
	wr.Write(paddr-rng.Start, size, data)
	return true
}

// step executes one instruction, including the post-step interrupt
// check and exception fix-up.
func (c *cpuState) step() {
	c.updateTimer()

	if c.pc&3 != 0 {
		c.cp0.badVAddr = c.pc
		c.signalException(excAdEL)
	} else {
		c.gpr[0] = 0
		if slot := c.fetchDecode(); slot != nil {
			c.advancePC = true
			slot.handler(slot)
			c.gpr[0] = 0
			if enableTrace {
				c.traceRegisters(slot.raw)
			}
			if c.advancePC {
				if c.isDelaySlot {
					c.pc = c.brTarget
					c.isDelaySlot = false
				} else {
					c.pc += 4
				}
			}
		}
	}

	c.checkInterrupts()

	if c.hasException {
		c.hasException = false
		c.pc = c.brTarget
	}
}

// Execute runs at most n instructions. It returns early when the
// machine leaves the running state.
func Execute(n uint64) {
	if MachineState() == End {
		slog.Info("Program execution has ended. Restart the simulator to run again.")
		return
	}
	SetMachineState(Running)

	c := &sysCPU
	for ; n > 0; n-- {
		c.step()
		if MachineState() != Running {
			return
		}
	}
	if MachineState() == Running {
		SetMachineState(Stop)
	}
}

// Conventional MIPS register names, for traces and the monitor.
var regNames = [32]string{
	"0 ", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

var ninstr uint64

func (c *cpuState) traceRegisters(raw uint32) {
	debug.Debugf("CPU", debugMsk, debugInst,
		"$pc:    0x%08x   $hi:    0x%08x   $lo:    0x%08x", c.pc, c.hi, c.lo)
	debug.Debugf("CPU", debugMsk, debugInst,
		"$ninstr: %08x                  $instr: %08x", ninstr, raw)
	for i := 0; i < 32; i += 4 {
		debug.Debugf("CPU", debugMsk, debugInst,
			"$%s:0x%08x $%s:0x%08x $%s:0x%08x $%s:0x%08x",
			regNames[i], c.gpr[i], regNames[i+1], c.gpr[i+1],
			regNames[i+2], c.gpr[i+2], regNames[i+3], c.gpr[i+3])
	}
	ninstr++
}

// PC returns the current program counter.
func PC() uint32 {
	return sysCPU.pc
}

// Register returns a general purpose register by number.
func Register(i int) uint32 {
	return sysCPU.gpr[i&0x1f]
}

// RegisterName returns the conventional name of a register.
func RegisterName(i int) string {
	return regNames[i&0x1f]
}

// HiLo returns the multiplier accumulators.
func HiLo() (uint32, uint32) {
	return sysCPU.hi, sysCPU.lo
}

// DecodeCacheStats returns decode cache hit and miss counts.
func DecodeCacheStats() (hit, miss uint64) {
	return sysCPU.dcacheHit, sysCPU.dcacheMiss
}

// Peek reads a word for the monitor without architectural side
// effects. Mapped addresses are probed against the TLB but never
// fault. Intended for use while the machine is stopped.
func Peek(vaddr uint32) (uint32, bool) {
	c := &sysCPU
	var paddr uint32
	switch {
	case vaddr >= 0x80000000 && vaddr < 0xa0000000:
		paddr = vaddr - 0x80000000
	case vaddr >= 0xa0000000 && vaddr < 0xc0000000:
		paddr = vaddr - 0xa0000000
	default:
		vpn2 := vaddr >> 13
		odd := (vaddr >> 12) & 1
		found := false
		for i := range c.tlb {
			e := &c.tlb[i]
			if e.vpn2 == vpn2 && (e.g || e.asid == c.cp0.entryHi.asid) && e.lo[odd].v {
				paddr = e.lo[odd].pfn<<12 | vaddr&0xfff
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	rng := device.Find(paddr)
	if rng == nil {
		return 0, false
	}
	rd, ok := rng.Dev.(device.Reader)
	if !ok {
		return 0, false
	}
	return rd.Read(paddr-rng.Start, 4), true
}
