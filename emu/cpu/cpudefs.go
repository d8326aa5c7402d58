/*
   CPU definitions for the MIPS32 simulator.

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

type handler = func(*decodeSlot)

// decodeSlot holds one classified instruction: the handler token plus
// the operand fields pre-extracted from the raw word. Slots double as
// decode-cache entries, keyed by virtual PC.
type decodeSlot struct {
	handler handler
	pc      uint32 // Cache tag; dcInvalidPC when empty
	raw     uint32 // Raw instruction word
	rs      uint8
	rt      uint8
	rd      uint8
	shamt   uint8
	fn      uint8
	sel     uint8
	simm    int32  // Sign-extended 16 bit immediate
	uimm    uint32 // Zero-extended 16 bit immediate
	addr    uint32 // 26 bit jump target field
}

type tlbLo struct {
	pfn uint32 // Physical frame number
	c   uint8  // Cache attribute, kept for tlbr only
	d   bool   // Dirty (write enable)
	v   bool   // Valid
}

type tlbEntry struct {
	vpn2 uint32 // Virtual page pair number; tlbVPNInvalid when empty
	asid uint8
	g    bool
	mask uint32
	lo   [2]tlbLo
}

type smmuEntry struct {
	tag  uint32 // smmuInvalidTag when empty
	page []byte // Host bytes for the whole 4 KiB page
}

type cp0Status struct {
	CU  uint8 // Coprocessor usable bits
	RP  bool
	RE  bool
	BEV bool // Bootstrap exception vectors
	TS  bool
	SR  bool
	NMI bool
	IM  uint8 // Interrupt mask
	UM  bool  // User mode
	ERL bool  // Error level
	EXL bool  // Exception level
	IE  bool  // Interrupt enable
}

type cp0Cause struct {
	BD      bool  // Exception happened in a branch delay slot
	IV      bool  // Use the special interrupt vector
	WP      bool
	IP      uint8 // Interrupt pending
	ExcCode uint8
}

type cp0EntryHi struct {
	vpn2 uint32
	asid uint8
}

type cp0EntryLo struct {
	pfn uint32
	c   uint8
	d   bool
	v   bool
	g   bool
}

type cp0Context struct {
	pteBase uint32
	badVPN2 uint32
}

type cp0Config struct {
	m  bool  // Config1 present
	be bool  // Big endian; always false here
	mt uint8 // MMU type
	k0 uint8 // kseg0 cache attribute, guest writable, ignored
}

type cp0State struct {
	cpr      [32][8]uint32 // Raw backing for registers with no named mirror
	index    uint32        // Probe failure sets bit 31
	random   uint32
	entryLo  [2]cp0EntryLo
	context  cp0Context
	pageMask uint32
	badVAddr uint32
	count    uint64 // 64-bit accumulator, low half architecturally visible
	entryHi  cp0EntryHi
	compare  uint32
	status   cp0Status
	cause    cp0Cause
	epc      uint32
	prid     uint32
	config   cp0Config
	config1  uint32
	errorEPC uint32
}

type cpuState struct {
	gpr [32]uint32 // gpr[0] is rezeroed before every dispatch
	hi  uint32
	lo  uint32
	pc  uint32

	brTarget     uint32 // Pending branch destination
	isDelaySlot  bool   // Current instruction sits in a delay slot
	hasException bool   // PC is replaced by brTarget after this step
	advancePC    bool   // Cleared by handlers that manage PC themselves
	tlbRefill    bool   // Last TLB fault found no matching entry
	base         uint32 // Segment base, used only in segment mode

	cp0 cp0State
	tlb [nrTLBEntries]tlbEntry

	smmu    [smmuSize]smmuEntry
	dcache  [dcacheSize]decodeSlot
	scratch decodeSlot // Decode target when the cache is disabled

	dcacheHit  uint64
	dcacheMiss uint64

	opcodeTable   [64]handler
	specialTable  [64]handler
	special2Table [64]handler
	special3Table [64]handler
	bshflTable    [32]handler
	regimmTable   [32]handler
	cop0RsTable   [32]handler
	cop0FnTable   [64]handler
}

const (
	nrTLBEntries  = 64
	tlbVPNInvalid = ^uint32(0) // Real VPN2 values fit in 19 bits

	smmuBits       = 6
	smmuSize       = 1 << smmuBits
	smmuInvalidTag = ^uint32(0)

	dcacheBits  = 13
	dcacheSize  = 1 << dcacheBits
	dcInvalidPC = 1 // Never matches an aligned PC
)

// Exception codes as they appear in Cause.ExcCode.
const (
	excIntr uint8 = 0  // Interrupt
	excMod  uint8 = 1  // TLB modified
	excTLBL uint8 = 2  // TLB load/fetch
	excTLBS uint8 = 3  // TLB store
	excAdEL uint8 = 4  // Address error on load/fetch
	excAdES uint8 = 5  // Address error on store
	excIBE  uint8 = 6  // Instruction bus error
	excDBE  uint8 = 7  // Data bus error
	excSys  uint8 = 8  // Syscall
	excBp   uint8 = 9  // Breakpoint
	excRI   uint8 = 10 // Reserved instruction
	excCpU  uint8 = 11 // Coprocessor unusable
	excOv   uint8 = 12 // Arithmetic overflow
	excTrap uint8 = 13 // Trap instruction
)

// CP0 register numbers.
const (
	cpIndex    = 0
	cpRandom   = 1
	cpEntryLo0 = 2
	cpEntryLo1 = 3
	cpContext  = 4
	cpPageMask = 5
	cpWired    = 6
	cpBadVAddr = 8
	cpCount    = 9
	cpEntryHi  = 10
	cpCompare  = 11
	cpStatus   = 12
	cpCause    = 13
	cpEPC      = 14
	cpPRId     = 15
	cpConfig   = 16
	cpReserved = 22
	cpErrorEPC = 30
)

// Translation access kinds.
const (
	accFetch = iota
	accLoad
	accStore
)

// Interrupt pending bits in Cause.IP.
const (
	IPSerial uint8 = 0x04
	IPTimer  uint8 = 0x80
)

const (
	// Debug options.
	debugInst = 1 << iota
	debugIRQ
	debugTLB
	debugCP0
)

var debugOption = map[string]int{
	"INST": debugInst, // Trace instruction execution.
	"IRQ":  debugIRQ,  // Trace interrupts and exceptions.
	"TLB":  debugTLB,  // Trace TLB updates.
	"CP0":  debugCP0,  // Trace unhandled CP0 accesses.
}

var debugMsk int
