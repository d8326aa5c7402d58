/*
   Interactive monitor commands.

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

package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/wierton/nemu-mips32/emu/cpu"
	"github.com/wierton/nemu-mips32/emu/master"
)

const helpText = `commands:
  go               resume execution
  stop             pause execution
  step [n]         execute n instructions (default 1)
  reg              dump cpu registers
  x <addr> [n]     examine n words of memory (hex address)
  frames           dump recent guest call/return branches
  stats            decode cache statistics
  quit             leave the simulator
`

// Run drives the monitor REPL until quit. Examine commands read guest
// state directly and are meant to be used while the machine is
// stopped.
func Run(masterCh chan master.Packet) {
	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)

	for {
		input, err := rl.Prompt("nemu> ")
		if err != nil {
			masterCh <- master.Packet{Msg: master.Quit}
			return
		}
		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}
		rl.AppendHistory(input)

		switch fields[0] {
		case "go", "c":
			masterCh <- master.Packet{Msg: master.Start}
		case "stop":
			masterCh <- master.Packet{Msg: master.Stop}
		case "step", "s":
			count := uint64(1)
			if len(fields) > 1 {
				n, err := strconv.ParseUint(fields[1], 0, 64)
				if err != nil {
					fmt.Println("step: bad count:", fields[1])
					continue
				}
				count = n
			}
			masterCh <- master.Packet{Msg: master.Step, Count: count}
		case "reg", "r":
			dumpRegisters()
		case "x":
			examine(fields[1:])
		case "frames":
			fmt.Print(cpu.DumpFrames())
		case "stats":
			hit, miss := cpu.DecodeCacheStats()
			fmt.Printf("decode cache: %d hits, %d misses\n", hit, miss)
		case "quit", "q":
			masterCh <- master.Packet{Msg: master.Quit}
			return
		case "help", "?":
			fmt.Print(helpText)
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func dumpRegisters() {
	hi, lo := cpu.HiLo()
	fmt.Printf("$pc:    0x%08x   $hi:    0x%08x   $lo:    0x%08x\n",
		cpu.PC(), hi, lo)
	for i := 0; i < 32; i++ {
		sep := " "
		if (i+1)%4 == 0 {
			sep = "\n"
		}
		fmt.Printf("$%s:0x%08x%s", cpu.RegisterName(i), cpu.Register(i), sep)
	}
}

func examine(args []string) {
	if len(args) == 0 {
		fmt.Println("x: need an address")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		fmt.Println("x: bad address:", args[0])
		return
	}
	count := 1
	if len(args) > 1 {
		if count, err = strconv.Atoi(args[1]); err != nil || count < 1 {
			fmt.Println("x: bad count:", args[1])
			return
		}
	}
	for i := 0; i < count; i++ {
		a := uint32(addr) + uint32(i*4)
		v, ok := cpu.Peek(a)
		if !ok {
			fmt.Printf("%08x: <unmapped>\n", a)
			continue
		}
		fmt.Printf("%08x: %08x\n", a, v)
	}
}
