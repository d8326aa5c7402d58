/*
   Console UART device.

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

package serial

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/wierton/nemu-mips32/emu/cpu"
	"github.com/wierton/nemu-mips32/emu/event"
)

// Register offsets, 8250 flavored.
const (
	regData   = 0 // RX on read, TX on write
	regStatus = 5 // Line status
)

// Line status bits.
const (
	lsrDataReady = 0x01
	lsrTxEmpty   = 0x60 // Transmit always completes immediately
)

// Size of the device window in physical address space.
const Size = 8

// Host input is polled every pollCycles instructions.
const pollCycles = 4096

// Serial is the guest console. Output goes straight to stdout. Input
// arrives on a host goroutine, crosses into the simulation through a
// channel, and is drained into rxq by an event callback, so the guest
// visible state is only ever touched between instructions.
type Serial struct {
	rxq      []byte
	input    chan byte
	oldState *term.State
}

func New() *Serial {
	return &Serial{input: make(chan byte, 256)}
}

func (*Serial) Name() string {
	return "SERIAL"
}

func (s *Serial) Read(offset uint32, _ int) uint32 {
	switch offset {
	case regData:
		if len(s.rxq) == 0 {
			return 0
		}
		ch := s.rxq[0]
		s.rxq = s.rxq[1:]
		if len(s.rxq) == 0 {
			cpu.ClearIRQ(cpu.IPSerial)
		}
		return uint32(ch)
	case regStatus:
		v := uint32(lsrTxEmpty)
		if len(s.rxq) != 0 {
			v |= lsrDataReady
		}
		return v
	default:
		return 0
	}
}

func (s *Serial) Write(offset uint32, _ int, value uint32) {
	if offset == regData {
		os.Stdout.Write([]byte{byte(value)})
	}
}

// Enqueue pre-loads console input, e.g. a boot command for the guest
// loader.
func (s *Serial) Enqueue(line string) {
	s.rxq = append(s.rxq, line...)
}

// Start begins reading host stdin. With interactive set and stdin a
// terminal, the terminal is switched to raw mode so the guest sees
// individual keystrokes; Ctrl-A ends the machine.
func (s *Serial) Start(interactive bool) {
	if interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			slog.Warn("serial: can't set raw mode", "err", err)
		} else {
			s.oldState = oldState
		}
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				s.input <- buf[0]
			}
		}
	}()

	event.AddEvent(s, s.poll, pollCycles, 0)
}

// Stop restores the host terminal.
func (s *Serial) Stop() {
	if s.oldState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), s.oldState)
		s.oldState = nil
	}
}

// poll runs on the simulation goroutine between instructions.
func (s *Serial) poll(_ int) {
	for {
		select {
		case ch := <-s.input:
			if ch == 0x01 { // Ctrl-A ends the simulation
				slog.Info("Ctrl-A, ending simulation")
				cpu.Halt()
				return
			}
			s.rxq = append(s.rxq, ch)
		default:
			if len(s.rxq) != 0 {
				cpu.RaiseIRQ(cpu.IPSerial)
			}
			event.AddEvent(s, s.poll, pollCycles, 0)
			return
		}
	}
}
