/*
   Core simulator loop.

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

package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wierton/nemu-mips32/emu/cpu"
	"github.com/wierton/nemu-mips32/emu/event"
	"github.com/wierton/nemu-mips32/emu/master"
)

// Instructions executed between event-queue and control-channel polls.
const batchCycles = 4096

type Core struct {
	wg      sync.WaitGroup
	done    chan struct{} // Signal to shut the simulator down.
	ended   chan struct{} // Closed when the machine reaches END.
	running bool          // Whether the CPU should be executing.
	master  chan master.Packet
}

// New creates the simulation core fed by the given control channel.
func New(master chan master.Packet) *Core {
	return &Core{
		master: master,
		done:   make(chan struct{}),
		ended:  make(chan struct{}),
	}
}

// Start drives the machine: run a batch of instructions, advance the
// device event queue, then look at the control channel. Meant to run
// in its own goroutine; it is the only mutator of CPU state.
func (core *Core) Start() {
	core.wg.Add(1)
	defer core.wg.Done()
	for {
		if core.running {
			cpu.Execute(batchCycles)
			event.Advance(batchCycles)
			if cpu.MachineState() == cpu.End {
				core.running = false
				slog.Info("Machine halted", "pc", cpu.PC())
				close(core.ended)
			}
		} else if event.AnyEvent() {
			event.Advance(1)
		}
		select {
		case <-core.done:
			slog.Info("Shutdown CPU core")
			return
		case packet := <-core.master:
			core.processPacket(packet)
		default:
		}
	}
}

// Ended is closed once the machine reaches the terminal END state.
func (core *Core) Ended() <-chan struct{} {
	return core.ended
}

// Stop shuts the core down and waits for the goroutine to finish.
func (core *Core) Stop() {
	close(core.done)
	done := make(chan struct{})
	go func() {
		core.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
		slog.Warn("Timed out waiting for CPU to finish.")
		return
	}
}

// Process a packet sent to the simulation.
func (core *Core) processPacket(packet master.Packet) {
	switch packet.Msg {
	case master.Start:
		if cpu.MachineState() != cpu.End {
			core.running = true
		}
	case master.Stop:
		core.running = false
		cpu.SetMachineState(cpu.Stop)
	case master.Step:
		if !core.running && cpu.MachineState() != cpu.End {
			cpu.Execute(packet.Count)
			event.Advance(int(packet.Count))
		}
	case master.Quit:
		core.running = false
	}
}
