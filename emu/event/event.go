package event

/*
 * nemu-mips32 - Cycle event scheduler
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

import (
	D "github.com/wierton/nemu-mips32/emu/device"
)

// Devices poll their host-side mailboxes through this queue. The core
// loop advances it between instruction batches, so callbacks always run
// on the simulation goroutine, never concurrently with the CPU.

type Callback = func(iarg int)

type Event struct {
	time int      // Number of cycles to event, relative to previous
	dev  D.Device // Device event is registered to
	cb   Callback // Function to call back
	iarg int      // Integer argument
	prev *Event
	next *Event
}

type EventList struct {
	head *Event
	tail *Event
}

var el EventList

// AddEvent schedules cb to run in time cycles. A time of zero runs the
// callback immediately.
func AddEvent(dev D.Device, cb Callback, time int, iarg int) {
	if time == 0 {
		cb(iarg)
		return
	}

	ev := &Event{dev: dev, cb: cb, time: time, iarg: iarg}

	evptr := el.head
	if evptr == nil {
		el.head = ev
		el.tail = ev
		return
	}

	// Scan for the place to insert it, keeping times relative to the
	// preceding event.
	for evptr != nil {
		if ev.time <= evptr.time {
			evptr.time -= ev.time
			ev.prev = evptr.prev
			ev.next = evptr
			evptr.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				el.head = ev
			}
			return
		}
		ev.time -= evptr.time
		evptr = evptr.next
	}

	// Ran past the end, put it on the tail.
	ev.prev = el.tail
	el.tail.next = ev
	el.tail = ev
}

// CancelEvent removes a pending event identified by device and iarg.
func CancelEvent(dev D.Device, iarg int) {
	for evptr := el.head; evptr != nil; evptr = evptr.next {
		if evptr.dev != dev || evptr.iarg != iarg {
			continue
		}
		nxt := evptr.next
		if nxt != nil {
			// Give our remaining time to the next event.
			nxt.time += evptr.time
			nxt.prev = evptr.prev
		} else {
			el.tail = evptr.prev
		}
		if evptr.prev != nil {
			evptr.prev.next = evptr.next
		} else {
			el.head = evptr.next
		}
		return
	}
}

// AnyEvent reports whether anything is still scheduled.
func AnyEvent() bool {
	return el.head != nil
}

// Advance moves time forward by t cycles and fires any events that
// come due.
func Advance(t int) {
	evptr := el.head
	if evptr == nil {
		return
	}
	evptr.time -= t
	for evptr != nil && evptr.time <= 0 {
		carry := evptr.time
		el.head = evptr.next
		if el.head != nil {
			el.head.prev = nil
			el.head.time += carry
		} else {
			el.tail = nil
		}
		evptr.cb(evptr.iarg)
		evptr = el.head
	}
}
