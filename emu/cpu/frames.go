/*
   Call frame ring: last N guest call and return branches, for the
   monitor's frames command.

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
	"fmt"
	"strings"
)

const nrFrames = 400

type frameKind uint8

const (
	frameNone frameKind = iota
	frameCall
	frameRet
)

type frame struct {
	kind   frameKind
	pc     uint32
	target uint32
}

var (
	enableFrames bool
	framePtr     int
	frames       [nrFrames]frame
)

// SetFrames enables recording of call and return branches.
func SetFrames(on bool) {
	enableFrames = on
}

func framesEnqueueCall(pc, target uint32) {
	if !enableFrames {
		return
	}
	frames[framePtr] = frame{kind: frameCall, pc: pc, target: target}
	framePtr = (framePtr + 1) % nrFrames
}

func framesEnqueueRet(pc, target uint32) {
	if !enableFrames {
		return
	}
	frames[framePtr] = frame{kind: frameRet, pc: pc, target: target}
	framePtr = (framePtr + 1) % nrFrames
}

// DumpFrames renders the collected call/return ring, oldest first.
func DumpFrames() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "last collected %d frames:\n", nrFrames)
	i := framePtr
	for {
		switch frames[i].kind {
		case frameCall:
			fmt.Fprintf(&sb, "%08x: CALL   %08x\n", frames[i].pc, frames[i].target)
		case frameRet:
			fmt.Fprintf(&sb, "%08x: RET TO %08x\n", frames[i].pc, frames[i].target)
		}
		i = (i + 1) % nrFrames
		if i == framePtr {
			break
		}
	}
	return sb.String()
}
