// @license
// Copyright (C) 2025  Dinko Korunic
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package probe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
)

var (
	ErrStackRead      = errors.New("argument outside captured stack")
	ErrUnsupportedABI = errors.New("unsupported calling convention")
)

// Frame is the raw state captured at function entry: argument registers in
// calling convention order and a copy of the stack starting at the stack
// pointer.
type Frame struct {
	Regs  []uint64
	Stack []byte
}

// ABI locates the n-th integer argument of a function at entry. Arguments
// past the register set spill to the stack in 8-byte slots.
//
// This only holds for functions whose arguments are all integer or pointer
// sized and which the compiler did not turn into a local call with a custom
// convention. Kprobes on inlined or constprop clones of a function see
// garbage. Every layout built on top of it is tied to the kernel version it
// was checked against.
type ABI struct {
	Name string
	// RegArgs is the number of integer argument registers.
	RegArgs int
	// StackBase is the offset of the first stack argument from the stack
	// pointer at entry.
	StackBase int
}

var (
	// AMD64 is the System V x86-64 convention: rdi, rsi, rdx, rcx, r8, r9,
	// the return address sits at sp so stack arguments start at sp+8.
	AMD64 = ABI{Name: "amd64", RegArgs: 6, StackBase: 8}
	// ARM64 is AAPCS64: x0-x7, the return address lives in x30 so stack
	// arguments start at sp.
	ARM64 = ABI{Name: "arm64", RegArgs: 8, StackBase: 0}
)

// NativeABI returns the convention of the running kernel.
func NativeABI() (ABI, error) {
	return ABIFor(runtime.GOARCH)
}

// ABIFor returns the convention for a GOARCH value.
func ABIFor(arch string) (ABI, error) {
	switch arch {
	case "amd64":
		return AMD64, nil
	case "arm64":
		return ARM64, nil
	default:
		return ABI{}, fmt.Errorf("%w: %s", ErrUnsupportedABI, arch)
	}
}

// Arg returns the n-th (1-based) argument from f.
func (a ABI) Arg(f Frame, n int) (uint64, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: argument %d", ErrStackRead, n)
	}

	if n <= a.RegArgs {
		if n > len(f.Regs) {
			return 0, fmt.Errorf("%w: register argument %d", ErrStackRead, n)
		}

		return f.Regs[n-1], nil
	}

	off := a.StackBase + 8*(n-a.RegArgs-1)
	if off+8 > len(f.Stack) {
		return 0, fmt.Errorf("%w: argument %d at sp+%d", ErrStackRead, n, off)
	}

	return binary.LittleEndian.Uint64(f.Stack[off:]), nil
}
