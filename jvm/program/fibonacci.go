package program

import "fmt"

const (
	labelMain = "main"
	labelFib  = "fib"
	labelBase = "base"
)

// Fibonacci builds the recursive Fibonacci image for a calling convention.
// The argument is the image input literal; fib(n) = 1 for n < 3.
func Fibonacci(conv Convention) (*Image, error) {
	b := NewBuilder()
	switch conv {
	case Linked:
		linkedFibonacci(b)
	case Fast:
		fastFibonacci(b)
	default:
		return nil, fmt.Errorf("fibonacci: %s", conv)
	}
	return b.Build(labelMain)
}

// linkedFibonacci passes n on the stack: the argument is slot -5 in the callee.
func linkedFibonacci(b *Builder) {
	b.Label(labelMain).
		Emit(ADD_SP_4).
		StoreInput(0).
		Emit(PUSH, 0).
		Call(labelFib).
		Emit(POP_I32).
		Emit(RET_N, 4)

	b.Label(labelFib).
		Emit(CMP_IMM_U32, -5, 3, int64(CondJL)).
		Jump(JL_NEAR, labelBase).
		Emit(ADD_SP, 8).
		Emit(MOVE, 1, -5).
		Emit(DEC, 1).
		Emit(PUSH, 1).
		Call(labelFib).
		Emit(POP_I32).
		Emit(COPY_FROM_EAX, 0).
		Emit(DEC, 1).
		Emit(PUSH, 1).
		Call(labelFib).
		Emit(POP_I32).
		Emit(ADD_EAX, 0).
		Emit(RET_N, 8)
	b.Label(labelBase).
		Emit(RET_EAX, 1)
}

// fastFibonacci reads n straight out of the caller's frame: caller slot 0 is callee slot -4
// for an 8-byte caller frame.
func fastFibonacci(b *Builder) {
	b.Label(labelMain).
		StoreInput(0).
		FastCall(8, labelFib).
		Emit(RET_N, 8)

	b.Label(labelFib).
		Emit(CMP_IMM_U32, -4, 3, int64(CondJL)).
		Jump(JL_NEAR, labelBase).
		Emit(MOVE, 0, -4).
		Emit(DEC, 0).
		FastCall(8, labelFib).
		Emit(COPY_FROM_EAX, 1).
		Emit(DEC, 0).
		FastCall(8, labelFib).
		Emit(ADD_EAX, 1).
		Emit(RET_N, 8)
	b.Label(labelBase).
		Emit(RET_EAX_N, 8, 1)
}

// FibReference is the native recursive function the Fibonacci images mirror.
func FibReference(n uint32) uint32 {
	if n < 3 {
		return 1
	}
	return FibReference(n-1) + FibReference(n-2)
}
