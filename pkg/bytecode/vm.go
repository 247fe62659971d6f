package bytecode

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pix.vm")

// VM executes an assembled memory image one instruction word at a time.
// It is not safe for concurrent use; callers interleave stepping with their
// own work on one goroutine.
type VM struct {
	mem  *Memory
	ip   uint32 // byte address of the current instruction
	base uint32 // frame base for load-rel/store-rel

	terminated bool
	exitCode   int32
	steps      uint64

	out io.Writer

	// Trace logs every decoded instruction at debug level.
	Trace bool
}

// Option configures a VM.
type Option func(*VM)

// WithOutput directs print intrinsics to w (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithTrace enables per-instruction trace logging.
func WithTrace(on bool) Option {
	return func(vm *VM) { vm.Trace = on }
}

// NewVM creates a VM over mem. The stack pointer and frame base start at the
// end of memory; execution starts at address 0.
func NewVM(mem *Memory, opts ...Option) *VM {
	vm := &VM{
		mem: mem,
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.Reset()
	return vm
}

// Reset rewinds the VM to the start of the image without touching code.
func (vm *VM) Reset() {
	top := uint32(vm.mem.Size())
	vm.mem.SetTop(top)
	vm.base = top
	vm.ip = 0
	vm.terminated = false
	vm.exitCode = 0
	vm.steps = 0
}

// Memory returns the VM's memory.
func (vm *VM) Memory() *Memory { return vm.mem }

// IP returns the byte address of the next instruction.
func (vm *VM) IP() uint32 { return vm.ip }

// Base returns the current frame base.
func (vm *VM) Base() uint32 { return vm.base }

// Terminated reports whether the exit intrinsic has run.
func (vm *VM) Terminated() bool { return vm.terminated }

// ExitCode returns the status passed to the exit intrinsic.
func (vm *VM) ExitCode() int32 { return vm.exitCode }

// Steps returns the number of instructions executed so far.
func (vm *VM) Steps() uint64 { return vm.steps }

// ExecuteQuantum executes up to q steps, stopping early on termination.
// It returns the number of steps executed.
func (vm *VM) ExecuteQuantum(q int) int {
	n := 0
	for ; n < q && !vm.terminated; n++ {
		vm.ExecuteStep()
	}
	return n
}

// Run executes quanta of q steps until termination, ctx cancellation, or
// maxSteps (0 = unlimited) is exceeded. Fatal VM faults are returned as
// errors rather than panics.
func (vm *VM) Run(ctx context.Context, q int, maxSteps uint64) (err error) {
	if q <= 0 {
		q = 1
	}
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			err = fe
		}
	}()

	for !vm.terminated {
		if err := ctx.Err(); err != nil {
			return err
		}
		vm.ExecuteQuantum(q)
		if maxSteps > 0 && vm.steps >= maxSteps && !vm.terminated {
			return fmt.Errorf("step limit of %d exceeded", maxSteps)
		}
	}
	return nil
}

// ExecuteStep fetches, decodes and executes one instruction. It is a no-op
// once the VM has terminated.
func (vm *VM) ExecuteStep() {
	if vm.terminated {
		return
	}

	word := vm.mem.Word(vm.ip)
	op := UnpackOpcode(word)
	data := SignExtend(UnpackPayload(word))

	if vm.Trace {
		log.Debugf("[%04x] %-20s base=%04x top=%04x", vm.ip, Disassemble(word), vm.base, vm.mem.Top())
	}

	switch op {
	case OpNop:
		// Do nothing

	case OpECall:
		vm.ecall(Intrinsic(UnpackPayload(word)))

	case OpCall:
		vm.mem.PushWord(vm.base)
		vm.mem.PushWord(vm.ip + WordSize)
		vm.jumpTo(data)
		vm.base = vm.mem.Top()

	case OpRet:
		x := vm.mem.PopWord()
		vm.mem.SetTop(vm.base)
		ret := vm.mem.PopWord()
		vm.base = vm.mem.PopWord()
		vm.mem.Release(uint32(data))
		vm.mem.PushWord(x)
		vm.jumpToAddress(ret)

	case OpJump:
		vm.jumpTo(data)

	case OpJumpIf:
		if vm.mem.PopWord() != 0 {
			vm.jumpTo(data)
		}

	case OpJumpIfNot:
		if vm.mem.PopWord() == 0 {
			vm.jumpTo(data)
		}

	case OpEnter:
		vm.mem.Reserve(uint32(data))

	case OpPush:
		vm.mem.PushWord(uint32(data))

	case OpPop:
		vm.mem.PopWord()

	case OpLoadRel:
		vm.mem.PushWord(vm.mem.Word(vm.relative(data)))

	case OpStoreRel:
		vm.mem.SetWord(vm.relative(data), vm.mem.PopWord())

	case OpLoadAbs:
		vm.mem.PushWord(vm.mem.Word(uint32(data) * WordSize))

	case OpStoreAbs:
		vm.mem.SetWord(uint32(data)*WordSize, vm.mem.PopWord())

	case OpIAdd, OpISub, OpIMul, OpIDiv, OpIMod,
		OpILt, OpILe, OpIGt, OpIGe, OpEqu, OpNeq:
		b := int32(vm.mem.PopWord())
		a := int32(vm.mem.PopWord())
		vm.mem.PushWord(uint32(binaryOp(op, a, b)))

	default:
		panic(Fatalf("unknown opcode 0x%02X at 0x%X", byte(op), vm.ip))
	}

	vm.ip += WordSize
	vm.steps++
}

// relative computes base + 4*off.
func (vm *VM) relative(off int32) uint32 {
	return uint32(int64(vm.base) + int64(off)*WordSize)
}

// jumpTo jumps to a word index. The post-increment in ExecuteStep lands on it.
func (vm *VM) jumpTo(target int32) {
	vm.jumpToAddress(uint32(target) * WordSize)
}

func (vm *VM) jumpToAddress(addr uint32) {
	vm.ip = addr - WordSize
}

func binaryOp(op Opcode, a, b int32) int32 {
	switch op {
	case OpIAdd:
		return a + b
	case OpISub:
		return a - b
	case OpIMul:
		return a * b
	case OpIDiv:
		if b == 0 {
			panic(Fatalf("division by zero"))
		}
		return a / b
	case OpIMod:
		if b == 0 {
			panic(Fatalf("modulo by zero"))
		}
		return a % b
	case OpILt:
		return boolWord(a < b)
	case OpILe:
		return boolWord(a <= b)
	case OpIGt:
		return boolWord(a > b)
	case OpIGe:
		return boolWord(a >= b)
	case OpEqu:
		return boolWord(a == b)
	case OpNeq:
		return boolWord(a != b)
	}
	panic(Fatalf("unmapped binary opcode %s", op))
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) ecall(id Intrinsic) {
	switch id {
	case IntrinsicNone:

	case IntrinsicPrintInt:
		fmt.Fprintf(vm.out, "%d\n", int32(vm.mem.PopWord()))
		vm.mem.PushWord(0)

	case IntrinsicPrintBool:
		fmt.Fprintf(vm.out, "%t\n", vm.mem.PopWord() != 0)
		vm.mem.PushWord(0)

	case IntrinsicExit:
		vm.exitCode = int32(vm.mem.PopWord())
		vm.terminated = true

	default:
		panic(Fatalf("unmapped intrinsic: %d", uint32(id)))
	}
}
