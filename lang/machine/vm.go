// Package machine implements the stack-based virtual machine that
// executes a lang/compiler Chunk, per SPEC_FULL.md §4.5. It is a single-
// threaded, cooperative interpreter: one VM instance owns its stack,
// frames, globals, and instruction pointer exclusively, mirroring the
// corpus's own single-threaded interpreter posture (see
// lang/machine/machine.go's run() in the teacher this was grounded on)
// rather than introducing any internal locking.
package machine

import (
	"context"
	"time"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/host"
	"github.com/sbsvm/sbs/lang/value"
)

// VM executes a single Chunk at a time. Create one with New, run it with
// Execute, and — if a native paused it — continue with Resume.
type VM struct {
	host   *host.Host
	limits host.Limits

	chunk   *compiler.Chunk
	stack   []value.Value
	frames  []frame
	globals map[string]value.Value

	ip uint32

	instructionCount uint64
	startTime        time.Time

	state State
	errs  []*Error
}

// New returns a VM in state Ready, bound to the given host for native
// dispatch and logging. Pass host.DefaultLimits() for the defaults in
// §5's resource table.
func New(h *host.Host, limits host.Limits) *VM {
	if h == nil {
		h = host.New()
	}
	return &VM{host: h, limits: limits, state: StateReady}
}

func (vm *VM) State() State { return vm.state }

// Errors renders accumulated diagnostics as strings, per §6.4's
// errors() -> [string].
func (vm *VM) Errors() []string {
	out := make([]string, len(vm.errs))
	for i, e := range vm.errs {
		out[i] = e.Error()
	}
	return out
}

// ErrorValues exposes the same diagnostics as typed *Error values, for
// callers that want to switch on Kind() rather than parse strings.
func (vm *VM) ErrorValues() []*Error { return vm.errs }

func (vm *VM) SetLimits(limits host.Limits) { vm.limits = limits }

// Pause transitions the VM to Paused. It is meant to be called by a
// native function during its own invocation (§4.5.2); the main loop then
// stops at its next iteration boundary. In any state other than Running
// it does nothing.
func (vm *VM) Pause() {
	if vm.state == StateRunning {
		vm.state = StatePaused
	}
}

// Execute installs chunk and runs it from its entry point. It does not
// validate the chunk: magic, signature and structural bounds are checked
// only by container.Read, and trust policy only by container.VerifyTrust.
// It returns false iff execution ended in State Error; a native-induced
// pause or a clean finish both return true, per §4.5.2/§6.4.
func (vm *VM) Execute(ctx context.Context, chunk *compiler.Chunk) bool {
	vm.chunk = chunk
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.globals = make(map[string]value.Value)
	vm.ip = chunk.EntryPoint
	vm.instructionCount = 0
	vm.startTime = time.Now()
	vm.errs = nil
	vm.state = StateRunning
	return vm.run(ctx)
}

// Resume continues a Paused VM at the instruction following the
// CALL_NATIVE that paused it. It returns false if the VM was not
// Paused.
func (vm *VM) Resume(ctx context.Context) bool {
	if vm.state != StatePaused {
		return false
	}
	vm.state = StateRunning
	return vm.run(ctx)
}

func (vm *VM) run(ctx context.Context) bool {
	for vm.state == StateRunning {
		select {
		case <-ctx.Done():
			vm.fail(KindTimeout, "context cancelled: %v", ctx.Err())
			return false
		default:
		}
		if vm.limits.MaxInstructions > 0 && vm.instructionCount >= vm.limits.MaxInstructions {
			vm.fail(KindInstructionLimit, "exceeded instruction limit of %d", vm.limits.MaxInstructions)
			return false
		}
		if vm.limits.MaxExecutionTime > 0 && time.Since(vm.startTime) > vm.limits.MaxExecutionTime {
			vm.fail(KindTimeout, "exceeded execution time limit of %s", vm.limits.MaxExecutionTime)
			return false
		}
		vm.step()
		vm.instructionCount++
	}
	return vm.state != StateError
}

func (vm *VM) fail(kind, format string, args ...any) {
	vm.errs = append(vm.errs, newError(kind, format, args...))
	vm.state = StateError
}

func (vm *VM) push(v value.Value) bool {
	if vm.limits.MaxStackDepth > 0 && len(vm.stack) >= vm.limits.MaxStackDepth {
		vm.fail(KindStackOverflow, "stack depth exceeded %d", vm.limits.MaxStackDepth)
		return false
	}
	vm.stack = append(vm.stack, v)
	return true
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(fromTop int) value.Value {
	return vm.stack[len(vm.stack)-1-fromTop]
}

func (vm *VM) currentFrame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

// readU8/readU16 read an inline operand at ip+offset without advancing
// ip; callers advance ip themselves once the whole instruction (opcode
// + operand) has been consumed, mirroring the disassembler's own
// decode shapes in lang/compiler/disasm.go.
func (vm *VM) readU8(offset uint32) byte {
	return vm.chunk.Code[vm.ip+offset]
}

func (vm *VM) readU16(offset uint32) int {
	return int(vm.chunk.Code[vm.ip+offset])<<8 | int(vm.chunk.Code[vm.ip+offset+1])
}
