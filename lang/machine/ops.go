package machine

import (
	"strconv"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/host"
	"github.com/sbsvm/sbs/lang/value"
)

// step decodes and executes exactly one instruction, per §4.5.3/§4.5.4.
// Operand shapes mirror lang/compiler/disasm.go's decode table exactly,
// since both packages must agree byte-for-byte on the encoding.
func (vm *VM) step() {
	op := compiler.OpCode(vm.chunk.Code[vm.ip])
	switch op {
	case compiler.OpConstant:
		idx := int(vm.readU8(1))
		vm.ip += 2
		vm.push(vm.chunk.Constants[idx])

	case compiler.OpNil:
		vm.ip++
		vm.push(value.NewNil())

	case compiler.OpTrue:
		vm.ip++
		vm.push(value.NewBool(true))

	case compiler.OpFalse:
		vm.ip++
		vm.push(value.NewBool(false))

	case compiler.OpPop:
		vm.ip++
		vm.pop()

	case compiler.OpDuplicate:
		vm.ip++
		vm.push(vm.peek(0))

	case compiler.OpClone:
		vm.ip++
		vm.push(vm.pop().Clone())

	case compiler.OpAdd:
		vm.ip++
		vm.binaryAdd()

	case compiler.OpSub:
		vm.ip++
		vm.binaryNumeric(op, func(a, b float64) float64 { return a - b })

	case compiler.OpMul:
		vm.ip++
		vm.binaryNumeric(op, func(a, b float64) float64 { return a * b })

	case compiler.OpDiv:
		vm.ip++
		vm.binaryDiv()

	case compiler.OpMod:
		vm.ip++
		vm.binaryMod()

	case compiler.OpNegate:
		vm.ip++
		x := vm.pop()
		if x.Tag() != value.Number {
			vm.fail(KindTypeError, "unary - requires a number, got %s", x.Tag())
			return
		}
		vm.push(value.NewNumber(-x.Number()))

	case compiler.OpEqual:
		vm.ip++
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NewBool(value.Equal(a, b)))

	case compiler.OpNotEqual:
		vm.ip++
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NewBool(!value.Equal(a, b)))

	case compiler.OpGreater:
		vm.ip++
		vm.compareNumeric(op, func(a, b float64) bool { return a > b })

	case compiler.OpGreaterEqual:
		vm.ip++
		vm.compareNumeric(op, func(a, b float64) bool { return a >= b })

	case compiler.OpLess:
		vm.ip++
		vm.compareNumeric(op, func(a, b float64) bool { return a < b })

	case compiler.OpLessEqual:
		vm.ip++
		vm.compareNumeric(op, func(a, b float64) bool { return a <= b })

	case compiler.OpNot:
		vm.ip++
		x := vm.pop()
		vm.push(value.NewBool(!x.Truthy()))

	case compiler.OpAnd:
		vm.ip++
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NewBool(a.Truthy() && b.Truthy()))

	case compiler.OpOr:
		vm.ip++
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NewBool(a.Truthy() || b.Truthy()))

	case compiler.OpBitAnd:
		vm.ip++
		vm.binaryInt(op, func(a, b int64) int64 { return a & b })

	case compiler.OpBitOr:
		vm.ip++
		vm.binaryInt(op, func(a, b int64) int64 { return a | b })

	case compiler.OpBitXor:
		vm.ip++
		vm.binaryInt(op, func(a, b int64) int64 { return a ^ b })

	case compiler.OpBitNot:
		vm.ip++
		x := vm.pop()
		if x.Tag() != value.Number {
			vm.fail(KindTypeError, "~ requires a number, got %s", x.Tag())
			return
		}
		vm.push(value.NewNumber(float64(^int64(x.Number()))))

	case compiler.OpGetLocal:
		slot := int(vm.readU8(1))
		vm.ip += 2
		vm.push(vm.stack[vm.frameBase()+slot])

	case compiler.OpSetLocal:
		slot := int(vm.readU8(1))
		vm.ip += 2
		vm.stack[vm.frameBase()+slot] = vm.peek(0)

	case compiler.OpDefineGlobal:
		idx := int(vm.readU8(1))
		vm.ip += 2
		name := vm.chunk.Constants[idx].Str()
		vm.globals[name] = vm.pop()

	case compiler.OpGetGlobal:
		idx := int(vm.readU8(1))
		vm.ip += 2
		name := vm.chunk.Constants[idx].Str()
		v, ok := vm.globals[name]
		if !ok {
			vm.fail(KindUndefinedGlobal, "undefined global %q", name)
			return
		}
		vm.push(v)

	case compiler.OpSetGlobal:
		idx := int(vm.readU8(1))
		vm.ip += 2
		name := vm.chunk.Constants[idx].Str()
		if _, ok := vm.globals[name]; !ok {
			vm.fail(KindUndefinedGlobal, "undefined global %q", name)
			return
		}
		vm.globals[name] = vm.peek(0)

	case compiler.OpJump:
		dist := vm.readU16(1)
		vm.ip += uint32(3 + dist)

	case compiler.OpJumpIfFalse:
		dist := vm.readU16(1)
		// Peek, don't pop: the compiler emits an explicit POP on both
		// the fall-through and jump-target paths of every if/while/for/
		// switch it compiles this opcode for.
		cond := vm.peek(0)
		if !cond.Truthy() {
			vm.ip += uint32(3 + dist)
		} else {
			vm.ip += 3
		}

	case compiler.OpLoop:
		dist := vm.readU16(1)
		vm.ip = vm.ip + 3 - uint32(dist)

	case compiler.OpCall:
		vm.execCall()

	case compiler.OpCallNative:
		vm.execCallNative()

	case compiler.OpReturn:
		vm.execReturn()

	case compiler.OpCastInt:
		vm.ip++
		vm.push(value.NewNumber(castToInt(vm.pop())))

	case compiler.OpCastFloat:
		vm.ip++
		vm.push(value.NewNumber(castToFloat(vm.pop())))

	case compiler.OpCastString:
		vm.ip++
		vm.push(value.NewString(vm.pop().Render()))

	case compiler.OpCreateArray:
		n := int(vm.readU8(1))
		vm.ip += 2
		elems := make([]value.Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(value.NewArray(elems))

	case compiler.OpGetElement:
		vm.ip++
		vm.execGetElement()

	case compiler.OpSetElement:
		vm.ip++
		vm.execSetElement()

	case compiler.OpGetField:
		idx := vm.readU16(1)
		vm.ip += 3
		vm.execGetField(idx)

	case compiler.OpSetField:
		idx := vm.readU16(1)
		vm.ip += 3
		vm.execSetField(idx)

	case compiler.OpPrint:
		vm.ip++
		v := vm.pop()
		vm.host.Log(host.LevelInfo, "%s", v.Render())

	case compiler.OpHalt:
		vm.ip++
		vm.state = StateFinished

	default:
		vm.fail(KindInvalidBytecode, "unknown opcode %d at offset %d", byte(op), vm.ip)
	}
}

func (vm *VM) frameBase() int {
	if len(vm.frames) == 0 {
		return 0
	}
	return vm.frames[len(vm.frames)-1].stackBase
}

// binaryAdd implements §4.5.4's ADD: numeric sum if both operands are
// numbers, string concatenation if either is a string (the other
// stringified via the same rule as CAST_STRING), TypeError otherwise.
func (vm *VM) binaryAdd() {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() == value.Number && b.Tag() == value.Number {
		vm.push(value.NewNumber(a.Number() + b.Number()))
		return
	}
	if a.Tag() == value.String || b.Tag() == value.String {
		vm.push(value.NewString(a.Render() + b.Render()))
		return
	}
	vm.fail(KindTypeError, "+ requires two numbers or a string operand, got %s and %s", a.Tag(), b.Tag())
}

func (vm *VM) binaryNumeric(op compiler.OpCode, fn func(a, b float64) float64) {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() != value.Number || b.Tag() != value.Number {
		vm.fail(KindTypeError, "%s requires two numbers, got %s and %s", op, a.Tag(), b.Tag())
		return
	}
	vm.push(value.NewNumber(fn(a.Number(), b.Number())))
}

func (vm *VM) binaryDiv() {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() != value.Number || b.Tag() != value.Number {
		vm.fail(KindTypeError, "/ requires two numbers, got %s and %s", a.Tag(), b.Tag())
		return
	}
	if b.Number() == 0 {
		vm.fail(KindDivisionByZero, "division by zero")
		return
	}
	vm.push(value.NewNumber(a.Number() / b.Number()))
}

// binaryMod follows the sign of the dividend, per §4.5.4.
func (vm *VM) binaryMod() {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() != value.Number || b.Tag() != value.Number {
		vm.fail(KindTypeError, "%% requires two numbers, got %s and %s", a.Tag(), b.Tag())
		return
	}
	ib := int64(b.Number())
	if ib == 0 {
		vm.fail(KindDivisionByZero, "modulo by zero")
		return
	}
	ia := int64(a.Number())
	vm.push(value.NewNumber(float64(ia % ib)))
}

func (vm *VM) compareNumeric(op compiler.OpCode, fn func(a, b float64) bool) {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() != value.Number || b.Tag() != value.Number {
		vm.fail(KindTypeError, "%s requires two numbers, got %s and %s", op, a.Tag(), b.Tag())
		return
	}
	vm.push(value.NewBool(fn(a.Number(), b.Number())))
}

func (vm *VM) binaryInt(op compiler.OpCode, fn func(a, b int64) int64) {
	b := vm.pop()
	a := vm.pop()
	if a.Tag() != value.Number || b.Tag() != value.Number {
		vm.fail(KindTypeError, "%s requires two numbers, got %s and %s", op, a.Tag(), b.Tag())
		return
	}
	vm.push(value.NewNumber(float64(fn(int64(a.Number()), int64(b.Number())))))
}

func castToInt(v value.Value) float64 {
	switch v.Tag() {
	case value.Number:
		return float64(int64(v.Number()))
	case value.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case value.String:
		n, err := strconv.ParseFloat(v.Str(), 64)
		if err != nil {
			return 0
		}
		return float64(int64(n))
	default:
		return 0
	}
}

func castToFloat(v value.Value) float64 {
	switch v.Tag() {
	case value.Number:
		return v.Number()
	case value.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case value.String:
		n, err := strconv.ParseFloat(v.Str(), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// execCall implements §4.5.4's CALL: arity check, frame push, jump.
func (vm *VM) execCall() {
	argc := int(vm.readU8(1))
	fnIdx := vm.readU16(2)
	vm.ip += 4

	if fnIdx < 0 || fnIdx >= len(vm.chunk.Functions) {
		vm.fail(KindInvalidBytecode, "call to undefined function index %d", fnIdx)
		return
	}
	fn := vm.chunk.Functions[fnIdx]
	if argc != fn.Arity {
		vm.fail(KindArityMismatch, "function %q expects %d arguments, got %d", fn.Name, fn.Arity, argc)
		return
	}
	if vm.limits.MaxCallDepth > 0 && len(vm.frames)+1 > vm.limits.MaxCallDepth {
		vm.fail(KindCallDepthExceeded, "call depth exceeded %d", vm.limits.MaxCallDepth)
		return
	}
	vm.frames = append(vm.frames, frame{
		functionAddress: fn.Address,
		returnAddress:   vm.ip,
		stackBase:       len(vm.stack) - argc,
		name:            fn.Name,
	})
	vm.ip = fn.Address
}

// execCallNative implements §4.5.4's CALL_NATIVE. Arguments are
// collected in call order and the native receives the VM itself as an
// opaque `any` handle so it can call Pause.
func (vm *VM) execCallNative() {
	argc := int(vm.readU8(1))
	nameIdx := vm.readU16(2)
	vm.ip += 4

	name := vm.chunk.Constants[nameIdx].Str()
	fn, ok := vm.host.Native(name)
	if !ok {
		vm.fail(KindUnknownNative, "unknown native %q", name)
		return
	}
	args := append([]value.Value(nil), vm.stack[len(vm.stack)-argc:]...)
	vm.stack = vm.stack[:len(vm.stack)-argc]

	result, err := fn(vm, args)
	if err != nil {
		vm.fail(KindNativeError, "native %q: %v", name, err)
		return
	}
	vm.push(result)
}

// execReturn implements §4.5.4's RETURN. The top level is not modeled
// as a synthetic call frame (unlike the corpus interpreter this was
// grounded on), so an explicit top-level `return;` — legal to compile,
// see compileReturn — has no frame to pop; it ends the program
// directly rather than underflowing the frame stack. In the ordinary
// case (returning from within a function), popping the frame never by
// itself finishes the program: the top-level HALT opcode is what ends
// execution, since control simply resumes at the call site.
func (vm *VM) execReturn() {
	retVal := vm.pop()
	if len(vm.frames) == 0 {
		vm.state = StateFinished
		return
	}
	fr := vm.frames[len(vm.frames)-1]
	vm.stack = vm.stack[:fr.stackBase]
	vm.ip = fr.returnAddress
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.push(retVal)
}

func (vm *VM) execGetElement() {
	idxVal := vm.pop()
	arrVal := vm.pop()
	if arrVal.Tag() != value.Array {
		vm.fail(KindTypeError, "[] requires an array, got %s", arrVal.Tag())
		return
	}
	if idxVal.Tag() != value.Number {
		vm.fail(KindTypeError, "array index must be a number, got %s", idxVal.Tag())
		return
	}
	arr := arrVal.Array()
	i := int(idxVal.Number())
	if i < 0 || i >= len(arr) {
		vm.fail(KindIndexOutOfBounds, "index %d out of bounds for array of length %d", i, len(arr))
		return
	}
	vm.push(arr[i])
}

// execSetElement mutates the array in place (arrays have reference
// semantics: Value.Array() shares the backing slice) and leaves the
// assigned value on the stack, since ArrayAssignExpr is an expression.
func (vm *VM) execSetElement() {
	val := vm.pop()
	idxVal := vm.pop()
	arrVal := vm.pop()
	if arrVal.Tag() != value.Array {
		vm.fail(KindTypeError, "[]= requires an array, got %s", arrVal.Tag())
		return
	}
	if idxVal.Tag() != value.Number {
		vm.fail(KindTypeError, "array index must be a number, got %s", idxVal.Tag())
		return
	}
	arr := arrVal.Array()
	i := int(idxVal.Number())
	if i < 0 || i >= len(arr) {
		vm.fail(KindIndexOutOfBounds, "index %d out of bounds for array of length %d", i, len(arr))
		return
	}
	arr[i] = val
	vm.push(val)
}

func (vm *VM) execGetField(nameIdx int) {
	obj := vm.pop()
	if obj.Tag() != value.Struct {
		vm.fail(KindTypeError, ".field requires a struct, got %s", obj.Tag())
		return
	}
	name := vm.chunk.Constants[nameIdx].Str()
	v, ok := obj.Struct().Lookup(name)
	if !ok {
		vm.fail(KindUnknownField, "struct %s has no field %q", obj.Struct().Name, name)
		return
	}
	vm.push(v)
}

// execSetField inserts the field if it does not already exist: struct
// literals are open, matching the name-keyed-map semantics §4.5.4
// describes. The assigned value is left on the stack.
func (vm *VM) execSetField(nameIdx int) {
	val := vm.pop()
	obj := vm.pop()
	if obj.Tag() != value.Struct {
		vm.fail(KindTypeError, ".field= requires a struct, got %s", obj.Tag())
		return
	}
	name := vm.chunk.Constants[nameIdx].Str()
	obj.Struct().Set(name, val)
	vm.push(val)
}
