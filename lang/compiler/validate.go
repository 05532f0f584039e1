package compiler

import "fmt"

// CodeError is a structural bytecode diagnostic raised by ValidateCode.
type CodeError struct {
	Offset  int
	Message string
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.Offset, e.Message)
}

// ValidateCode decodes every instruction in chunk.Code once, the same
// way Disassemble does, and checks the structural bounds SPEC_FULL.md
// §4.4 step 4 and §3.4 require: every JUMP/JUMP_IF_FALSE/LOOP target
// lands exactly on another instruction's first byte (or just past the
// last one), and every CONSTANT/DEFINE_GLOBAL/GET_GLOBAL/SET_GLOBAL/
// GET_FIELD/SET_FIELD/CALL_NATIVE index is within the constant pool,
// and every CALL's function index is within the function table. The
// container package calls this before a chunk reaches the VM, so the
// dispatch loop's own indexing never needs a bounds check.
func ValidateCode(chunk *Chunk) error {
	code := chunk.Code
	boundaries := map[int]bool{len(code): true}

	type jumpSite struct {
		offset int
		target int
	}
	var jumps []jumpSite

	off := 0
	for off < len(code) {
		boundaries[off] = true
		op := OpCode(code[off])
		if int(op) >= int(opCodeCount) {
			return &CodeError{Offset: off, Message: fmt.Sprintf("unknown opcode %d", byte(op))}
		}

		switch op {
		case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
			if off+1 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			idx := int(code[off+1])
			if idx >= len(chunk.Constants) {
				return &CodeError{Offset: off, Message: fmt.Sprintf("constant index %d out of range", idx)}
			}
			off += 2

		case OpGetLocal, OpSetLocal, OpCreateArray:
			if off+1 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			off += 2

		case OpJump, OpJumpIfFalse:
			if off+2 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			dist := int(code[off+1])<<8 | int(code[off+2])
			jumps = append(jumps, jumpSite{offset: off, target: off + 3 + dist})
			off += 3

		case OpLoop:
			if off+2 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			dist := int(code[off+1])<<8 | int(code[off+2])
			jumps = append(jumps, jumpSite{offset: off, target: off + 3 - dist})
			off += 3

		case OpCall:
			if off+3 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			fnIdx := int(code[off+2])<<8 | int(code[off+3])
			if fnIdx >= len(chunk.Functions) {
				return &CodeError{Offset: off, Message: fmt.Sprintf("function index %d out of range", fnIdx)}
			}
			off += 4

		case OpCallNative:
			if off+3 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			idx := int(code[off+2])<<8 | int(code[off+3])
			if idx >= len(chunk.Constants) {
				return &CodeError{Offset: off, Message: fmt.Sprintf("constant index %d out of range", idx)}
			}
			off += 4

		case OpGetField, OpSetField:
			if off+2 >= len(code) {
				return &CodeError{Offset: off, Message: "truncated operand"}
			}
			idx := int(code[off+1])<<8 | int(code[off+2])
			if idx >= len(chunk.Constants) {
				return &CodeError{Offset: off, Message: fmt.Sprintf("constant index %d out of range", idx)}
			}
			off += 3

		default:
			off++
		}
	}

	for _, j := range jumps {
		if j.target < 0 || !boundaries[j.target] {
			return &CodeError{Offset: j.offset, Message: fmt.Sprintf("jump target %d is not an instruction boundary", j.target)}
		}
	}
	return nil
}
