package compiler

// OpCode is a single bytecode instruction mnemonic. Every opcode is one
// byte; operands (when present) are fixed-width and byte-aligned — this
// repo deliberately departs from a variable-length-operand encoding seen
// elsewhere in the corpus (see DESIGN.md).
type OpCode uint8

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpDuplicate
	OpClone
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpNot
	OpAnd
	OpOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpGetLocal
	OpSetLocal
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpCallNative
	OpReturn
	OpCastInt
	OpCastFloat
	OpCastString
	OpCreateArray
	OpGetElement
	OpSetElement
	OpGetField
	OpSetField
	OpPrint
	OpHalt

	opCodeCount
)

// operandWidth reports how many bytes of inline operand follow this
// opcode in the code stream. CALL and CALL_NATIVE have two operands of
// different widths, handled specially by the disassembler and VM rather
// than through this table.
var operandWidth = [opCodeCount]int{
	OpConstant:     1,
	OpGetLocal:     1,
	OpSetLocal:     1,
	OpDefineGlobal: 1,
	OpGetGlobal:    1,
	OpSetGlobal:    1,
	OpJump:         2,
	OpJumpIfFalse:  2,
	OpLoop:         2,
	OpCall:         3, // 1-byte arg count + 2-byte function index
	OpCallNative:   3, // 1-byte arg count + 2-byte pool index
	OpCreateArray:  1,
	OpGetField:     2,
	OpSetField:     2,
}

var opCodeNames = [opCodeCount]string{
	OpConstant:     "CONSTANT",
	OpNil:          "NIL",
	OpTrue:         "TRUE",
	OpFalse:        "FALSE",
	OpPop:          "POP",
	OpDuplicate:    "DUPLICATE",
	OpClone:        "CLONE",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpNegate:       "NEGATE",
	OpEqual:        "EQUAL",
	OpNotEqual:     "NOT_EQUAL",
	OpGreater:      "GREATER",
	OpGreaterEqual: "GREATER_EQUAL",
	OpLess:         "LESS",
	OpLessEqual:    "LESS_EQUAL",
	OpNot:          "NOT",
	OpAnd:          "AND",
	OpOr:           "OR",
	OpBitAnd:       "BIT_AND",
	OpBitOr:        "BIT_OR",
	OpBitXor:       "BIT_XOR",
	OpBitNot:       "BIT_NOT",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpDefineGlobal: "DEFINE_GLOBAL",
	OpGetGlobal:    "GET_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpLoop:         "LOOP",
	OpCall:         "CALL",
	OpCallNative:   "CALL_NATIVE",
	OpReturn:       "RETURN",
	OpCastInt:      "CAST_INT",
	OpCastFloat:    "CAST_FLOAT",
	OpCastString:   "CAST_STRING",
	OpCreateArray:  "CREATE_ARRAY",
	OpGetElement:   "GET_ELEMENT",
	OpSetElement:   "SET_ELEMENT",
	OpGetField:     "GET_FIELD",
	OpSetField:     "SET_FIELD",
	OpPrint:        "PRINT",
	OpHalt:         "HALT",
}

func (op OpCode) String() string {
	if int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "UNKNOWN"
}
