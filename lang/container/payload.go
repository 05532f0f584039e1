package container

import (
	"bytes"
	"math"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/value"
)

const (
	tagNil    = 0
	tagBool   = 1
	tagNumber = 2
	tagString = 3
	tagArray  = 4
)

func writeLPString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// encodePayload implements §4.4's payload layout: metadata, source hash,
// code, constants, functions.
func encodePayload(chunk *compiler.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	m := chunk.Metadata

	buf.WriteByte(byte(m.CompilerType))
	writeU32(&buf, uint32(m.Flags))
	writeLPString(&buf, m.CompilerName)
	writeLPString(&buf, m.CompilerVersion)
	writeLPString(&buf, m.EngineVersion)
	writeLPString(&buf, m.GameName)
	writeLPString(&buf, m.GameVersion)
	writeLPString(&buf, m.AuthorName)
	writeLPString(&buf, m.OperatingSystem)
	writeLPString(&buf, m.MachineName)
	var t8 [8]byte
	putU64(t8[:], m.CompilationTime)
	buf.Write(t8[:])
	writeLPString(&buf, m.SourceFileName)
	writeU32(&buf, m.SourceFileSize)
	writeLPString(&buf, m.SourceChecksum)
	if chunk.Version >= 2 {
		if m.IsMission {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeLPString(&buf, chunk.SourceHash)

	writeU32(&buf, uint32(len(chunk.Code)))
	buf.Write(chunk.Code)

	writeU32(&buf, uint32(len(chunk.Constants)))
	for _, v := range chunk.Constants {
		if err := encodeConstant(&buf, v); err != nil {
			return nil, err
		}
	}

	writeU32(&buf, uint32(len(chunk.Functions)))
	for _, fn := range chunk.Functions {
		writeLPString(&buf, fn.Name)
		writeU32(&buf, fn.Address)
		writeU32(&buf, uint32(fn.Arity))
	}

	return buf.Bytes(), nil
}

// encodeConstant never emits an ARRAY-tagged constant from this repo's
// own compiler (array literals always compile to CREATE_ARRAY at run
// time — see §9's resolution of the array-serialization gap); the
// ARRAY case below exists only so Read can round-trip a foreign
// container that does emit one.
func encodeConstant(buf *bytes.Buffer, v value.Value) error {
	switch v.Tag() {
	case value.Nil:
		buf.WriteByte(tagNil)
	case value.Bool:
		buf.WriteByte(tagBool)
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.Number:
		buf.WriteByte(tagNumber)
		var b [8]byte
		putF64(b[:], v.Number())
		buf.Write(b[:])
	case value.String:
		buf.WriteByte(tagString)
		writeLPString(buf, v.Str())
	case value.Array:
		buf.WriteByte(tagArray)
		writeU32(buf, uint32(len(v.Array())))
	default:
		return &Error{ErrKind: KindMalformedBytecode, Message: "struct values cannot be placed in the constant pool"}
	}
	return nil
}

func decodePayload(data []byte, version uint32) (*compiler.Chunk, error) {
	r := &reader{buf: data}
	chunk := compiler.NewChunk()
	chunk.Version = version

	chunk.Metadata.CompilerType = compiler.CompilerType(r.u8())
	chunk.Metadata.Flags = compiler.Flag(r.u32())
	chunk.Metadata.CompilerName = r.lpstring()
	chunk.Metadata.CompilerVersion = r.lpstring()
	chunk.Metadata.EngineVersion = r.lpstring()
	chunk.Metadata.GameName = r.lpstring()
	chunk.Metadata.GameVersion = r.lpstring()
	chunk.Metadata.AuthorName = r.lpstring()
	chunk.Metadata.OperatingSystem = r.lpstring()
	chunk.Metadata.MachineName = r.lpstring()
	chunk.Metadata.CompilationTime = r.u64()
	chunk.Metadata.SourceFileName = r.lpstring()
	chunk.Metadata.SourceFileSize = r.u32()
	chunk.Metadata.SourceChecksum = r.lpstring()
	if version >= 2 {
		chunk.Metadata.IsMission = r.u8() != 0
	}

	chunk.SourceHash = r.lpstring()

	codeLen := r.u32()
	chunk.Code = append([]byte(nil), r.bytes(int(codeLen))...)

	constCount := r.u32()
	for i := uint32(0); i < constCount; i++ {
		v, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		chunk.Constants = append(chunk.Constants, v)
	}

	funcCount := r.u32()
	for i := uint32(0); i < funcCount; i++ {
		name := r.lpstring()
		addr := r.u32()
		arity := r.u32()
		chunk.Functions = append(chunk.Functions, compiler.FuncInfo{Name: name, Address: addr, Arity: int(arity)})
	}

	if r.err != nil {
		return nil, r.errVal(KindMalformedBytecode, "truncated payload")
	}
	return chunk, nil
}

func decodeConstant(r *reader) (value.Value, error) {
	tag := r.u8()
	switch tag {
	case tagNil:
		return value.NewNil(), nil
	case tagBool:
		return value.NewBool(r.u8() != 0), nil
	case tagNumber:
		b := r.bytes(8)
		if r.err != nil {
			return value.Value{}, r.errVal(KindMalformedBytecode, "truncated number constant")
		}
		return value.NewNumber(getF64(b)), nil
	case tagString:
		return value.NewString(r.lpstring()), nil
	case tagArray:
		count := r.u32()
		elems := make([]value.Value, count)
		return value.NewArray(elems), nil
	default:
		return value.Value{}, r.errVal(KindMalformedBytecode, "unknown constant tag")
	}
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putF64(b []byte, f float64) {
	putU64(b, math.Float64bits(f))
}

func getF64(b []byte) float64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return math.Float64frombits(v)
}
