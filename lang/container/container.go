// Package container implements the signed, versioned, optionally
// compressed on-disk bytecode format described in SPEC_FULL.md §4.4,
// grounded on the original engine plugin's FBytecodeChunk::Serialize/
// Deserialize. All multi-byte integers are little-endian.
//
// Trust model: the signature is an unkeyed SHA-256 digest, exactly as
// in the source it is grounded on. It is tamper-evidence within a
// single install/build pipeline, not a defense against a malicious
// compiler — anyone who can run the compiler can also recompute a
// matching signature. Treat a verified container as "came from this
// toolchain unmodified since," never as "came from a trusted author."
package container

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/sbsvm/sbs/lang/compiler"
)

const (
	Magic          uint32 = 0x31434253 // "SBC1" little-endian
	flagCompressed uint32 = 1 << 0

	compressThreshold = 1024
)

// Error is a container-stage diagnostic (SPEC_FULL.md §7's Container
// kinds: BadMagic, UnsupportedVersion, SignatureMismatch,
// DecompressionFailed, MalformedBytecode, UntrustedCompiler).
type Error struct {
	ErrKind string
	Offset  int
	Message string
}

func (e *Error) Error() string {
	if e.Offset != 0 {
		return fmt.Sprintf("%s at offset %d: %s", e.ErrKind, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.ErrKind, e.Message)
}

func (e *Error) Kind() string { return e.ErrKind }

const (
	KindBadMagic             = "BadMagic"
	KindUnsupportedVersion   = "UnsupportedVersion"
	KindSignatureMismatch    = "SignatureMismatch"
	KindDecompressionFailed  = "DecompressionFailed"
	KindMalformedBytecode    = "MalformedBytecode"
	KindUntrustedCompiler    = "UntrustedCompiler"
)

// Signature computes the hex-encoded SHA-256 digest over version (4
// bytes LE) ∥ author name ∥ operating system ∥ code bytes, per §4.4.
func Signature(version uint32, author, os string, code []byte) string {
	var buf bytes.Buffer
	var v4 [4]byte
	binary.LittleEndian.PutUint32(v4[:], version)
	buf.Write(v4[:])
	buf.WriteString(author)
	buf.WriteString(os)
	buf.Write(code)
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// Write serializes chunk into the on-disk container format, compressing
// the payload when it exceeds 1KB and compression actually helps.
func Write(chunk *compiler.Chunk) ([]byte, error) {
	payload, err := encodePayload(chunk)
	if err != nil {
		return nil, err
	}

	sig := Signature(chunk.Version, chunk.Metadata.AuthorName, chunk.Metadata.OperatingSystem, chunk.Code)

	compressed, ok := tryCompress(payload)
	useCompression := ok && len(compressed) < len(payload)

	var out bytes.Buffer
	writeU32(&out, Magic)
	writeU32(&out, chunk.Version)
	var flags uint32
	if useCompression {
		flags |= flagCompressed
	}
	writeU32(&out, flags)
	writeU32(&out, uint32(len(sig)))
	out.WriteString(sig)
	writeU32(&out, uint32(len(payload)))

	body := payload
	if useCompression {
		body = compressed
	}
	writeU32(&out, uint32(len(body)))
	out.Write(body)

	return out.Bytes(), nil
}

func tryCompress(payload []byte) ([]byte, bool) {
	if len(payload) <= compressThreshold {
		return nil, false
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// Read parses and verifies a container's structural envelope (magic,
// version, signature, compression) and decodes its payload into a
// Chunk. It does not apply host trust policy (step 3 of §4.4's
// verification policy) — that is the embedder's call via VerifyTrust,
// since only the embedder knows whether it is a shipping build.
func Read(data []byte) (*compiler.Chunk, error) {
	r := &reader{buf: data}

	magic := r.u32()
	if r.err != nil {
		return nil, r.errVal(KindBadMagic, "truncated header")
	}
	if magic != Magic {
		return nil, &Error{ErrKind: KindBadMagic, Message: fmt.Sprintf("got %#x", magic)}
	}

	version := r.u32()
	if version == 0 || version > 2 {
		return nil, &Error{ErrKind: KindUnsupportedVersion, Message: fmt.Sprintf("version %d", version)}
	}

	flags := r.u32()
	sigLen := r.u32()
	sig := r.bytes(int(sigLen))
	uncompressedSize := r.u32()
	payloadSize := r.u32()
	payload := r.bytes(int(payloadSize))
	if r.err != nil {
		return nil, r.errVal(KindMalformedBytecode, "truncated container body")
	}

	if flags&flagCompressed != 0 {
		decompressed, err := decompress(payload, int(uncompressedSize))
		if err != nil {
			return nil, &Error{ErrKind: KindDecompressionFailed, Message: err.Error()}
		}
		payload = decompressed
	}

	chunk, err := decodePayload(payload, version)
	if err != nil {
		return nil, err
	}

	wantSig := Signature(chunk.Version, chunk.Metadata.AuthorName, chunk.Metadata.OperatingSystem, chunk.Code)
	if string(sig) != wantSig {
		return nil, &Error{ErrKind: KindSignatureMismatch, Message: "recomputed signature does not match stored signature"}
	}

	if err := checkStructuralBounds(chunk); err != nil {
		return nil, err
	}

	return chunk, nil
}

func decompress(payload []byte, expectedSize int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	_ = expectedSize
	return out, nil
}

// checkStructuralBounds implements §3.4's invariants and step 4 of
// §4.4's verification policy: every jump/constant/function-table
// reference must be in range, checked once here so the VM's dispatch
// loop never has to.
func checkStructuralBounds(chunk *compiler.Chunk) error {
	for i, fn := range chunk.Functions {
		if int(fn.Address) >= len(chunk.Code) && len(chunk.Code) > 0 {
			return &Error{ErrKind: KindMalformedBytecode, Offset: int(fn.Address),
				Message: fmt.Sprintf("function %d (%s) address out of range", i, fn.Name)}
		}
		if fn.Arity > 255 {
			return &Error{ErrKind: KindMalformedBytecode, Message: fmt.Sprintf("function %d (%s) arity %d exceeds 255", i, fn.Name, fn.Arity)}
		}
	}
	if len(chunk.Constants) > 256 {
		return &Error{ErrKind: KindMalformedBytecode, Message: "constant pool exceeds 256 entries"}
	}
	if len(chunk.Code) > 0 && int(chunk.EntryPoint) >= len(chunk.Code) {
		return &Error{ErrKind: KindMalformedBytecode, Offset: int(chunk.EntryPoint),
			Message: "entry point out of range"}
	}
	if err := compiler.ValidateCode(chunk); err != nil {
		ce := err.(*compiler.CodeError)
		return &Error{ErrKind: KindMalformedBytecode, Offset: ce.Offset, Message: ce.Message}
	}
	return nil
}

// VerifyTrust applies step 3 of §4.4's verification policy: on a
// shipping build, the chunk must be tagged as not External and must
// carry OfficialBuild|TrustedSigned|SecurityVerified. Development
// builds log a warning (via the supplied warn func, if non-nil) but
// never block execution.
func VerifyTrust(chunk *compiler.Chunk, shippingBuild bool, warn func(string)) error {
	required := compiler.OfficialBuild | compiler.TrustedSigned | compiler.SecurityVerified
	ok := chunk.Metadata.CompilerType != compiler.External && chunk.Metadata.Flags&required == required
	if ok {
		return nil
	}
	if shippingBuild {
		return &Error{ErrKind: KindUntrustedCompiler, Message: "chunk does not satisfy shipping-build trust policy"}
	}
	if warn != nil {
		warn("chunk does not satisfy shipping-build trust policy (ignored: development build)")
	}
	return nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) u8() byte {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) bytes(n int) []byte {
	if n < 0 || !r.need(n) {
		return nil
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v
}

func (r *reader) lpstring() string {
	n := r.u32()
	return string(r.bytes(int(n)))
}

func (r *reader) errVal(kind, msg string) error {
	return &Error{ErrKind: kind, Offset: r.off, Message: msg}
}
