package record

import (
	"encoding/binary"
	"math"
)

// Ref is a (buffer, metadata) pair: a view over one record's bytes. It
// does not own buf — callers are expected to back it with arena-owned
// memory and never retain a Ref past the arena's Reset/DeallocateAfter.
type Ref struct {
	buf  []byte
	meta *Metadata
}

// NewRef wraps buf, which must be at least meta.RecordSize() bytes, as a
// record under meta.
func NewRef(buf []byte, meta *Metadata) Ref {
	if len(buf) < meta.RecordSize() {
		panic("record: buffer too small for metadata")
	}
	return Ref{buf: buf, meta: meta}
}

// Metadata returns the metadata this reference is interpreted under.
func (r Ref) Metadata() *Metadata { return r.meta }

// Bytes exposes the raw backing buffer, for cases (exchange writers,
// storage keys) that copy a whole record verbatim.
func (r Ref) Bytes() []byte { return r.buf[:r.meta.size] }

// IsNull reports whether field i currently holds SQL NULL.
func (r Ref) IsNull(i int) bool {
	if !r.meta.Nullable(i) {
		return false
	}
	bit := r.meta.NullityOffset(i)
	byteOff := r.meta.bitmapStart() + bit/8
	return r.buf[byteOff]&(1<<uint(bit%8)) != 0
}

// SetNull marks field i null (isNull=true) or clears the flag.
func (r Ref) SetNull(i int, isNull bool) {
	bit := r.meta.NullityOffset(i)
	byteOff := r.meta.bitmapStart() + bit/8
	mask := byte(1 << uint(bit%8))
	if isNull {
		r.buf[byteOff] |= mask
	} else {
		r.buf[byteOff] &^= mask
	}
}

func (r Ref) slot(i int) []byte {
	off := r.meta.ValueOffset(i)
	size, _ := r.meta.At(i).footprint()
	return r.buf[off : off+size]
}

func (r Ref) GetBoolean(i int) bool { return r.slot(i)[0] != 0 }
func (r Ref) SetBoolean(i int, v bool) {
	if v {
		r.slot(i)[0] = 1
	} else {
		r.slot(i)[0] = 0
	}
}

func (r Ref) GetInt4(i int) int32 {
	return int32(binary.LittleEndian.Uint32(r.slot(i)))
}
func (r Ref) SetInt4(i int, v int32) {
	binary.LittleEndian.PutUint32(r.slot(i), uint32(v))
}

func (r Ref) GetInt8(i int) int64 {
	return int64(binary.LittleEndian.Uint64(r.slot(i)))
}
func (r Ref) SetInt8(i int, v int64) {
	binary.LittleEndian.PutUint64(r.slot(i), uint64(v))
}

func (r Ref) GetFloat4(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(r.slot(i)))
}
func (r Ref) SetFloat4(i int, v float32) {
	binary.LittleEndian.PutUint32(r.slot(i), math.Float32bits(v))
}

func (r Ref) GetFloat8(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.slot(i)))
}
func (r Ref) SetFloat8(i int, v float64) {
	binary.LittleEndian.PutUint64(r.slot(i), math.Float64bits(v))
}

// GetDecimal returns the unscaled integer and the declared scale; the
// represented value is unscaled * 10^-scale.
func (r Ref) GetDecimal(i int) (unscaled int64, scale int) {
	s := r.slot(i)
	return int64(binary.LittleEndian.Uint64(s[0:8])), int(int32(binary.LittleEndian.Uint32(s[8:12])))
}
func (r Ref) SetDecimal(i int, unscaled int64, scale int) {
	s := r.slot(i)
	binary.LittleEndian.PutUint64(s[0:8], uint64(unscaled))
	binary.LittleEndian.PutUint32(s[8:12], uint32(int32(scale)))
}

// GetVarying reads a Character/Octet/Blob/Clob field's current value.
// The returned slice aliases the varlen arena that backed SetVarying —
// it must not be retained past that arena's lifetime.
func (r Ref) GetVarying(i int) []byte { return readVarRef(r.slot(i)) }

// SetVarying stores data by reference; data must come from a varlen
// arena the caller keeps alive at least as long as this record.
func (r Ref) SetVarying(i int, data []byte) { writeVarRef(r.slot(i), data) }

// GetFixedChar reads a Character(n) (non-varying) field, trimmed of
// trailing padding is the caller's responsibility — the stored bytes are
// exactly Length long.
func (r Ref) GetFixedChar(i int) []byte { return r.slot(i) }
func (r Ref) SetFixedChar(i int, data []byte) {
	dst := r.slot(i)
	n := copy(dst, data)
	for ; n < len(dst); n++ {
		dst[n] = ' '
	}
}
