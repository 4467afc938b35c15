package record

import "encoding/binary"

// KeyBuilder accumulates an order-preserving byte key over a prefix of a
// record's fields, for index probes (pkg/operators' scan/find/join-find/
// join-scan) that need to turn variable-table values into KVS keys that
// sort the same way the declared index order does.
type KeyBuilder struct {
	buf []byte
}

// NewKeyBuilder creates an empty builder.
func NewKeyBuilder() *KeyBuilder { return &KeyBuilder{} }

// Bytes returns the accumulated key so far.
func (b *KeyBuilder) Bytes() []byte { return b.buf }

// AppendField encodes field i of ref, order-preserving, appending it to
// the builder. Signed integers flip their sign bit so negative values
// still sort before positive ones under plain byte-lexicographic
// comparison (BoltDB's cursor order); fixed-length character fields are
// already space-padded to a constant width so raw bytes sort correctly;
// variable-length character fields are appended raw, which is
// order-preserving only so long as no key field follows a variable
// field of differing length within the same index (true for every index
// in this engine, where variable fields are always the last key field).
func (b *KeyBuilder) AppendField(ref Ref, i int) {
	ft := ref.Metadata().At(i)
	switch ft.Kind {
	case Boolean:
		if ref.GetBoolean(i) {
			b.buf = append(b.buf, 1)
		} else {
			b.buf = append(b.buf, 0)
		}
	case Int4:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(ref.GetInt4(i))^0x80000000)
		b.buf = append(b.buf, tmp[:]...)
	case Int8, Date:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(ref.GetInt8(i))^0x8000000000000000)
		b.buf = append(b.buf, tmp[:]...)
	case Character, Octet:
		if ft.Varying {
			b.buf = append(b.buf, ref.GetVarying(i)...)
		} else {
			b.buf = append(b.buf, ref.GetFixedChar(i)...)
		}
	default:
		panic("record: unsupported key field kind: " + ft.Kind.String())
	}
}

// AppendBytes appends raw already-encoded bytes (e.g. a secondary
// index's embedded primary-key suffix) verbatim.
func (b *KeyBuilder) AppendBytes(raw []byte) { b.buf = append(b.buf, raw...) }
