package record

// Metadata describes the physical layout of a record: an ordered list of
// fields, each with a fixed byte offset, followed by a nullity bitmap
// with one bit per field (in declaration order). It is built once by
// NewMetadata and never mutated afterwards, so concurrent readers can
// share a single Metadata across every task that processes records of
// that shape.
type Metadata struct {
	fields     []FieldType
	nullable   []bool
	offsets    []int
	nullBitOff []int // bit index into the nullity bitmap, -1 if not nullable
	valueSize  int   // size of the fixed value area, before the bitmap
	align      int
	size       int // total record size, bitmap included, rounded to align
}

// NewMetadata lays out fields in declaration order. nullable must be
// either nil (no field is nullable) or the same length as fields.
func NewMetadata(fields []FieldType, nullable []bool) *Metadata {
	if nullable == nil {
		nullable = make([]bool, len(fields))
	}
	m := &Metadata{
		fields:     append([]FieldType(nil), fields...),
		nullable:   append([]bool(nil), nullable...),
		offsets:    make([]int, len(fields)),
		nullBitOff: make([]int, len(fields)),
		align:      1,
	}

	off := 0
	nullableCount := 0
	for i, f := range fields {
		size, align := f.footprint()
		if align > m.align {
			m.align = align
		}
		off = alignUp(off, align)
		m.offsets[i] = off
		off += size
		if nullable[i] {
			m.nullBitOff[i] = nullableCount
			nullableCount++
		} else {
			m.nullBitOff[i] = -1
		}
	}
	m.valueSize = off

	bitmapBytes := (nullableCount + 7) / 8
	total := off + bitmapBytes
	m.size = alignUp(total, m.align)
	return m
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// FieldCount returns the number of fields in the record.
func (m *Metadata) FieldCount() int { return len(m.fields) }

// RecordSize is the total byte footprint of one record under this
// metadata, nullity bitmap included.
func (m *Metadata) RecordSize() int { return m.size }

// RecordAlignment is the alignment every Ref backing buffer must satisfy.
func (m *Metadata) RecordAlignment() int { return m.align }

// At returns the field type at position i.
func (m *Metadata) At(i int) FieldType { return m.fields[i] }

// ValueOffset returns the byte offset of field i's value slot.
func (m *Metadata) ValueOffset(i int) int { return m.offsets[i] }

// Nullable reports whether field i may be null.
func (m *Metadata) Nullable(i int) bool { return m.nullable[i] }

// NullityOffset returns the bit index of field i within the nullity
// bitmap. It panics if field i is not nullable — callers must check
// Nullable first, matching the original's debug-only assertion.
func (m *Metadata) NullityOffset(i int) int {
	off := m.nullBitOff[i]
	if off < 0 {
		panic("record: field is not nullable")
	}
	return off
}

// bitmapStart is the byte offset where the nullity bitmap begins.
func (m *Metadata) bitmapStart() int { return m.valueSize }
