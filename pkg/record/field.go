// Package record implements the data model's field type, record
// metadata, record reference, and group metadata (the engine's tagged
// on-wire record layout). Once built, a Metadata is immutable; a Ref is
// a (pointer, size) pair interpreted under one Metadata.
package record

// Kind tags the scalar domain of a field.
type Kind int

const (
	Unknown Kind = iota
	Boolean
	Int4
	Int8
	Float4
	Float8
	Decimal
	Character
	Octet
	Date
	TimeOfDay
	TimePoint
	Blob
	Clob
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Int4:
		return "int4"
	case Int8:
		return "int8"
	case Float4:
		return "float4"
	case Float8:
		return "float8"
	case Decimal:
		return "decimal"
	case Character:
		return "character"
	case Octet:
		return "octet"
	case Date:
		return "date"
	case TimeOfDay:
		return "time_of_day"
	case TimePoint:
		return "time_point"
	case Blob:
		return "blob"
	case Clob:
		return "clob"
	default:
		return "unknown"
	}
}

// FieldType is a tagged descriptor over the engine's scalar domain.
// Varying, Length, Precision/Scale and WithTimeZone are only meaningful
// for the kinds that declare them (Character/Octet, Decimal, TimeOfDay
// and TimePoint respectively).
type FieldType struct {
	Kind         Kind
	Varying      bool // Character/Octet: variable-length when true
	Length       int  // fixed length, or max length when Varying
	Precision    int  // Decimal
	Scale        int  // Decimal
	WithTimeZone bool // TimeOfDay / TimePoint
}

func Bool() FieldType    { return FieldType{Kind: Boolean} }
func I4() FieldType       { return FieldType{Kind: Int4} }
func I8() FieldType       { return FieldType{Kind: Int8} }
func F4() FieldType       { return FieldType{Kind: Float4} }
func F8() FieldType       { return FieldType{Kind: Float8} }
func Dec(p, s int) FieldType { return FieldType{Kind: Decimal, Precision: p, Scale: s} }
func Char(n int) FieldType   { return FieldType{Kind: Character, Length: n} }
func VarChar(n int) FieldType { return FieldType{Kind: Character, Varying: true, Length: n} }
func VarOctet(n int) FieldType { return FieldType{Kind: Octet, Varying: true, Length: n} }

// isVarying reports whether this field is stored as a (pointer, length)
// pair into a varlen arena rather than inline.
func (f FieldType) isVarying() bool {
	switch f.Kind {
	case Character, Octet:
		return f.Varying
	case Blob, Clob:
		return true
	default:
		return false
	}
}

// footprint returns (size, align) of the field's on-record storage: the
// fixed inline slot, or the (ptr, len) pair for varying fields.
func (f FieldType) footprint() (size int, align int) {
	if f.isVarying() {
		return varRefSize, varRefAlign
	}
	switch f.Kind {
	case Boolean:
		return 1, 1
	case Int4, Float4:
		return 4, 4
	case Int8, Float8, Date:
		return 8, 8
	case Decimal:
		return 16, 8 // (int64 unscaled, int32 scale, padding) stored as 16 bytes
	case TimeOfDay:
		return 8, 8
	case TimePoint:
		return 12, 8 // seconds (int64) + nanos (int32)
	case Character, Octet:
		return f.Length, 1
	default:
		return 8, 8
	}
}
