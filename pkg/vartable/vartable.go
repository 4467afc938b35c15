// Package vartable implements the per-task variable table: a fixed
// mapping from plan variables to slots in one owned record, backing
// the expression evaluator's variable reads and the operators' column
// decodes.
package vartable

import "github.com/cuemby/queryrt/pkg/record"

// Variable names a plan variable. The planner hands these out as opaque
// identifiers (e.g. "c0", "c1"); the table never interprets them.
type Variable string

// slot records one variable's position within the backing metadata.
type slot struct {
	index int // field index within the backing record.Metadata
}

// Table maps Variables to slots in a single backing record. Slot layout
// is decided once at construction by Build and never changes afterward:
// a Table never grows, and a Variable never rebinds to a different slot.
// A Table is not safe for concurrent use — each task owns its own.
type Table struct {
	meta *record.Metadata
	ref  record.Ref
	vars map[Variable]slot
	order []Variable
}

// Builder accumulates (variable, type, nullable) declarations before a
// single Build() call fixes the layout.
type Builder struct {
	names    []Variable
	types    []record.FieldType
	nullable []bool
	seen     map[Variable]bool
}

// NewBuilder creates an empty variable table builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[Variable]bool)}
}

// Declare adds a variable with its storage type and nullability. It
// panics if v was already declared — the planner must never emit the
// same variable twice for one table.
func (b *Builder) Declare(v Variable, ft record.FieldType, nullable bool) *Builder {
	if b.seen[v] {
		panic("vartable: variable already declared: " + string(v))
	}
	b.seen[v] = true
	b.names = append(b.names, v)
	b.types = append(b.types, ft)
	b.nullable = append(b.nullable, nullable)
	return b
}

// Build fixes the slot layout and allocates the backing record into buf,
// which must be at least as large as the resulting metadata's
// RecordSize(); callers typically obtain buf from a per-task arena.
func (b *Builder) Build(buf []byte) *Table {
	meta := record.NewMetadata(b.types, b.nullable)
	t := &Table{
		meta:  meta,
		ref:   record.NewRef(buf, meta),
		vars:  make(map[Variable]slot, len(b.names)),
		order: append([]Variable(nil), b.names...),
	}
	for i, name := range b.names {
		t.vars[name] = slot{index: i}
	}
	return t
}

// Metadata returns the backing record's metadata.
func (t *Table) Metadata() *record.Metadata { return t.meta }

// Ref returns the owned backing record.
func (t *Table) Ref() record.Ref { return t.ref }

// Variables lists every declared variable in declaration order.
func (t *Table) Variables() []Variable { return t.order }

// Has reports whether v was declared in this table.
func (t *Table) Has(v Variable) bool {
	_, ok := t.vars[v]
	return ok
}

// Index returns v's field index into Metadata()/Ref(), panicking if v
// was never declared.
func (t *Table) Index(v Variable) int {
	s, ok := t.vars[v]
	if !ok {
		panic("vartable: undeclared variable: " + string(v))
	}
	return s.index
}

// ValueOffset returns v's byte offset into the backing record.
func (t *Table) ValueOffset(v Variable) int { return t.meta.ValueOffset(t.Index(v)) }

// IsNull reports whether v currently holds SQL NULL.
func (t *Table) IsNull(v Variable) bool { return t.ref.IsNull(t.Index(v)) }

// SetNull sets or clears v's null flag.
func (t *Table) SetNull(v Variable, isNull bool) { t.ref.SetNull(t.Index(v), isNull) }
