package operators

import (
	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Scan is the root operator of a relation::scan step (§4.6.1): it opens a
// KVS cursor over one range of one index and, for each entry, decodes the
// bound columns and invokes its downstream record operator.
type Scan struct {
	Req   *request.Context
	Index *storage.Index
	Range storage.Range

	Bindings []ColumnBinding
	Vars     *vartable.Table
	Down     RecordSink

	sticky  bool
	inTx    bool
	tx      *storage.Tx
	cursor  *storage.Cursor
	started bool
}

// NewScan builds a Scan operator. sticky/inTx mirror the operator tree's
// declared flags for this step (fixed at compile time, never recomputed
// per invocation).
func NewScan(req *request.Context, index *storage.Index, r storage.Range, bindings []ColumnBinding, vars *vartable.Table, down RecordSink, sticky, inTx bool) *Scan {
	return &Scan{Req: req, Index: index, Range: r, Bindings: bindings, Vars: vars, Down: down, sticky: sticky, inTx: inTx}
}

func (s *Scan) Sticky() bool        { return s.sticky }
func (s *Scan) InTransaction() bool { return s.inTx }

// Invoke advances the cursor by one entry, decodes it and invokes Down.
// It opens the underlying KVS transaction on first call and rolls it
// back once the range is exhausted, the downstream stops, or an error
// occurs.
func (s *Scan) Invoke() plan.TaskStatus {
	if !s.started {
		if err := s.open(); err != nil {
			fail(s.Req, err)
			return plan.Complete
		}
	}

	if !s.cursor.Next() {
		s.close()
		return plan.Complete
	}

	if err := s.decodeEntry(s.cursor.Key(), s.cursor.Value()); err != nil {
		s.close()
		fail(s.Req, err)
		return plan.Complete
	}

	if !s.Down.Push() {
		s.close()
		return plan.Complete
	}
	return plan.Proceed
}

func (s *Scan) open() error {
	tx, err := s.Req.DB.Begin(false)
	if err != nil {
		return err
	}
	cur, err := tx.Scan(s.Index.Name, s.Range)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	s.tx, s.cursor, s.started = tx, cur, true
	return nil
}

func (s *Scan) close() {
	if s.tx == nil {
		return
	}
	_ = s.tx.Rollback()
	s.tx = nil
}

// decodeEntry decodes one index entry into the variable table, chasing to
// the primary row first if Index is secondary.
func (s *Scan) decodeEntry(key, value []byte) error {
	meta := s.Index.Table.Columns
	row, err := resolveRow(s.Req, s.tx, s.Index, key, value)
	if err != nil {
		return err
	}
	if len(row) < meta.RecordSize() {
		return apperr.New(apperr.DataCorruptionException, "stored record shorter than its metadata")
	}
	ref := record.NewRef(row, meta)
	return decodeColumns(ref, s.Vars, s.Bindings)
}

// embeddedPrimaryKey extracts a secondary key's embedded primary-key
// suffix. For this engine's simple key encoding (fixed-width fields
// concatenated in declaration order), the embedded columns are always a
// contiguous suffix, so it is enough to know the prefix length they
// start at.
func embeddedPrimaryKey(secondaryKey []byte, embedded []int, keyMeta *record.Metadata) []byte {
	if len(embedded) == 0 {
		return nil
	}
	start := keyMeta.ValueOffset(embedded[0])
	if start > len(secondaryKey) {
		return nil
	}
	return secondaryKey[start:]
}
