package storage

import (
	"sync"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/record"
)

// Table describes a relation's physical shape: its column metadata and
// the name of its primary index.
type Table struct {
	Name        string
	Columns     *record.Metadata
	PrimaryName string
}

// Index describes one index over a table: its key metadata, whether it
// is the table's primary index, and (for secondary indexes) which key
// positions embed the primary key so a scan can chase to the primary
// row.
type Index struct {
	Name           string
	Table          *Table
	Primary        bool
	Key            *record.Metadata
	EmbeddedPKCols []int // secondary-index key positions holding primary-key fields
}

// Sequence names a monotonic counter backing identity/auto-increment
// columns. The provider records only the name; no counter value is
// stored or advanced here.
type Sequence struct {
	Name string
}

// Provider resolves table/index/sequence names to their physical
// handles and hands out per-table locks — the storage-side half of
// "find_table / find_index / find_sequence / find_primary_index" the
// scan and find operators depend on.
type Provider struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	indexes   map[string]*Index
	sequences map[string]*Sequence

	locks sync.Map // table name -> *sync.RWMutex
}

// NewProvider creates an empty provider; callers register tables and
// indexes as DDL (out of scope here) resolves them.
func NewProvider() *Provider {
	return &Provider{
		tables:    make(map[string]*Table),
		indexes:   make(map[string]*Index),
		sequences: make(map[string]*Sequence),
	}
}

// RegisterTable adds (or replaces) a table definition.
func (p *Provider) RegisterTable(t *Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[t.Name] = t
}

// RegisterIndex adds (or replaces) an index definition.
func (p *Provider) RegisterIndex(idx *Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexes[idx.Name] = idx
	if idx.Primary {
		p.tables[idx.Table.Name].PrimaryName = idx.Name
	}
}

// RegisterSequence adds (or replaces) a sequence definition.
func (p *Provider) RegisterSequence(s *Sequence) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[s.Name] = s
}

func (p *Provider) FindTable(name string) (*Table, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tables[name]
	if !ok {
		return nil, apperr.Newf(apperr.TargetNotFoundException, "no such table: %s", name)
	}
	return t, nil
}

func (p *Provider) FindIndex(name string) (*Index, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.indexes[name]
	if !ok {
		return nil, apperr.Newf(apperr.TargetNotFoundException, "no such index: %s", name)
	}
	return idx, nil
}

func (p *Provider) FindSequence(name string) (*Sequence, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sequences[name]
	if !ok {
		return nil, apperr.Newf(apperr.TargetNotFoundException, "no such sequence: %s", name)
	}
	return s, nil
}

func (p *Provider) FindPrimaryIndex(tableName string) (*Index, error) {
	t, err := p.FindTable(tableName)
	if err != nil {
		return nil, err
	}
	if t.PrimaryName == "" {
		return nil, apperr.Newf(apperr.TargetNotFoundException, "table has no primary index: %s", tableName)
	}
	return p.FindIndex(t.PrimaryName)
}

// TableLock returns the per-table lock DDL/DML callers coordinate on —
// write operations against the same table serialize through it, while
// reads against distinct tables proceed independently.
func (p *Provider) TableLock(tableName string) *sync.RWMutex {
	v, _ := p.locks.LoadOrStore(tableName, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}
