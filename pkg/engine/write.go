package engine

import (
	"github.com/cuemby/queryrt/pkg/request"
)

// Mutation is one raw KVS change: an upsert (Delete false) or a
// tombstone (Delete true) against a single named index's bucket,
// matching the content_put / content_delete contract of §6.
type Mutation struct {
	Index  string
	Key    []byte
	Value  []byte
	Delete bool
}

// WriteExecutor is the write task body: it applies every mutation in
// one storage transaction, committing only if all of them succeed. The
// compiled DML body that produces Mutations (insert/update/delete
// statement execution) is out of scope — this is the orchestration
// shell §4.9's "write" task kind runs.
type WriteExecutor struct {
	Mutations []Mutation
}

// Run implements task.Executor.
func (w *WriteExecutor) Run(req *request.Context) error {
	stx, err := req.DB.Begin(true)
	if err != nil {
		return err
	}

	for _, m := range w.Mutations {
		if m.Delete {
			err = stx.Delete(m.Index, m.Key)
		} else {
			err = stx.Put(m.Index, m.Key, m.Value)
		}
		if err != nil {
			_ = stx.Rollback()
			return err
		}
	}
	return stx.Commit()
}
