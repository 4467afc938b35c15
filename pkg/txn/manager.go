package txn

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/log"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Manager owns the replicated transaction log and the live Transaction
// handles scheduled tasks run against. Cross-node distribution is out
// of scope, so Manager always bootstraps a single-voter raft group —
// the log still gives begin/commit/abort the same durable, ordered
// application a multi-node CC engine would rely on.
type Manager struct {
	raft   *raft.Raft
	fsm    *fsm
	logger zerolog.Logger

	mu   sync.Mutex
	txns map[uint64]*Transaction
}

// NewManager starts a single-node raft group backed by BoltDB log and
// stable stores under dataDir, and blocks until this node has elected
// itself leader.
func NewManager(nodeID, dataDir string) (*Manager, error) {
	f := newFSM()

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)
	config.HeartbeatTimeout = 200 * time.Millisecond
	config.ElectionTimeout = 200 * time.Millisecond
	config.LeaderLeaseTimeout = 100 * time.Millisecond

	addr, transport := raft.NewInmemTransport(raft.ServerAddress(nodeID))

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "txn-raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("txn: open raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "txn-raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("txn: open raft stable store: %w", err)
	}
	snapshotStore := raft.NewInmemSnapshotStore()

	r, err := raft.NewRaft(config, f, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("txn: create raft: %w", err)
	}

	bootstrap := raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: addr}},
	}
	if fut := r.BootstrapCluster(bootstrap); fut.Error() != nil && fut.Error() != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("txn: bootstrap raft: %w", fut.Error())
	}

	m := &Manager{raft: r, fsm: f, logger: log.WithComponent("txn"), txns: make(map[uint64]*Transaction)}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == raft.Leader {
			m.logger.Info().Str("node_id", nodeID).Msg("txn manager elected leader")
			return m, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil, fmt.Errorf("txn: node %s did not become leader in time", nodeID)
}

// Shutdown stops the raft group.
func (m *Manager) Shutdown() error {
	return m.raft.Shutdown().Error()
}

func (m *Manager) apply(cmd Command) (interface{}, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("txn: marshal command: %w", err)
	}
	fut := m.raft.Apply(b, 5*time.Second)
	if err := fut.Error(); err != nil {
		return nil, apperr.Wrap(apperr.CCException, err)
	}
	if respErr, ok := fut.Response().(error); ok && respErr != nil {
		return nil, apperr.Wrap(apperr.CCException, respErr)
	}
	return fut.Response(), nil
}

// CreateTransaction begins a new transaction and returns its handle.
func (m *Manager) CreateTransaction(opts Options) (*Transaction, error) {
	data, err := json.Marshal(beginData{Opts: opts})
	if err != nil {
		return nil, fmt.Errorf("txn: marshal begin: %w", err)
	}
	resp, err := m.apply(Command{Op: "begin", Data: data})
	if err != nil {
		return nil, err
	}
	id, ok := resp.(uint64)
	if !ok {
		return nil, apperr.New(apperr.CCException, "txn: begin returned unexpected response")
	}

	tx := newTransaction(m, id, opts)
	m.mu.Lock()
	m.txns[id] = tx
	m.mu.Unlock()
	log.WithTxID(m.logger, id).Debug().Bool("read_only", opts.Type == ReadOnly).Msg("transaction created")
	return tx, nil
}

// Commit asynchronously commits tx, invoking cb once per commit stage
// (accepted, available, stored, propagated). cb is never called again
// once it has been called with a non-nil error.
func (m *Manager) Commit(tx *Transaction, _ CommitOptions, cb CommitCallback) {
	txLog := log.WithTxID(m.logger, tx.id)
	go func() {
		txLog.Debug().Msg("commit accepted")
		if cb != nil {
			cb(Accepted, nil)
		}

		data, err := json.Marshal(commitData{ID: tx.id})
		if err != nil {
			err = fmt.Errorf("txn: marshal commit: %w", err)
			txLog.Warn().Err(err).Msg("commit failed before apply")
			if cb != nil {
				cb(Stored, err)
			}
			return
		}
		if _, err := m.apply(Command{Op: "commit", Data: data}); err != nil {
			txLog.Warn().Err(err).Msg("commit apply failed")
			if cb != nil {
				cb(Stored, err)
			}
			return
		}

		tx.setState(StateCommitted)
		txLog.Debug().Msg("commit available, stored, propagated")
		if cb != nil {
			cb(Available, nil)
			cb(Stored, nil)
			cb(Propagated, nil)
		}
	}()
}

// AbortTransaction marks tx going-to-abort; once its task use-count
// reaches zero the abort is applied to the replicated log.
func (m *Manager) AbortTransaction(tx *Transaction) {
	log.WithTxID(m.logger, tx.id).Debug().Msg("transaction marked going-to-abort")
	tx.MarkGoingToAbort()
}

func (m *Manager) finalizeAbort(tx *Transaction) {
	txLog := log.WithTxID(m.logger, tx.id)
	data, err := json.Marshal(abortData{ID: tx.id})
	if err != nil {
		txLog.Warn().Err(err).Msg("abort marshal failed")
		return
	}
	if _, err := m.apply(Command{Op: "abort", Data: data}); err != nil {
		txLog.Warn().Err(err).Msg("abort apply failed")
		return
	}
	txLog.Debug().Msg("transaction aborted")
}

// TransactionID reports tx's identifier.
func (m *Manager) TransactionID(tx *Transaction) uint64 { return tx.ID() }

// State reports tx's current lifecycle state, for diagnostics.
func (m *Manager) State(tx *Transaction) State { return tx.State() }

// Lookup finds a live transaction handle by id, for diagnostics dumps.
func (m *Manager) Lookup(id uint64) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txns[id]
	return tx, ok
}
