package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/engine"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/task"
	"github.com/cuemby/queryrt/pkg/txn"
	"github.com/spf13/cobra"
)

// widgetsMeta is a fixed two-column (id int4, qty int4) record shape,
// standing in for a DDL-registered table; there is no compiler in this
// tree to turn SQL text into one of these, so demo builds it by hand.
func widgetsMeta() *record.Metadata {
	return record.NewMetadata([]record.FieldType{record.I4(), record.I4()}, []bool{false, false})
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Write a few rows through the engine, then scan them back",
	Long: `demo registers a small "widgets" table, submits a write job
that inserts a handful of rows through the scheduler, commits a short
transaction, and scans the result straight off storage to print it. It
exercises execute-path plumbing (job/request wiring, the scheduler, the
transaction manager) without a SQL front end: there is no compiler in
this tree to turn text into a plan, so the rows and the read-back scan
are both hand-built here rather than planned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nodeID, _ := cmd.Flags().GetString("node-id")

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		e, err := engine.New(engine.Options{Config: config.Default(), DataDir: dataDir, NodeID: nodeID})
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer e.Close()

		meta := widgetsMeta()
		table := &storage.Table{Name: "widgets", Columns: meta, PrimaryName: "widgets"}
		index := &storage.Index{Name: "widgets", Table: table, Primary: true, Key: meta}
		e.Provider().RegisterTable(table)
		e.Provider().RegisterIndex(index)
		if err := e.DB().EnsureIndex("widgets"); err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}

		tx, err := e.BeginTransaction(txn.Options{Type: txn.Short})
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		rows := []struct{ id, qty int32 }{{1, 10}, {2, 25}, {3, 7}}
		mutations := make([]engine.Mutation, 0, len(rows))
		for _, r := range rows {
			buf := make([]byte, meta.RecordSize())
			ref := record.NewRef(buf, meta)
			ref.SetInt4(0, r.id)
			ref.SetInt4(1, r.qty)
			mutations = append(mutations, engine.Mutation{
				Index: "widgets",
				Key:   encodeKey(r.id),
				Value: ref.Bytes(),
			})
		}

		req := e.SubmitWriteLoad(&engine.WriteExecutor{Mutations: mutations}, task.Write, -1, tx, map[string]string{"sql": "insert into widgets (demo)"})
		select {
		case <-req.Job.Done():
		case <-time.After(5 * time.Second):
			return fmt.Errorf("write job did not finish within 5s")
		}
		if err := req.Errors.Err(); err != nil {
			e.AbortTransaction(tx)
			return fmt.Errorf("write job failed: %w", err)
		}

		propagated := make(chan error, 1)
		e.CommitAsync(tx, txn.CommitOptions{}, func(kind txn.CommitCallbackKind, err error) {
			if err != nil {
				propagated <- err
				return
			}
			if kind == txn.Propagated {
				propagated <- nil
			}
		})
		select {
		case err := <-propagated:
			if err != nil {
				return fmt.Errorf("commit failed: %w", err)
			}
		case <-time.After(5 * time.Second):
			return fmt.Errorf("commit did not settle within 5s")
		}

		fmt.Println("widgets:")
		rtx, err := e.DB().Begin(false)
		if err != nil {
			return fmt.Errorf("begin read: %w", err)
		}
		defer rtx.Rollback()
		cur, err := rtx.Scan("widgets", storage.Range{
			Lower: storage.Endpoint{Inclusivity: storage.Unbound},
			Upper: storage.Endpoint{Inclusivity: storage.Unbound},
		})
		if err != nil {
			return fmt.Errorf("scan widgets: %w", err)
		}
		for cur.Next() {
			ref := record.NewRef(cur.Value(), meta)
			fmt.Printf("  id=%d qty=%d\n", ref.GetInt4(0), ref.GetInt4(1))
		}

		jobs, workers := e.Diagnostics()
		fmt.Printf("jobs observed: %d, workers: %d\n", len(jobs), len(workers))
		return nil
	},
}

func encodeKey(id int32) []byte {
	buf := make([]byte, 4)
	buf[0] = byte(id >> 24)
	buf[1] = byte(id >> 16)
	buf[2] = byte(id >> 8)
	buf[3] = byte(id)
	return buf
}
