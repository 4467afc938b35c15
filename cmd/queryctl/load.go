package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/engine"
	"github.com/cuemby/queryrt/pkg/task"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a dump file's records into one index",
	Long: `load submits a load-kind task running LoadExecutor, replaying a
dump file's framed records into --index under one storage transaction.
A truncated or corrupt input rolls the whole load back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nodeID, _ := cmd.Flags().GetString("node-id")
		index, _ := cmd.Flags().GetString("index")
		in, _ := cmd.Flags().GetString("in")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")

		if index == "" || in == "" {
			return fmt.Errorf("--index and --in are required")
		}

		e, err := engine.New(engine.Options{Config: config.Default(), DataDir: dataDir, NodeID: nodeID})
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer e.Close()

		if err := e.DB().EnsureIndex(index); err != nil {
			return fmt.Errorf("ensure index %s: %w", index, err)
		}

		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open %s: %w", in, err)
		}
		defer f.Close()

		exec := &engine.LoadExecutor{Index: index, Reader: f, Chunk: chunkSize}
		req := e.SubmitWriteLoad(exec, task.Load, -1, nil, map[string]string{"sql": fmt.Sprintf("load %s", index)})

		select {
		case <-req.Job.Done():
		case <-time.After(30 * time.Second):
			return fmt.Errorf("load did not finish within 30s")
		}
		if err := req.Errors.Err(); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}

		fmt.Printf("loaded %s into %s\n", in, index)
		return nil
	},
}

func init() {
	loadCmd.Flags().String("index", "", "Index to load into")
	loadCmd.Flags().String("in", "", "Dump file to read")
	loadCmd.Flags().Int("chunk-size", 500, "Records per cancellation-check chunk")
}
