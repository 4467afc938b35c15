// Package config centralizes the engine's configuration surface: thread
// pool sizing, scheduling policy knobs, exchange defaults, and the
// teardown/cancellation toggles described in the external interfaces
// (configuration surface relevant to the core).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyDistribution selects how exchange partitions hash keys.
type KeyDistribution string

const (
	KeyDistributionSimple KeyDistribution = "simple"
)

// Config is the engine-wide configuration, loaded from YAML the way the
// teacher's CLI loads resource manifests.
type Config struct {
	// Scheduler / worker pool.
	ThreadPoolSize       int           `yaml:"threadPoolSize"`
	CoreAffinity         bool          `yaml:"coreAffinity"`
	InitialCore          int           `yaml:"initialCore"`
	NumaUniformAssign    bool          `yaml:"numaUniformAssign"`
	ForceNumaNode        int           `yaml:"forceNumaNode"`
	MemoryRandomization  int           `yaml:"memoryRandomization"`
	StealingEnabled      bool          `yaml:"stealingEnabled"`
	PreferredWorkerForCurrentThread bool `yaml:"preferredWorkerForCurrentThread"`
	StealingWait         time.Duration `yaml:"stealingWait"`
	TaskPollingWait      time.Duration `yaml:"taskPollingWait"`
	BusyWorker           bool          `yaml:"busyWorker"`
	WatcherInterval      time.Duration `yaml:"watcherInterval"`
	WorkerTryCount       int           `yaml:"workerTryCount"`
	WorkerSuspendTimeout time.Duration `yaml:"workerSuspendTimeout"`
	SingleThread         bool          `yaml:"singleThread"`

	// Exchange / operators.
	DefaultPartitions  int             `yaml:"defaultPartitions"`
	UseSortedVector    bool            `yaml:"useSortedVector"`
	NoopPregroup       bool            `yaml:"noopPregroup"`
	ScanDefaultParallel int            `yaml:"scanDefaultParallel"`
	RTXParallelScan    bool            `yaml:"rtxParallelScan"`
	KeyDistribution    KeyDistribution `yaml:"keyDistribution"`

	// Job / teardown.
	InplaceTeardown    bool `yaml:"inplaceTeardown"`
	EnableStorageKey   bool `yaml:"enableStorageKey"`
	DefaultCommitResponse string `yaml:"defaultCommitResponse"`

	// Cancellation.
	CancellationEnabled bool `yaml:"cancellationEnabled"`
}

// Default mirrors the original's global::config_pool() defaults.
func Default() *Config {
	return &Config{
		ThreadPoolSize:       4,
		CoreAffinity:         false,
		InitialCore:          0,
		NumaUniformAssign:    true,
		ForceNumaNode:        -1,
		MemoryRandomization:  0,
		StealingEnabled:      true,
		PreferredWorkerForCurrentThread: true,
		StealingWait:         1 * time.Millisecond,
		TaskPollingWait:      1 * time.Millisecond,
		BusyWorker:           false,
		WatcherInterval:      20 * time.Millisecond,
		WorkerTryCount:       1000,
		WorkerSuspendTimeout: 1 * time.Second,
		SingleThread:         false,

		DefaultPartitions:   5,
		UseSortedVector:     false,
		NoopPregroup:        false,
		ScanDefaultParallel: 1,
		RTXParallelScan:     false,
		KeyDistribution:     KeyDistributionSimple,

		InplaceTeardown:       true,
		EnableStorageKey:      false,
		DefaultCommitResponse: "stored",

		CancellationEnabled: true,
	}
}

// Load reads a YAML configuration file, applying it over Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
