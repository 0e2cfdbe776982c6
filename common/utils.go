package common

import (
	"time"
)

// Configuration structure
type HarvesterConfig struct {
	ChromeURL          string        // DevTools websocket URL of the browser to attach to
	ChromeBin          string        // Browser binary to launch when no ChromeURL is given
	Headless           bool          // Launch headless when self-launching
	Concurrency        int           // Max extractions in flight (default 6)
	PollInterval       time.Duration // Extraction status poll interval (default 500ms)
	ExtractionBudget   time.Duration // Wall-clock budget per tab for the extraction tier (default 8s)
	SettleDelay        time.Duration // Delay between focusing a tab and capturing it
	SessionCap         int           // Sessions kept after a quota eviction (default 10)
	QuotaBytes         int64         // Local store quota; 0 means unlimited
	StorageRoot        string        // Base path for the local state backend
	StateBackend       string        // "local" or "dapr"
	DaprStateStore     string        // Dapr state store component name
	EmbeddingURL       string        // Base URL of the embedding backend
	EmbeddingBatchSize int           // Items per embedding request (default 5)
	EmbeddingDelay     time.Duration // Pause between embedding batches
	RunID              string
}

// GenerateRunID generates a unique identifier based on the current timestamp.
// The identifier is formatted as a string in the "YYYYMMDDHHMMSS" format.
func GenerateRunID() string {
	currentTime := time.Now()

	runID := currentTime.Format("20060102150405")

	return runID
}

// DefaultConfig returns the tuning values the pipeline was designed around.
func DefaultConfig() HarvesterConfig {
	return HarvesterConfig{
		Headless:           true,
		Concurrency:        6,
		PollInterval:       500 * time.Millisecond,
		ExtractionBudget:   8 * time.Second,
		SettleDelay:        300 * time.Millisecond,
		SessionCap:         10,
		QuotaBytes:         8 << 20,
		StateBackend:       "local",
		EmbeddingBatchSize: 5,
		EmbeddingDelay:     time.Second,
	}
}
