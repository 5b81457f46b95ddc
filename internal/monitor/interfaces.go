package monitor

import (
	"context"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

// BatteryScanner runs one full scan of the battery. The production
// implementation is bmu.Scanner; tests substitute a fake.
type BatteryScanner interface {
	Scan(ctx context.Context) (*bmu.ScanResult, error)
}

// MessagePublisher publishes messages to a broker or sink.
// This abstraction allows for testing without a real broker.
type MessagePublisher interface {
	// Publish publishes a message with the given topic suffix and payload.
	Publish(topicSuffix, payload string)

	// Close closes the publisher connection.
	Close()
}

// MetricsCollector collects and exposes scan metrics.
// This abstraction allows for testing without the Prometheus global registry.
type MetricsCollector interface {
	// IncrementFailures increments the scan failure counter.
	IncrementFailures()

	// SetMetrics updates all metrics from a completed scan.
	SetMetrics(result *bmu.ScanResult)
}
