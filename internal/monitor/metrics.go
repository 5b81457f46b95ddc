package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

// Metric represents a single metric with its value, unit, and timestamp
type Metric struct {
	Name      string
	Value     interface{}
	Unit      string
	Timestamp int64
}

// MetricPayload is the JSON structure published for each metric
type MetricPayload struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit"`
	Timestamp int64       `json:"timestamp"`
}

// ToJSON converts a Metric to its JSON representation
func (m *Metric) ToJSON() (string, error) {
	payload := MetricPayload{
		Value:     m.Value,
		Unit:      m.Unit,
		Timestamp: m.Timestamp,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metric payload: %w", err)
	}

	return string(b), nil
}

// ConvertScanToMetrics flattens a ScanResult into individual metrics: the
// system summary plus per-module electrical values. Per-cell series stay on
// the Prometheus side; publishing 16 voltages per module per scan would
// drown most brokers' topic trees.
func ConvertScanToMetrics(result *bmu.ScanResult) []Metric {
	if result == nil {
		return []Metric{}
	}

	timestamp := result.Timestamp.Unix()
	metrics := []Metric{
		{
			Name:      "modules-read",
			Value:     len(result.Modules),
			Unit:      "count",
			Timestamp: timestamp,
		},
		{
			Name:      "modules-failed",
			Value:     len(result.Failures),
			Unit:      "count",
			Timestamp: timestamp,
		},
	}

	if s := result.Summary; s != nil {
		metrics = append(metrics,
			Metric{
				Name:      "system-soc",
				Value:     s.StateOfChargePct,
				Unit:      "percent",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "system-soh",
				Value:     s.StateOfHealthPct,
				Unit:      "percent",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "pack-voltage",
				Value:     s.PackVoltageV,
				Unit:      "volts",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "pack-current",
				Value:     s.CurrentA,
				Unit:      "amperes",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "max-cell-voltage",
				Value:     s.MaxCellVoltageV,
				Unit:      "volts",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "min-cell-voltage",
				Value:     s.MinCellVoltageV,
				Unit:      "volts",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "charge-energy",
				Value:     s.ChargeKwh,
				Unit:      "kilowatt-hours",
				Timestamp: timestamp,
			},
			Metric{
				Name:      "discharge-energy",
				Value:     s.DischargeKwh,
				Unit:      "kilowatt-hours",
				Timestamp: timestamp,
			},
		)
	}

	for _, m := range result.Modules {
		prefix := fmt.Sprintf("module-%d", m.ModuleID)
		metrics = append(metrics,
			Metric{
				Name:      prefix + "-soc",
				Value:     m.StateOfChargePct,
				Unit:      "percent",
				Timestamp: timestamp,
			},
			Metric{
				Name:      prefix + "-current",
				Value:     m.CurrentA,
				Unit:      "amperes",
				Timestamp: timestamp,
			},
			Metric{
				Name:      prefix + "-power",
				Value:     m.PowerW,
				Unit:      "watts",
				Timestamp: timestamp,
			},
			Metric{
				Name:      prefix + "-balancing-cells",
				Value:     len(m.BalancingCells),
				Unit:      "count",
				Timestamp: timestamp,
			},
			Metric{
				Name:      prefix + "-voltage-spread",
				Value:     int(m.MaxCellVoltageMv - m.MinCellVoltageMv),
				Unit:      "millivolts",
				Timestamp: timestamp,
			},
		)
	}

	return metrics
}
