// Package testing provides mocks and fixture helpers shared by the monitor
// and app tests.
package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

// MockScanner is a mock BatteryScanner with customizable behavior.
type MockScanner struct {
	mu sync.Mutex

	ScanFunc func(ctx context.Context) (*bmu.ScanResult, error)

	ScanCalls int
}

func (m *MockScanner) Scan(ctx context.Context) (*bmu.ScanResult, error) {
	m.mu.Lock()
	m.ScanCalls++
	m.mu.Unlock()

	if m.ScanFunc != nil {
		return m.ScanFunc(ctx)
	}
	return nil, fmt.Errorf("Scan not implemented")
}

// MockMessagePublisher is a mock publisher with call tracking.
type MockMessagePublisher struct {
	mu sync.RWMutex

	PublishFunc func(topicSuffix, payload string)
	CloseFunc   func()

	PublishCalls []PublishCall
	CloseCalls   int
	Closed       bool
}

type PublishCall struct {
	TopicSuffix string
	Payload     string
}

func (m *MockMessagePublisher) Publish(topicSuffix, payload string) {
	m.mu.Lock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{TopicSuffix: topicSuffix, Payload: payload})
	m.mu.Unlock()

	if m.PublishFunc != nil {
		m.PublishFunc(topicSuffix, payload)
	}
}

func (m *MockMessagePublisher) Close() {
	m.mu.Lock()
	m.CloseCalls++
	m.Closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

// Calls returns a snapshot of the publish calls so far.
func (m *MockMessagePublisher) Calls() []PublishCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]PublishCall, len(m.PublishCalls))
	copy(calls, m.PublishCalls)
	return calls
}

// MockMetricsCollector tracks metric updates without the Prometheus
// global registry.
type MockMetricsCollector struct {
	mu sync.Mutex

	FailuresCount   int
	SetMetricsCalls []*bmu.ScanResult
}

func (m *MockMetricsCollector) IncrementFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailuresCount++
}

func (m *MockMetricsCollector) SetMetrics(result *bmu.ScanResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetMetricsCalls = append(m.SetMetricsCalls, result)
}

// ScanFixture builds a small but fully populated ScanResult for tests.
func ScanFixture() *bmu.ScanResult {
	module := bmu.ModuleReading{
		ModuleID:             1,
		CellVoltagesMv:       make([]int16, bmu.CellsPerModule),
		CellTemperaturesC:    make([]int8, bmu.TempSensorsPerModule),
		MaxCellVoltageMv:     3350,
		MinCellVoltageMv:     3310,
		BalancingMask:        0x0022,
		BalancingCells:       []int{2, 6},
		StateOfChargePct:     97.5,
		StateOfHealthPct:     99,
		CurrentA:             5.0,
		BatteryVoltageV:      51.2,
		OutputVoltageV:       50.9,
		PowerW:               254.5,
		ChargeLifetimeKwh:    1017.5,
		DischargeLifetimeKwh: 951.2,
		SerialNumber:         "P011T010Z2305150689",
	}
	for i := range module.CellVoltagesMv {
		module.CellVoltagesMv[i] = int16(3300 + i)
	}
	for i := 0; i < 6; i++ {
		module.CellTemperaturesC[i] = int8(25 + i%3)
	}

	return &bmu.ScanResult{
		Timestamp:   time.Unix(1700000000, 0),
		BMUSerial:   "BYD2305",
		ModuleCount: 1,
		Towers:      1,
		Summary: &bmu.SystemSummary{
			StateOfChargePct: 55,
			StateOfHealthPct: 99,
			MaxCellVoltageV:  3.35,
			MinCellVoltageV:  3.31,
			CurrentA:         5.0,
			PackVoltageV:     51.2,
			MaxCellTempC:     28,
			MinCellTempC:     22,
			ChargeKwh:        1017.5,
			DischargeKwh:     951.2,
			Towers:           1,
		},
		Modules: []bmu.ModuleReading{module},
	}
}
