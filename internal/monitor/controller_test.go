package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
	testingpkg "github.com/oliveres/byd-lvs-monitor/internal/monitor/testing"
)

func newTestController(t *testing.T, scanner *testingpkg.MockScanner, publisher *testingpkg.MockMessagePublisher, metrics *testingpkg.MockMetricsCollector) *Controller {
	t.Helper()

	// Long period so the schedule never fires during the test; scans are
	// triggered manually.
	controller, err := NewController(scanner, publisher, metrics, "test-device-1", 3600)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(controller.Close)

	return controller
}

func TestControllerSkipsOverlappingScan(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	scanner := &testingpkg.MockScanner{
		ScanFunc: func(context.Context) (*bmu.ScanResult, error) {
			close(entered)
			<-release
			return testingpkg.ScanFixture(), nil
		},
	}
	publisher := &testingpkg.MockMessagePublisher{}
	metrics := &testingpkg.MockMetricsCollector{}

	controller := newTestController(t, scanner, publisher, metrics)

	done := make(chan struct{})
	go func() {
		controller.scanAndPublish()
		close(done)
	}()

	<-entered

	// A second run while the first still holds the transport must be
	// skipped, not interleaved.
	controller.scanAndPublish()

	close(release)
	<-done

	if scanner.ScanCalls != 1 {
		t.Errorf("Scan calls = %d, want 1 (overlapping run skipped)", scanner.ScanCalls)
	}
	if controller.LastScan() == nil {
		t.Error("LastScan() is nil after the first scan completed")
	}
}

func TestControllerScanAndPublish(t *testing.T) {
	scanner := &testingpkg.MockScanner{
		ScanFunc: func(context.Context) (*bmu.ScanResult, error) {
			return testingpkg.ScanFixture(), nil
		},
	}
	publisher := &testingpkg.MockMessagePublisher{}
	metrics := &testingpkg.MockMetricsCollector{}

	controller := newTestController(t, scanner, publisher, metrics)
	controller.scanAndPublish()

	if controller.LastScan() == nil {
		t.Fatal("LastScan() is nil after a successful scan")
	}

	if len(metrics.SetMetricsCalls) != 1 {
		t.Errorf("SetMetrics calls = %d, want 1", len(metrics.SetMetricsCalls))
	}

	calls := publisher.Calls()
	if len(calls) < 2 {
		t.Fatalf("publish calls = %d, want full scan plus per-metric payloads", len(calls))
	}

	if calls[0].TopicSuffix != "test-device-1/battery/scan" {
		t.Errorf("first topic = %s, want test-device-1/battery/scan", calls[0].TopicSuffix)
	}

	var published bmu.ScanResult
	if err := json.Unmarshal([]byte(calls[0].Payload), &published); err != nil {
		t.Fatalf("scan payload is not valid JSON: %v", err)
	}
	if published.BMUSerial != "BYD2305" {
		t.Errorf("published BMUSerial = %q, want BYD2305", published.BMUSerial)
	}

	foundSoc := false
	for _, call := range calls[1:] {
		if !strings.HasPrefix(call.TopicSuffix, "test-device-1/battery/") {
			t.Errorf("metric topic %s lacks device prefix", call.TopicSuffix)
		}
		if call.TopicSuffix == "test-device-1/battery/system-soc" {
			foundSoc = true
		}
	}
	if !foundSoc {
		t.Error("system-soc metric not published")
	}
}

func TestControllerScanFailure(t *testing.T) {
	scanner := &testingpkg.MockScanner{
		ScanFunc: func(context.Context) (*bmu.ScanResult, error) {
			return nil, errors.New("connection lost")
		},
	}
	publisher := &testingpkg.MockMessagePublisher{}
	metrics := &testingpkg.MockMetricsCollector{}

	controller := newTestController(t, scanner, publisher, metrics)
	controller.scanAndPublish()

	if controller.LastScan() != nil {
		t.Error("LastScan() should stay nil after a failed scan")
	}
	if metrics.FailuresCount != 1 {
		t.Errorf("FailuresCount = %d, want 1", metrics.FailuresCount)
	}

	calls := publisher.Calls()
	if len(calls) != 1 {
		t.Fatalf("publish calls = %d, want 1 failure notification", len(calls))
	}
	if calls[0].TopicSuffix != "test-device-1/battery/scan-failure" {
		t.Errorf("failure topic = %s", calls[0].TopicSuffix)
	}
	if !strings.Contains(calls[0].Payload, "connection lost") {
		t.Errorf("failure payload %q missing error text", calls[0].Payload)
	}
}

func TestControllerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	scanner := &testingpkg.MockScanner{
		ScanFunc: func(context.Context) (*bmu.ScanResult, error) {
			return testingpkg.ScanFixture(), nil
		},
	}

	controller := newTestController(t, scanner, &testingpkg.MockMessagePublisher{}, &testingpkg.MockMetricsCollector{})

	router := gin.New()
	controller.RegisterEndpoints(router)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		return w
	}

	// Before the first scan everything is empty.
	if w := get("/api/battery"); w.Code != http.StatusNoContent {
		t.Errorf("GET /api/battery before scan = %d, want 204", w.Code)
	}

	controller.scanAndPublish()

	if w := get("/api/battery"); w.Code != http.StatusOK {
		t.Errorf("GET /api/battery = %d, want 200", w.Code)
	}
	if w := get("/api/battery/summary"); w.Code != http.StatusOK {
		t.Errorf("GET /api/battery/summary = %d, want 200", w.Code)
	}
	if w := get("/api/battery/modules/1"); w.Code != http.StatusOK {
		t.Errorf("GET /api/battery/modules/1 = %d, want 200", w.Code)
	}
	if w := get("/api/battery/modules/7"); w.Code != http.StatusNotFound {
		t.Errorf("GET /api/battery/modules/7 = %d, want 404", w.Code)
	}
	if w := get("/api/battery/modules/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("GET /api/battery/modules/abc = %d, want 400", w.Code)
	}
}

func TestConvertScanToMetrics(t *testing.T) {
	metrics := ConvertScanToMetrics(testingpkg.ScanFixture())

	byName := map[string]Metric{}
	for _, m := range metrics {
		byName[m.Name] = m
	}

	if m, ok := byName["system-soc"]; !ok {
		t.Error("system-soc metric missing")
	} else if m.Value != 55 {
		t.Errorf("system-soc = %v, want 55", m.Value)
	}

	if m, ok := byName["module-1-balancing-cells"]; !ok {
		t.Error("module-1-balancing-cells metric missing")
	} else if m.Value != 2 {
		t.Errorf("module-1-balancing-cells = %v, want 2", m.Value)
	}

	if m, ok := byName["module-1-voltage-spread"]; !ok {
		t.Error("module-1-voltage-spread metric missing")
	} else if m.Value != 40 {
		t.Errorf("module-1-voltage-spread = %v, want 40", m.Value)
	}

	if ConvertScanToMetrics(nil) == nil {
		t.Error("ConvertScanToMetrics(nil) should return an empty slice")
	}
}
