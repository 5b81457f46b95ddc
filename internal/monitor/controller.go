package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

const namespace = "battery"

// Controller runs periodic battery scans, keeps the latest result for the
// HTTP API, feeds Prometheus, and publishes scan data through the configured
// publisher. Scans are strictly serialized: the BMU serves one session.
type Controller struct {
	scanner   BatteryScanner
	publisher MessagePublisher
	metrics   MetricsCollector
	scheduler *gocron.Scheduler
	deviceID  string

	// scanMu enforces one scan at a time: a slow battery (worst case the
	// full poll budget per module) can outlast the schedule period, and two
	// interleaved sequencers through one transport would corrupt the FIFO.
	scanMu sync.Mutex

	mu       sync.RWMutex
	lastScan *bmu.ScanResult
}

// NewController creates the controller and starts the scan schedule.
func NewController(scanner BatteryScanner, publisher MessagePublisher, metrics MetricsCollector, deviceID string, scanPeriodSeconds int) (*Controller, error) {
	controller := &Controller{
		scanner:   scanner,
		publisher: publisher,
		metrics:   metrics,
		deviceID:  deviceID,
	}

	s := gocron.NewScheduler(time.UTC)

	_, err := s.Every(scanPeriodSeconds).Seconds().SingletonMode().WaitForSchedule().Do(controller.scanAndPublish)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule battery scan %w", err)
	}

	s.StartAsync()
	controller.scheduler = s

	return controller, nil
}

func (c *Controller) scanAndPublish() {
	if !c.scanMu.TryLock() {
		log.Warn("previous battery scan still running, skipping this run")
		return
	}
	defer c.scanMu.Unlock()

	log.Debug("starting scheduled battery scan")

	ctx := context.Background()
	result, err := c.scanner.Scan(ctx)
	if err != nil {
		log.Errorf("battery scan failed: %s", err)
		c.metrics.IncrementFailures()
		c.publishFailure(err)
		return
	}

	c.mu.Lock()
	c.lastScan = result
	c.mu.Unlock()

	c.metrics.SetMetrics(result)

	b, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal scan result for publishing: %s", err)
		return
	}

	c.publisher.Publish(fmt.Sprintf("%s/%s/scan", c.deviceID, namespace), string(b))

	for _, metric := range ConvertScanToMetrics(result) {
		payload, err := metric.ToJSON()
		if err != nil {
			log.Errorf("failed to marshal metric %s: %s", metric.Name, err)
			continue
		}
		c.publisher.Publish(fmt.Sprintf("%s/%s/%s", c.deviceID, namespace, metric.Name), payload)
	}

	log.Debugf("battery scan done: %d modules, %d failures", len(result.Modules), len(result.Failures))
}

func (c *Controller) publishFailure(scanErr error) {
	payload, err := json.Marshal(map[string]interface{}{
		"error":     scanErr.Error(),
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return
	}

	c.publisher.Publish(fmt.Sprintf("%s/%s/scan-failure", c.deviceID, namespace), string(payload))
}

// LastScan returns the most recent scan result, or nil before the first
// successful scan.
func (c *Controller) LastScan() *bmu.ScanResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastScan
}

// ScanGet serves the full latest scan result.
func (c *Controller) ScanGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		last := c.LastScan()
		if last == nil {
			ctx.JSON(http.StatusNoContent, gin.H{})
			return
		}
		ctx.JSON(http.StatusOK, last)
	}
}

// SummaryGet serves only the system summary of the latest scan.
func (c *Controller) SummaryGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		last := c.LastScan()
		if last == nil || last.Summary == nil {
			ctx.JSON(http.StatusNoContent, gin.H{})
			return
		}
		ctx.JSON(http.StatusOK, last.Summary)
	}
}

// ModuleGet serves one module's reading from the latest scan.
func (c *Controller) ModuleGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		last := c.LastScan()
		if last == nil {
			ctx.JSON(http.StatusNoContent, gin.H{})
			return
		}

		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
			return
		}

		module := last.Module(id)
		if module == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no reading for module %d", id)})
			return
		}

		ctx.JSON(http.StatusOK, module)
	}
}

// RegisterEndpoints wires the controller's routes onto the router.
func (c *Controller) RegisterEndpoints(r *gin.Engine) {
	prefix := fmt.Sprintf("/api/%s", namespace)

	r.GET(prefix, c.ScanGet())
	r.GET(fmt.Sprintf("%s/summary", prefix), c.SummaryGet())
	r.GET(fmt.Sprintf("%s/modules/:id", prefix), c.ModuleGet())
}

// Close stops the scan schedule.
func (c *Controller) Close() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
}
