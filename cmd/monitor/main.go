package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/app"
	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
	"github.com/oliveres/byd-lvs-monitor/internal/config"
	"github.com/oliveres/byd-lvs-monitor/internal/monitor"
	"github.com/oliveres/byd-lvs-monitor/internal/publishers"
	"github.com/oliveres/byd-lvs-monitor/internal/render"
)

var (
	configFilePath *string
	debugMode      *bool
	host           *string
	port           *int
	modules        *int
	towers         *int
	acceptTerms    *bool
	jsonOutput     *bool
)

func init() {
	configFilePath = flag.String("config", "", "Config file path (runs as a service when set)")
	debugMode = flag.Bool("debug", false, "Debug mode")
	host = flag.String("host", "192.168.16.254", "BMU IP address (one-shot mode)")
	port = flag.Int("port", 8080, "BMU TCP port (one-shot mode)")
	modules = flag.Int("modules", 0, "Number of BMS modules, 0 = auto-detect (one-shot mode)")
	towers = flag.Int("towers", 1, "Number of towers for display grouping (one-shot mode)")
	acceptTerms = flag.Bool("yes", false, "Accept disclaimer without prompting")
	flag.BoolVar(acceptTerms, "y", false, "Accept disclaimer without prompting (shorthand)")
	jsonOutput = flag.Bool("json", false, "Print the scan as JSON instead of tables (one-shot mode)")

	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
}

func main() {
	flag.Parse()

	if *debugMode {
		log.SetLevel(log.DebugLevel)
	}

	if *configFilePath != "" {
		runService()
		return
	}

	runOneShot()
}

// runOneShot connects, scans the battery once, renders the result, and
// disconnects. This is the interactive diagnostic mode.
func runOneShot() {
	if !*jsonOutput && !confirmDisclaimer(*acceptTerms) {
		return
	}

	client, err := bmu.NewClient(bmu.ClientConfig{
		Host:    *host,
		Port:    *port,
		SlaveID: 1,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	scanner := bmu.NewScanner(client, bmu.ScannerConfig{
		Modules: *modules,
		Towers:  *towers,
	})

	// A full scan of a large system takes tens of seconds; the BMU answers
	// one module at a time.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := scanner.Scan(ctx)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	if *jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("failed to marshal scan result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	render.Scan(result, *host, *port)
}

// runService loads the config file and runs the HTTP server with periodic
// scans and publishing.
func runService() {
	log.Info("starting byd-lvs-monitor")

	data, err := os.ReadFile(*configFilePath)
	if err != nil {
		log.Fatalf("failed to load config file: %v", err)
	}

	cfg, err := config.Load(data)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if cfg.Monitor.Debug || *debugMode {
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	client, err := bmu.NewClient(bmu.ClientConfig{
		Host:    cfg.Monitor.BMU.Host,
		Port:    cfg.Monitor.BMU.Port,
		SlaveID: byte(cfg.Monitor.BMU.SlaveID),
		Timeout: time.Duration(cfg.Monitor.BMU.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to connect to BMU: %v", err)
	}
	defer client.Close()

	scanner := bmu.NewScanner(client, bmu.ScannerConfig{
		Modules: cfg.Monitor.BMU.Modules,
		Towers:  cfg.Monitor.BMU.Towers,
	})

	publisher, err := publishers.NewPublisher(&cfg.Monitor)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	metrics := monitor.NewPrometheusCollector()

	application, err := app.NewApplication(&cfg, scanner, publisher, metrics)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	err = application.Run()

	if closeErr := application.Close(); closeErr != nil {
		log.Errorf("failed to shut down cleanly: %v", closeErr)
	}

	if err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

const disclaimer = `
  DISCLAIMER

  This software is NOT an official BYD diagnostic tool.
  It is provided "AS IS" without warranty of any kind.

  By using this software, you acknowledge and agree that:
  - The author assumes NO liability for any damages whatsoever
  - You waive all claims for compensation arising from its use
  - You accept full responsibility for any decisions made based
    on information provided by this software
  - Incorrect readings may occur due to communication errors
    or firmware differences

  BYD and Battery-Box are registered trademarks of BYD Company Limited.`

func confirmDisclaimer(accepted bool) bool {
	fmt.Println(disclaimer)

	if accepted {
		return true
	}

	fmt.Print("\n  Do you accept these terms? (yes/no): ")

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		fmt.Println("\n  Aborted.")
		return false
	}

	if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
		fmt.Println("  You must accept the terms to use this software.")
		return false
	}

	return true
}
