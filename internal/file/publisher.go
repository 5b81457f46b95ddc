package file

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 10
)

type Configuration struct {
	Enabled    bool   `yaml:"enabled"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`

	// ScansOnly archives only the full scan and scan-failure documents,
	// dropping the per-metric stream. Useful when the archive exists for
	// later reprocessing rather than as a message log.
	ScansOnly bool `yaml:"scansOnly"`
}

// archiveRecord is one line of the archive: when the message arrived, the
// topic it was published under, and the payload. JSON payloads are embedded
// as-is so reprocessing tools see the original document.
type archiveRecord struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher archives battery telemetry to a rotating JSON-lines file.
type Publisher struct {
	logger      *lumberjack.Logger
	scansOnly   bool
	topicPrefix string
}

func NewPublisher(cfg *Configuration, topicPrefix string) (*Publisher, error) {
	if !cfg.Enabled {
		log.Info("File publisher disabled via configuration")
		return &Publisher{}, nil
	}

	if cfg.Filename == "" {
		log.Warn("File publisher enabled but no filename provided, publisher disabled")
		return &Publisher{}, nil
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB
	}

	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	logger := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true, // Rotated filenames carry local time
	}

	log.Infof("File publisher initialized: %s (maxSize: %dMB, maxBackups: %d, scansOnly: %t)",
		cfg.Filename, maxSize, maxBackups, cfg.ScansOnly)

	return &Publisher{
		logger:      logger,
		scansOnly:   cfg.ScansOnly,
		topicPrefix: topicPrefix,
	}, nil
}

func (p *Publisher) Publish(topicSuffix, payload string) {
	if p.logger == nil {
		return
	}

	if p.scansOnly && !isScanDocument(topicSuffix) {
		return
	}

	record := archiveRecord{
		ReceivedAt: time.Now(),
		Topic:      fmt.Sprintf("%s/%s", p.topicPrefix, topicSuffix),
		Payload:    rawPayload(payload),
	}

	line, err := json.Marshal(record)
	if err != nil {
		log.Errorf("failed to marshal archive record for %s: %v", record.Topic, err)
		return
	}

	if _, err := p.logger.Write(append(line, '\n')); err != nil {
		log.Errorf("failed to write to archive file: %v", err)
	}
}

func isScanDocument(topicSuffix string) bool {
	return strings.HasSuffix(topicSuffix, "/scan") || strings.HasSuffix(topicSuffix, "/scan-failure")
}

// rawPayload embeds valid JSON untouched and quotes anything else so the
// archive line itself stays parseable.
func rawPayload(payload string) json.RawMessage {
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}

	quoted, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return quoted
}

func (p *Publisher) Close() {
	if p.logger != nil {
		if err := p.logger.Close(); err != nil {
			log.Errorf("failed to close archive file: %v", err)
		}
	}
}
