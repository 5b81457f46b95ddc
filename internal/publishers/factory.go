package publishers

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/config"
	"github.com/oliveres/byd-lvs-monitor/internal/file"
	"github.com/oliveres/byd-lvs-monitor/internal/monitor"
	"github.com/oliveres/byd-lvs-monitor/internal/mqtt"
	"github.com/oliveres/byd-lvs-monitor/internal/remotewrite"
	"github.com/oliveres/byd-lvs-monitor/internal/sns"
	"github.com/oliveres/byd-lvs-monitor/internal/solace"
)

// NewPublisher builds the message publisher from the configuration. Every
// enabled sink receives every message: a single enabled sink is returned
// directly, several fan out through a MultiPublisher, and none yields a
// NoOpPublisher.
func NewPublisher(cfg *config.MonitorConfiguration) (monitor.MessagePublisher, error) {
	var sinks []monitor.MessagePublisher

	if cfg.Mqtt.Enabled {
		log.Info("Creating MQTT publisher")
		pub, err := mqtt.NewPublisher(&cfg.Mqtt, cfg.TopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create MQTT publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	if cfg.Solace.Enabled {
		log.Info("Creating Solace publisher")
		pub, err := solace.NewPublisher(&cfg.Solace, cfg.TopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create Solace publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	if cfg.File.Enabled {
		log.Info("Creating File publisher")
		pub, err := file.NewPublisher(&cfg.File, cfg.TopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create File publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	if cfg.Sns.Enabled {
		log.Info("Creating SNS publisher")
		pub, err := sns.NewPublisher(&cfg.Sns, cfg.TopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	if cfg.RemoteWrite.Enabled {
		log.Info("Creating Prometheus remote write publisher")
		pub, err := remotewrite.NewPublisher(&cfg.RemoteWrite, cfg.TopicPrefix, cfg.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote write publisher: %w", err)
		}
		sinks = append(sinks, pub)
	}

	switch len(sinks) {
	case 0:
		log.Info("No message publisher enabled")
		return &NoOpPublisher{}, nil
	case 1:
		return sinks[0], nil
	default:
		log.Infof("Fanning out to %d publishers", len(sinks))
		return NewMultiPublisher(sinks, log.StandardLogger()), nil
	}
}

// NoOpPublisher is a publisher that does nothing.
// Used when no message sink is configured.
type NoOpPublisher struct{}

func (n *NoOpPublisher) Publish(_, _ string) {
	// Do nothing
}

func (n *NoOpPublisher) Close() {
	// Do nothing
}
