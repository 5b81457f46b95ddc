package solace

import (
	"fmt"
	"time"

	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/resource"

	log "github.com/sirupsen/logrus"
)

const (
	publishTimeout   = 5 * time.Second
	terminateTimeout = 250 * time.Millisecond

	// messageType marks every message so broker-side subscribers can tell
	// battery telemetry apart from other producers on the same VPN.
	messageType = "battery-telemetry"
)

type Configuration struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	VpnName  string `yaml:"vpnName"`
}

// Publisher sends battery telemetry to a Solace broker as direct messages.
// Payloads are the JSON documents produced by the scan controller, tagged
// with a battery-telemetry application message type and a JSON content
// header.
type Publisher struct {
	messagingService solace.MessagingService
	publisher        solace.DirectMessagePublisher
	builder          solace.OutboundMessageBuilder
	topicPrefix      string
}

func NewPublisher(cfg *Configuration, topicPrefix string) (*Publisher, error) {
	if !cfg.Enabled {
		log.Info("Solace publisher disabled via configuration")
		return &Publisher{}, nil
	}

	if cfg.Host == "" {
		log.Warn("Solace enabled but no host provided, publisher disabled")
		return &Publisher{}, nil
	}

	if cfg.VpnName == "" {
		log.Warn("Solace enabled but no VPN name provided, publisher disabled")
		return &Publisher{}, nil
	}

	messagingService, err := messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(cfg.servicePropertyMap()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build messaging service: %w", err)
	}

	if err := messagingService.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Solace broker: %w", err)
	}

	log.Infof("connected to Solace broker %s (VPN: %s)", cfg.Host, cfg.VpnName)

	directPublisher, err := messagingService.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		disconnect(messagingService)
		return nil, fmt.Errorf("failed to create direct message publisher: %w", err)
	}

	if err := directPublisher.Start(); err != nil {
		disconnect(messagingService)
		return nil, fmt.Errorf("failed to start direct message publisher: %w", err)
	}

	builder := messagingService.MessageBuilder().
		WithApplicationMessageType(messageType).
		WithHTTPContentHeader("application/json", "")

	return &Publisher{
		messagingService: messagingService,
		publisher:        directPublisher,
		builder:          builder,
		topicPrefix:      topicPrefix,
	}, nil
}

func (p *Publisher) Publish(topicSuffix, payload string) {
	if p.publisher == nil {
		return
	}

	topic := fmt.Sprintf("%s/%s", p.topicPrefix, topicSuffix)

	message, err := p.builder.BuildWithStringPayload(payload)
	if err != nil {
		log.Errorf("failed to build message for %s: %s", topic, err)
		return
	}

	// Direct publish is fire-and-forget; bound the wait so a wedged broker
	// connection cannot stall the scan loop.
	done := make(chan error, 1)
	go func() {
		done <- p.publisher.Publish(message, resource.TopicOf(topic))
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Errorf("failed to publish to %s: %s", topic, err)
		}
	case <-time.After(publishTimeout):
		log.Errorf("timeout publishing to %s", topic)
	}
}

func (p *Publisher) Close() {
	if p.publisher != nil {
		if err := p.publisher.Terminate(terminateTimeout); err != nil {
			log.Warnf("failed to terminate publisher: %v", err)
		}
	}
	if p.messagingService != nil {
		disconnect(p.messagingService)
	}
}

func disconnect(service solace.MessagingService) {
	if err := service.Disconnect(); err != nil {
		log.Warnf("failed to disconnect messaging service: %v", err)
	}
}

func (c *Configuration) servicePropertyMap() config.ServicePropertyMap {
	return config.ServicePropertyMap{
		config.TransportLayerPropertyHost:                c.Host,
		config.ServicePropertyVPNName:                    c.VpnName,
		config.AuthenticationPropertySchemeBasicUserName: c.Username,
		config.AuthenticationPropertySchemeBasicPassword: c.Password,
	}
}
