package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

type Configuration struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	ClientID string `yaml:"clientId"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Publisher struct {
	client      mqtt.Client
	config      Configuration
	topicPrefix string
}

func NewPublisher(config *Configuration, topicPrefix string) (*Publisher, error) {
	if !config.Enabled {
		log.Info("MQTT publisher disabled via configuration")
		return &Publisher{}, nil
	}

	if config.Host == "" {
		log.Warn("MQTT enabled but no host provided, publisher disabled")
		return &Publisher{}, nil
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID = "byd-lvs-monitor"
	}

	mqtt.ERROR = log.New()

	opts := mqtt.NewClientOptions().
		AddBroker(config.Host).
		SetClientID(clientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetKeepAlive(2 * time.Second).
		SetPingTimeout(1 * time.Second)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	log.Infof("connected to broker %s", config.Host)

	publisher := &Publisher{client: client, config: *config, topicPrefix: topicPrefix}

	return publisher, nil
}

func (p *Publisher) Publish(topicSuffix, payload string) {
	if p.client == nil {
		return
	}

	topic := fmt.Sprintf("%s/%s", p.topicPrefix, topicSuffix)

	log.Debugf("publishing for %s to %s", topicSuffix, topic)

	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Errorf("timeout waiting for publish to %s", topic)
	} else if token.Error() != nil {
		log.Errorf("failed to publish: %s", token.Error())
	}
}

func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}
