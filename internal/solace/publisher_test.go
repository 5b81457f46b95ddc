package solace

import (
	"testing"

	"github.com/sirupsen/logrus"
	"solace.dev/go/messaging/pkg/solace/config"
)

func init() {
	// Suppress log output during tests
	logrus.SetLevel(logrus.ErrorLevel)
}

func TestNewPublisher_Disabled(t *testing.T) {
	cfg := &Configuration{
		Enabled: false,
		Host:    "tcp://localhost:55555",
		VpnName: "default",
	}

	pub, err := NewPublisher(cfg, "battery")
	if err != nil {
		t.Fatalf("Expected no error for disabled publisher, got: %v", err)
	}

	if pub.publisher != nil {
		t.Error("Expected nil publisher for disabled publisher")
	}

	if pub.messagingService != nil {
		t.Error("Expected nil messaging service for disabled publisher")
	}
}

func TestNewPublisher_MissingHost(t *testing.T) {
	cfg := &Configuration{
		Enabled: true,
		Host:    "",
		VpnName: "default",
	}

	pub, err := NewPublisher(cfg, "battery")
	if err != nil {
		t.Fatalf("Expected no error for missing host (returns empty publisher), got: %v", err)
	}

	if pub.publisher != nil {
		t.Error("Expected nil publisher when host is missing")
	}
}

func TestNewPublisher_MissingVpnName(t *testing.T) {
	cfg := &Configuration{
		Enabled: true,
		Host:    "tcp://localhost:55555",
		VpnName: "",
	}

	pub, err := NewPublisher(cfg, "battery")
	if err != nil {
		t.Fatalf("Expected no error for missing VPN name (returns empty publisher), got: %v", err)
	}

	if pub.publisher != nil {
		t.Error("Expected nil publisher when VPN name is missing")
	}
}

func TestPublish_DisabledPublisher(_ *testing.T) {
	pub := &Publisher{}

	// Should not panic when publishing to disabled publisher
	pub.Publish("bmu-1/battery/system-soc", `{"value":85,"unit":"percent"}`)
}

func TestClose_DisabledPublisher(_ *testing.T) {
	pub := &Publisher{}

	// Should not panic when closing disabled publisher
	pub.Close()
}

func TestServicePropertyMap(t *testing.T) {
	cfg := &Configuration{
		Host:     "tcp://localhost:55555",
		VpnName:  "default",
		Username: "user123",
		Password: "pass123",
	}

	propMap := cfg.servicePropertyMap()

	if got := propMap[config.TransportLayerPropertyHost]; got != "tcp://localhost:55555" {
		t.Errorf("host property = %v, want tcp://localhost:55555", got)
	}
	if got := propMap[config.ServicePropertyVPNName]; got != "default" {
		t.Errorf("vpn property = %v, want default", got)
	}
	if got := propMap[config.AuthenticationPropertySchemeBasicUserName]; got != "user123" {
		t.Errorf("username property = %v, want user123", got)
	}
	if got := propMap[config.AuthenticationPropertySchemeBasicPassword]; got != "pass123" {
		t.Errorf("password property = %v, want pass123", got)
	}
}

// Note: full publish behavior needs a live broker; the Solace SDK's builder
// and publisher types are concrete, so the remaining coverage comes from
// integration environments.
