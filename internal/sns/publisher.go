package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

const requestTimeout = 5 * time.Second

type Configuration struct {
	Enabled  bool   `yaml:"enabled"`
	Region   string `yaml:"region"`
	TopicArn string `yaml:"topicArn"`
}

// snsAPI is the slice of the SNS client the publisher uses, extracted so
// tests can substitute a recording fake.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

// Publisher is the alerting sink: SNS fans out to email and pagers, so it
// only sees scan failures and scans with unreadable modules, never the
// per-metric telemetry stream.
type Publisher struct {
	client      snsAPI
	topicArn    string
	topicPrefix string
}

func NewPublisher(cfg *Configuration, topicPrefix string) (*Publisher, error) {
	if !cfg.Enabled {
		log.Info("SNS publisher disabled via configuration")
		return &Publisher{}, nil
	}

	if cfg.TopicArn == "" {
		log.Warn("SNS enabled but no topic ARN provided, publisher disabled")
		return &Publisher{}, nil
	}

	if cfg.Region == "" {
		log.Warn("SNS enabled but no region provided, publisher disabled")
		return &Publisher{}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg)

	if err := verifyTopic(client, cfg.TopicArn); err != nil {
		return nil, err
	}

	log.Infof("connected to SNS topic %s in region %s", cfg.TopicArn, cfg.Region)

	return &Publisher{
		client:      client,
		topicArn:    cfg.TopicArn,
		topicPrefix: topicPrefix,
	}, nil
}

func verifyTopic(client snsAPI, topicArn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
		TopicArn: aws.String(topicArn),
	})
	if err != nil {
		return fmt.Errorf("failed to verify SNS topic: %w", err)
	}

	return nil
}

// Publish forwards only alert-worthy messages. Scan failures always go out;
// full scan documents go out when modules were unreadable; the per-metric
// stream is dropped.
func (p *Publisher) Publish(topicSuffix, payload string) {
	if p.client == nil {
		return
	}

	switch {
	case strings.HasSuffix(topicSuffix, "/scan-failure"):
		p.send(topicSuffix, "Battery scan failed", payload)

	case strings.HasSuffix(topicSuffix, "/scan"):
		subject, ok := degradedScanSubject(payload)
		if !ok {
			return
		}
		p.send(topicSuffix, subject, payload)
	}
}

// degradedScanSubject inspects a scan document and reports whether it is
// alert-worthy, returning the alert subject if so.
func degradedScanSubject(payload string) (string, bool) {
	var result bmu.ScanResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		log.Warnf("scan payload is not a scan document: %s", err)
		return "", false
	}

	if len(result.Failures) == 0 {
		return "", false
	}

	ids := make([]string, len(result.Failures))
	for i, f := range result.Failures {
		ids[i] = fmt.Sprintf("BMS%d", f.ModuleID)
	}

	return fmt.Sprintf("Battery scan degraded: %d of %d modules unreadable (%s)",
		len(result.Failures), result.ModuleCount, strings.Join(ids, ", ")), true
}

func (p *Publisher) send(topicSuffix, subject, payload string) {
	topic := fmt.Sprintf("%s/%s", p.topicPrefix, topicSuffix)

	log.Infof("publishing alert %q for %s", subject, topic)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(payload),
	})
	if err != nil {
		log.Errorf("failed to publish alert to SNS for %s: %s", topic, err)
	}
}

func (p *Publisher) Close() {
	// The AWS SDK client holds no connection state that needs teardown.
}
