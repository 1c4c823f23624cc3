// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/config"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
	"github.com/relabs-tech/imu_calibration/internal/store"
)

// deliverTimeout bounds how long a finished run waits on its sinks.
const deliverTimeout = 5 * time.Second

// Sink receives the summary of every finished run.
type Sink interface {
	Deliver(ctx context.Context, sum pipeline.Summary) error
	Close() error
}

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends run summaries to an MQTT topic, retained so late
// subscribers see the last run.
type Publisher struct {
	client publishClient
	topic  string
	log    *zap.Logger
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// NewPublisher connects to broker and publishes on topic.
func NewPublisher(broker, clientID, topic string, logger *zap.Logger) (*Publisher, error) {
	client, err := connectMQTT(broker, clientID)
	if err != nil {
		return nil, err
	}
	p := newPublisher(client, topic, logger)
	p.log.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("topic", topic))
	return p, nil
}

func newPublisher(client publishClient, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, topic: topic, log: logger.Named("mqtt")}
}

// Deliver publishes sum as JSON with QoS 1.
func (p *Publisher) Deliver(ctx context.Context, sum pipeline.Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", p.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}

	p.log.Debug("summary published", zap.String("run_id", sum.RunID), zap.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

type storeSink struct {
	*store.Store
}

func (s storeSink) Deliver(ctx context.Context, sum pipeline.Summary) error {
	return s.SaveRun(ctx, sum)
}

// OpenSinks opens the publisher and database the configuration enables. An
// empty MQTT_BROKER or DB_PATH leaves that sink out.
func OpenSinks(cfg *config.Config, clientID string, logger *zap.Logger) ([]Sink, error) {
	var sinks []Sink
	if cfg.MQTTBroker != "" {
		pub, err := NewPublisher(cfg.MQTTBroker, clientID, cfg.TopicReport, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pub)
	}
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath, logger)
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, storeSink{st})
	}
	return sinks, nil
}

// deliver hands sum to every sink. Failures are logged and do not stop the
// other sinks. Delivery outlives cancellation of ctx, bounded by deliverTimeout.
func deliver(ctx context.Context, sinks []Sink, sum pipeline.Summary, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()

	var errs []error
	for _, s := range sinks {
		if err := s.Deliver(ctx, sum); err != nil {
			logger.Warn("summary delivery failed", zap.String("run_id", sum.RunID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeSinks(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
