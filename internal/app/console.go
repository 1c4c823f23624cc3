// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/config"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
)

// RunConsole subscribes to the report topic and prints every summary until
// ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("console")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	token := client.Subscribe(cfg.TopicReport, 1, consoleHandler(out, log))
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info("subscribed", zap.String("topic", cfg.TopicReport))

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func consoleHandler(out io.Writer, log *zap.Logger) mqtt.MessageHandler {
	var mu sync.Mutex
	return func(_ mqtt.Client, msg mqtt.Message) {
		var sum pipeline.Summary
		if err := json.Unmarshal(msg.Payload(), &sum); err != nil {
			log.Warn("summary unmarshal error", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		PrintSummary(out, sum, DefaultMaxWindows)
	}
}
