// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/pipeline"
)

// WebSocket message types
type WSMessage struct {
	Action    string  `json:"action"`               // start, cancel
	DurationS float64 `json:"duration_s,omitempty"` // overrides CAPTURE_DURATION_S
}

type WSResponse struct {
	Type     string            `json:"type"` // phase, progress, complete, error
	Phase    string            `json:"phase,omitempty"`
	Progress float64           `json:"progress,omitempty"`
	Stats    map[string]int    `json:"stats,omitempty"`
	Summary  *pipeline.Summary `json:"summary,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// progressStep is the minimum fraction between two progress messages.
const progressStep = 0.01

// CaptureSession drives one browser-initiated capture over a websocket.
type CaptureSession struct {
	srv  *Server
	Conn *websocket.Conn
	log  *zap.Logger

	lastProgress float64
}

// HandleCaptureWS handles the WebSocket connection for browser captures. Only
// one capture runs at a time across all sessions.
func (s *Server) HandleCaptureWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("capture: websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	session := &CaptureSession{srv: s, Conn: conn, log: s.log.Named("capture")}

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			session.log.Debug("websocket read error", zap.Error(err))
			return
		}

		switch msg.Action {
		case "start":
			if err := session.run(r.Context(), msg.DurationS); err != nil {
				session.sendError(err.Error())
			}
		case "cancel":
			session.log.Info("cancelled by user")
			return
		default:
			session.sendError(fmt.Sprintf("unknown action %q", msg.Action))
		}
	}
}

func (c *CaptureSession) run(ctx context.Context, durationS float64) error {
	if !c.srv.capturing.TryLock() {
		return fmt.Errorf("a capture is already running")
	}
	defer c.srv.capturing.Unlock()

	cfg := c.srv.cfg
	duration := cfg.CaptureDuration()
	if durationS > 0 {
		duration = time.Duration(durationS * float64(time.Second))
	}

	src, name, err := c.srv.openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	c.sendPhase("capturing")
	c.lastProgress = 0
	p := newPipeline(cfg, c.srv.log, 0, c.sendProgress)
	report, runErr := p.Acquire(ctx, src, duration, cfg.ReadTimeout())
	if report == nil {
		return runErr
	}

	sum := report.Summary(name)
	if runErr != nil {
		sum.Error = runErr.Error()
	}
	c.srv.Update(sum)
	deliver(ctx, c.srv.sinks, sum, c.log)

	c.Conn.WriteJSON(WSResponse{Type: "complete", Summary: &sum})
	c.log.Info("capture complete", zap.String("run_id", sum.RunID), zap.Int("samples", sum.Counts.Samples))
	return nil
}

func (c *CaptureSession) sendPhase(phase string) {
	c.Conn.WriteJSON(WSResponse{
		Type:  "phase",
		Phase: phase,
	})
}

func (c *CaptureSession) sendProgress(pr pipeline.Progress) {
	f := pr.Fraction()
	if f-c.lastProgress < progressStep && f < 1 {
		return
	}
	c.lastProgress = f
	c.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: f,
		Stats: map[string]int{
			"samples":     pr.Counts.Samples,
			"quaternions": pr.Counts.Quaternions,
			"invalid":     pr.Counts.Invalid,
		},
	})
}

func (c *CaptureSession) sendError(message string) {
	c.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
