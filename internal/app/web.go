// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/config"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
	"github.com/relabs-tech/imu_calibration/internal/store"
	"github.com/relabs-tech/imu_calibration/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Server serves the latest run summary over HTTP and pushes new ones to
// websocket clients. It can also start captures on request (see HandleCaptureWS).
type Server struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	sinks []Sink

	// openSource opens the capture input; it defaults to SERIAL_PORT.
	openSource func() (stream.Source, string, error)

	mu      sync.RWMutex
	last    *pipeline.Summary
	clients map[*websocket.Conn]struct{}

	capturing sync.Mutex
}

// NewServer returns a server without any summary yet. st may be nil.
func NewServer(cfg *config.Config, logger *zap.Logger, st *store.Store, sinks []Sink) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger.Named("web"),
		store:   st,
		sinks:   sinks,
		clients: make(map[*websocket.Conn]struct{}),
	}
	s.openSource = func() (stream.Source, string, error) {
		return openCaptureSource(cfg, s.log)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/ws", s.handleFeed)
	mux.HandleFunc("/ws/capture", s.HandleCaptureWS)
	return mux
}

// Update records sum as the latest summary and pushes it to every feed
// client. A summary with the same run id as the current one is ignored.
func (s *Server) Update(sum pipeline.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.RunID == sum.RunID {
		return
	}
	s.last = &sum

	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(sum); err != nil {
			s.log.Debug("dropping feed client", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Last returns the latest summary, if any.
func (s *Server) Last() (pipeline.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return pipeline.Summary{}, false
	}
	return *s.last, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.Last()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.log, sum)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage disabled", http.StatusNotFound)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		sum, err := s.store.Summary(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, s.log, sum)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.Runs(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.log, runs)
}

// handleFeed registers a websocket client for summary pushes. The latest
// summary, if any, is sent right away.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	if s.last != nil {
		conn.WriteJSON(*s.last)
	}
	s.mu.Unlock()

	// the feed is write-only; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("json encode error", zap.Error(err))
	}
}

// RunWeb serves the web API until ctx is done. With MQTT enabled it follows
// the report topic and publishes captures started from the browser.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		sinks []Sink
		st    *store.Store
	)
	if cfg.DBPath != "" {
		var err error
		st, err = store.Open(cfg.DBPath, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, storeSink{st})
	}

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		var err error
		client, err = connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
		if err != nil {
			closeSinks(sinks)
			return err
		}
		sinks = append(sinks, newPublisher(client, cfg.TopicReport, logger))
	}
	defer closeSinks(sinks)

	srv := NewServer(cfg, logger, st, sinks)

	if client != nil {
		token := client.Subscribe(cfg.TopicReport, 1, func(_ mqtt.Client, msg mqtt.Message) {
			var sum pipeline.Summary
			if err := json.Unmarshal(msg.Payload(), &sum); err != nil {
				srv.log.Warn("MQTT payload unmarshal error", zap.Error(err))
				return
			}
			srv.Update(sum)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		srv.log.Info("subscribed to MQTT topic", zap.String("topic", cfg.TopicReport))
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info("web server listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
