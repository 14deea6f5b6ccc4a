// Package server exposes document question answering over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	TypeQuery    = "query"
	TypeReset    = "reset"
	TypeStatus   = "status"
	TypeResponse = "response"
	TypeError    = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Session is one conversation; the server never shares a session between
// connections.
type Session interface {
	Chat(ctx context.Context, query string) (string, error)
	Reset()
}

// SessionFactory builds a session. onToolCall must be reported for every tool
// the session invokes.
type SessionFactory func(onToolCall func(name, input string)) (Session, error)

type Config struct {
	Addr   string
	Logger *zap.Logger
	// QueryTimeout bounds a single query; zero means no limit.
	QueryTimeout time.Duration
}

type WSServer struct {
	config     Config
	newSession SessionFactory
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics
}

type metrics struct {
	queries  *prometheus.CounterVec
	tools    *prometheus.CounterVec
	latency  prometheus.Histogram
	sessions prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfagent",
			Name:      "queries_total",
			Help:      "Queries answered, by outcome.",
		}, []string{"status"}),
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfagent",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations requested by the model.",
		}, []string{"tool"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pdfagent",
			Name:      "query_duration_seconds",
			Help:      "Time to answer a query.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdfagent",
			Name:      "active_sessions",
			Help:      "Open websocket sessions.",
		}),
	}
	reg.MustRegister(m.queries, m.tools, m.latency, m.sessions)
	return m
}

func NewWSServer(config Config, newSession SessionFactory) (*WSServer, error) {
	if newSession == nil {
		return nil, errors.New("session factory is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	return &WSServer{
		config:     config,
		newSession: newSession,
		logger:     logger,
		registry:   registry,
		metrics:    newMetrics(registry),
	}, nil
}

// Handler serves /ws, /health and /metrics.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe runs until ctx is done, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	log := s.logger.With(zap.String("session", id))

	session, err := s.newSession(func(name, _ string) {
		s.metrics.tools.WithLabelValues(name).Inc()
	})
	if err != nil {
		log.Error("failed to create session", zap.Error(err))
		s.sendMessage(conn, TypeError, fmt.Sprintf("failed to create session: %v", err), nil)
		return
	}

	s.metrics.sessions.Inc()
	defer s.metrics.sessions.Dec()
	log.Info("session opened")
	s.sendMessage(conn, TypeStatus, "connected", map[string]string{"session_id": id})

	// Messages are handled in order; the session's history depends on it.
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("error reading message", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, TypeError, "invalid message: expected JSON with type and content", nil)
			continue
		}

		s.handleMessage(r.Context(), conn, session, msg)
	}
	log.Info("session closed")
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, session Session, msg Message) {
	switch msg.Type {
	case TypeReset:
		session.Reset()
		s.sendMessage(conn, TypeStatus, "conversation reset", nil)
		return
	case TypeQuery, "":
	default:
		s.sendMessage(conn, TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
		return
	}

	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, TypeError, "query must not be empty", nil)
		return
	}

	if s.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := session.Chat(ctx, query)
	s.metrics.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.queries.WithLabelValues("error").Inc()
		s.logger.Warn("query failed", zap.Error(err))
		s.sendMessage(conn, TypeError, fmt.Sprintf("Error: %v", err), nil)
		return
	}

	s.metrics.queries.WithLabelValues("ok").Inc()
	s.sendMessage(conn, TypeResponse, answer, nil)
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType string, content string, data interface{}) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", zap.Error(err))
	}
}
