// Package notify carries finished alerts out of the service. Sinks are
// fire-and-forget: delivery failure is the caller's to log, never to
// retry.
package notify

import (
	"context"
	"log"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

type Notification struct {
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Message  string  `json:"message"`
	Urgency  Urgency `json:"urgency"`
	Icon     string  `json:"icon,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the process log. It is the default
// sink when no webhook is configured.
type LogSink struct {
	Logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify: [%s] %s: %s", n.Urgency, n.Title, n.Message)
	return nil
}
