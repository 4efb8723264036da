package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal structured-logging interface used throughout the
// service. Every subsystem receives one via constructor injection rather
// than reaching for a package-level global.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger lets a subsystem tag its own lines with a component
// name while sharing one base configuration (level, format, output).
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOpLogger discards everything. Used as the zero-value default so nil
// checks never litter call sites.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})                                 {}
func (NoOpLogger) Warn(string, map[string]interface{})                                 {}
func (NoOpLogger) Error(string, map[string]interface{})                                {}
func (NoOpLogger) Debug(string, map[string]interface{})                                {}
func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})     {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})     {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{})    {}
func (NoOpLogger) DebugWithContext(context.Context, string, map[string]interface{})    {}
func (l NoOpLogger) WithComponent(string) Logger                                       { return l }

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ProductionLogger is the default Logger: JSON in production/Kubernetes,
// human-readable text otherwise, with a component tag and a per-level
// threshold. Safe for concurrent use.
type ProductionLogger struct {
	mu        sync.RWMutex
	level     string
	format    string
	output    io.Writer
	service   string
	component string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// NewProductionLogger builds a logger for service, honoring LOG_LEVEL and
// auto-selecting JSON output under Kubernetes (KUBERNETES_SERVICE_HOST set)
// or when NODE_ENV=production, text otherwise.
func NewProductionLogger(service string) *ProductionLogger {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" || os.Getenv("NODE_ENV") == "production" {
		format = "json"
	}
	return &ProductionLogger{
		level:     level,
		format:    format,
		output:    os.Stdout,
		service:   service,
		component: "decant",
	}
}

// WithComponent returns a Logger sharing this logger's configuration but
// tagging lines with component, e.g. "decant/storage".
func (l *ProductionLogger) WithComponent(component string) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &ProductionLogger{level: l.level, format: l.format, output: l.output, service: l.service, component: component}
}

// SetOutput redirects log output, primarily for tests.
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *ProductionLogger) Info(msg string, f map[string]interface{})  { l.log("INFO", "", msg, f) }
func (l *ProductionLogger) Warn(msg string, f map[string]interface{})  { l.log("WARN", "", msg, f) }
func (l *ProductionLogger) Error(msg string, f map[string]interface{}) { l.log("ERROR", "", msg, f) }
func (l *ProductionLogger) Debug(msg string, f map[string]interface{}) { l.log("DEBUG", "", msg, f) }

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, f map[string]interface{}) {
	l.log("INFO", requestIDFromContext(ctx), msg, f)
}
func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, f map[string]interface{}) {
	l.log("WARN", requestIDFromContext(ctx), msg, f)
}
func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, f map[string]interface{}) {
	l.log("ERROR", requestIDFromContext(ctx), msg, f)
}
func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, f map[string]interface{}) {
	l.log("DEBUG", requestIDFromContext(ctx), msg, f)
}

func (l *ProductionLogger) log(level, requestID, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if levelRank[level] < levelRank[l.level] {
		return
	}

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": ts,
			"level":     level,
			"service":   l.service,
			"component": l.component,
			"message":   msg,
		}
		if requestID != "" {
			entry["request_id"] = requestID
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	var b strings.Builder
	if requestID != "" {
		fmt.Fprintf(&b, "req=%s ", requestID)
	}
	for k, v := range fields {
		fmt.Fprintf(&b, "%s=%v ", k, v)
	}
	fmt.Fprintf(l.output, "%s [%s] [%s] %s %s\n", ts, level, l.component, msg, b.String())
}
