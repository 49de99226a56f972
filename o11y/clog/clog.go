// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog provides context aware logging.
// It can store a span ID and arbitrary labels to each context.
// The main use case is to tag every log entry of a shim invocation
// with the invoked program name and the invocation span, since many
// shims of one build write to the same stderr.
package clog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
)

type contextKeyType int

var contextKey contextKeyType

// defaultLogger is used when no logger is set in the context.
var defaultLogger = New(os.Stderr, "", log.WarnLevel)

// New creates a new Logger writing to w.
// prefix is usually the name the process was invoked as.
func New(w io.Writer, prefix string, level log.Level) *Logger {
	return &Logger{
		l: log.NewWithOptions(w, log.Options{
			Prefix:          prefix,
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.000",
		}),
	}
}

// NewContext sets the given logger to the context.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// NewSpan sets a new logger.Span with the given labels to the context.
func NewSpan(ctx context.Context, spanID string, labels map[string]string) context.Context {
	return NewContext(ctx, FromContext(ctx).Span(spanID, labels))
}

// FromContext returns a logger in the context, or the default logger
// writing warnings to stderr if it's not set.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey).(*Logger)
	if !ok {
		return defaultLogger
	}
	return logger
}

// Logger holds the span ID and arbitrary labels of the context.
type Logger struct {
	l *log.Logger

	spanID string
	labels map[string]string
}

// Span returns a sub logger for the span.
// Labels are appended to every entry as key=value, in key order.
func (l *Logger) Span(spanID string, labels map[string]string) *Logger {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var kv []any
	if spanID != "" {
		kv = append(kv, "span", spanID)
	}
	for _, k := range keys {
		kv = append(kv, k, labels[k])
	}
	merged := make(map[string]string, len(l.labels)+len(labels))
	for k, v := range l.labels {
		merged[k] = v
	}
	for k, v := range labels {
		merged[k] = v
	}
	return &Logger{
		l:      l.l.With(kv...),
		spanID: spanID,
		labels: merged,
	}
}

// SpanID returns the span ID of the logger.
func (l *Logger) SpanID() string {
	return l.spanID
}

// Label returns the value of the label, or empty if not set.
func (l *Logger) Label(key string) string {
	return l.labels[key]
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level log.Level) {
	l.l.SetLevel(level)
}

// Enabled reports whether entries at level are logged.
func (l *Logger) Enabled(level log.Level) bool {
	return l.l.GetLevel() <= level
}

// Debugf logs at debug log level in the manner of fmt.Printf.
func (l *Logger) Debugf(format string, args ...any) {
	l.l.Debug(fmt.Sprintf(format, args...))
}

// Infof logs at info log level in the manner of fmt.Printf.
func (l *Logger) Infof(format string, args ...any) {
	l.l.Info(fmt.Sprintf(format, args...))
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func (l *Logger) Warningf(format string, args ...any) {
	l.l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at error log level in the manner of fmt.Printf.
func (l *Logger) Errorf(format string, args ...any) {
	l.l.Error(fmt.Sprintf(format, args...))
}

// Debugf logs at debug log level in the manner of fmt.Printf.
func Debugf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Debugf(format, args...)
}

// Infof logs at info log level in the manner of fmt.Printf.
func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func Warningf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Warningf(format, args...)
}

// Errorf logs at error log level in the manner of fmt.Printf.
func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Errorf(format, args...)
}
