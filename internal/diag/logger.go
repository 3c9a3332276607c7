// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag is the structured-logging wrapper the rest of this module
// reaches for instead of the standard library's log package, mirroring how
// the broader corpus this module was built alongside settles on
// go.uber.org/zap for anything beyond a scratch driver's own fmt.Printf
// calls.
package diag

import "go.uber.org/zap"

// Logger is a thin, sugared wrapper over *zap.Logger. It exists so callers
// in this module depend on a small local interface (Infow/Warnw) rather
// than zap's full surface, and so a nil *Logger is always safe to log
// through — useful for code paths, like Region.Verify, that accept an
// optional logger.
type Logger struct {
	z *zap.SugaredLogger
}

// New wraps an existing *zap.Logger.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z.Sugar()}
}

// NewDevelopment builds a Logger suited to the lab/1 demo: human-readable
// console output, debug level enabled.
func NewDevelopment() (*Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

// Infow logs msg at info level with structured key/value pairs.
func (l *Logger) Infow(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Infow(msg, kv...)
}

// Warnw logs msg at warn level with structured key/value pairs.
func (l *Logger) Warnw(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Warnw(msg, kv...)
}

// Sync flushes any buffered log entries, following zap's own convention of
// deferring Sync right after construction.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}
