// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpsolve

import (
	"fmt"
	"io"
)

// LogLevel controls the frequency and type of logger output, mirroring
// the teacher's lbfgsb.LogLevel gate.
type LogLevel int

const (
	// LogNoop suppresses all output.
	LogNoop LogLevel = -1
	// LogLast prints one line when the solve terminates.
	LogLast LogLevel = 0
	// LogIter prints a line per ADMM iteration at which residuals were
	// checked.
	LogIter LogLevel = 1
	// LogTrace additionally prints each accepted rho update; polish
	// outcomes are not logged.
	LogTrace LogLevel = 99
)

// Logger handles logging output for the engine. Writers must be
// thread-safe if a single Logger is shared across concurrently-solving
// Engines (the engine itself is not safe for concurrent Solve calls on
// the same instance).
type Logger struct {
	Level LogLevel
	Msg   io.Writer // iteration/status messages
	Out   io.Writer // final solution line
}

func (l *Logger) enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if l.Msg == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if l.Out == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}
