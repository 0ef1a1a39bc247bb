// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package sylog provides the leveled logging facade used across corerun. It
// wraps apex/log so call sites can log without depending on a specific
// backend, the same separation the teacher runtime keeps between its own
// pkg/sylog facade and apex/log.
package sylog

import (
	"fmt"
	"io"
	"os"

	apexlog "github.com/apex/log"
	"github.com/apex/log/handlers/text"
)

// Level mirrors the teacher's own leveled-logging vocabulary.
type Level int

const (
	FatalLevel Level = iota - 1
	ErrorLevel
	WarnLevel
	LogLevel
	InfoLevel
	VerboseLevel
	DebugLevel
	DebugLogger
)

var current = InfoLevel

var out io.Writer = os.Stderr

// SetLevel sets the process-wide logging verbosity.
func SetLevel(l Level) {
	current = l
	apexlog.SetLevel(toApexLevel(l))
}

// GetLevel returns the process-wide logging verbosity.
func GetLevel() Level {
	return current
}

// Writer returns the current log output writer, for collaborators (e.g. an
// image-copy progress bar) that need to share it.
func Writer() io.Writer {
	return out
}

// SetWriter redirects log output, used by tests to capture log lines.
func SetWriter(w io.Writer) {
	out = w
	apexlog.SetHandler(text.New(w))
}

func toApexLevel(l Level) apexlog.Level {
	switch {
	case l <= ErrorLevel:
		return apexlog.ErrorLevel
	case l <= WarnLevel:
		return apexlog.WarnLevel
	case l <= LogLevel:
		return apexlog.InfoLevel
	default:
		return apexlog.DebugLevel
	}
}

func init() {
	apexlog.SetHandler(text.New(out))
	apexlog.SetLevel(toApexLevel(current))
}

func logf(l Level, tag string, format string, args ...interface{}) {
	if l > current {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case l <= ErrorLevel:
		apexlog.Errorf("%s %s", tag, msg)
	case l <= WarnLevel:
		apexlog.Warnf("%s %s", tag, msg)
	case l <= LogLevel || l <= InfoLevel:
		apexlog.Infof("%s %s", tag, msg)
	default:
		apexlog.Debugf("%s %s", tag, msg)
	}
}

// Fatalf logs an error and terminates the process.
func Fatalf(format string, args ...interface{}) {
	logf(FatalLevel, "FATAL", format, args...)
	os.Exit(255)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	logf(ErrorLevel, "ERROR", format, args...)
}

// Warningf logs at warning level.
func Warningf(format string, args ...interface{}) {
	logf(WarnLevel, "WARNING", format, args...)
}

// Infof logs at informational level.
func Infof(format string, args ...interface{}) {
	logf(InfoLevel, "INFO", format, args...)
}

// Verbosef logs at verbose level, between info and debug.
func Verbosef(format string, args ...interface{}) {
	logf(VerboseLevel, "VERBOSE", format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	logf(DebugLevel, "DEBUG", format, args...)
}
