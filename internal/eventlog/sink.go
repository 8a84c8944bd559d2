// Package eventlog records the (event, payload) pairs the cache emits for
// every operation.
//
// Sinks never return errors: a failing sink logs the failure and moves on, so
// observability can never change the outcome of a cache operation.
package eventlog

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink receives cache events.
type Sink interface {
	Log(event string, payload any)
}

// Func adapts a function to Sink.
type Func func(event string, payload any)

// Log implements Sink.
func (f Func) Log(event string, payload any) { f(event, payload) }

// Nop discards every event.
var Nop Sink = Func(func(string, any) {})

type multi []Sink

// Multi fans every event out to each of sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Log(event string, payload any) {
	for _, s := range m {
		s.Log(event, payload)
	}
}

// LoggerSink writes one line per event: the event name followed by the
// payload as JSON.
type LoggerSink struct {
	logger *log.Logger
}

// NewLoggerSink returns a sink writing to logger. A nil logger writes to
// stderr with an "[events] " prefix.
func NewLoggerSink(logger *log.Logger) *LoggerSink {
	if logger == nil {
		logger = log.New(os.Stderr, "[events] ", log.LstdFlags)
	}
	return &LoggerSink{logger: logger}
}

// Log implements Sink.
func (s *LoggerSink) Log(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Printf("%s <unencodable payload: %v>", event, err)
		return
	}
	s.logger.Printf("%s %s", event, data)
}

// RotateConfig controls the rotating log file behind NewFileLogger.
type RotateConfig struct {
	// Filename is the log file path. Backups are written next to it.
	Filename string

	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep (0 keeps all).
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept (0 keeps them forever).
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool
}

// NewFileLogger returns a logger writing to a size-rotated file. Close the
// returned io.Closer on shutdown.
func NewFileLogger(cfg RotateConfig, prefix string) (*log.Logger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return log.New(w, prefix, log.LstdFlags), w
}
