package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(testContext *testing.T) {
	testCases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for input, expected := range testCases {
		level, err := ParseLevel(input)
		if err != nil {
			testContext.Fatalf("unexpected error for %q: %v", input, err)
		}
		if level != expected {
			testContext.Fatalf("expected %v for %q, got %v", expected, input, level)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		testContext.Fatalf("expected error for unsupported level")
	}
}

func TestNewLoggerHonoursLevel(testContext *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		testContext.Fatalf("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		testContext.Fatalf("expected error to be enabled at warn level")
	}
}

func TestNewConsoleLoggerRejectsUnknownLevel(testContext *testing.T) {
	if _, err := NewConsoleLogger("loud"); err == nil {
		testContext.Fatalf("expected error for unsupported level")
	}
}
