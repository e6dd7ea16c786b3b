package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "text", &buf)

	logger.Info("header written", KeyHeaderLen, 128)

	output := buf.String()
	if !strings.Contains(output, "header written") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, "header_len=128") {
		t.Errorf("expected output to contain header_len=128, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "json", &buf)

	logger.Info("option selected", KeyOption, "pw")

	output := buf.String()
	if !strings.Contains(output, `"msg":"option selected"`) {
		t.Errorf("expected JSON msg field, got: %s", output)
	}
	if !strings.Contains(output, `"option":"pw"`) {
		t.Errorf("expected JSON option field, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("info message appeared despite warn level filter")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("warn message did not appear")
	}
}

func TestNopLoggerDiscardsOutput(t *testing.T) {
	logger := NopLogger()
	if logger == nil {
		t.Fatal("NopLogger() returned nil")
	}
	// Should not panic and should produce no observable output.
	logger.Info("discarded", KeyFactor, "Passphrase", slog.Any("err", nil))
}
