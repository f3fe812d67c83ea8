package logx_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/inloco/rtspview/internal/logx"
	"github.com/rs/zerolog"
)

func TestConfigureLogLevel(t *testing.T) {
	defer logx.Configure("info", "console")

	logx.Configure("all", "console")
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("expected trace level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("WARNING", "json")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("none", "")
	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("bogus", "")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logx.New(&buf, "JSON")
	l.Info().Str("url", "rtsp://cam/1").Msg("stream started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["message"] != "stream started" || entry["url"] != "rtsp://cam/1" || entry["level"] != "info" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("entry has no timestamp: %v", entry)
	}
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logx.New(&buf, "console")
	l.Info().Str("url", "rtsp://cam/1").Msg("stream started")

	out := buf.String()
	if json.Valid(buf.Bytes()) {
		t.Fatalf("console output should not be json: %q", out)
	}
	if !strings.Contains(out, "stream started") || !strings.Contains(out, "rtsp://cam/1") {
		t.Fatalf("console output = %q", out)
	}
}
