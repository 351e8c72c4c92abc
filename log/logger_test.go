package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf)

	l.Info("request completed", map[string]any{"status": "ok"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["message"] != "request completed" {
		t.Errorf("message = %v, want %q", entry["message"], "request completed")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_WithRequest_AddsReqID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf).WithRequest("abc123")

	l.Error("dispatch failed", map[string]any{"error": "boom"})

	if !strings.Contains(buf.String(), "abc123") {
		t.Errorf("log output missing req_id: %s", buf.String())
	}
}

func TestSugaredLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	s := NewWithOutput(&buf).Sugar()

	s.Infof("listening on %s", ":9100")

	if !strings.Contains(buf.String(), ":9100") {
		t.Errorf("log output missing formatted arg: %s", buf.String())
	}
}
