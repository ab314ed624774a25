package logger

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStandardLoggerPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(Logger)
		prefix string
		body   string
	}{
		{"info", func(l Logger) { l.Info("loaded %s", "a") }, "[INFO]", "loaded a"},
		{"warning", func(l Logger) { l.Warning("retry %d", 2) }, "[WARNING]", "retry 2"},
		{"error", func(l Logger) { l.Error("failed: %v", "boom") }, "[ERROR]", "failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.log(NewStandardLogger(log.New(buf, "", 0)))
			out := buf.String()
			if !strings.Contains(out, tt.prefix) || !strings.Contains(out, tt.body) {
				t.Errorf("output = %q, want %s and %q", out, tt.prefix, tt.body)
			}
		})
	}
}

type failingCloser struct {
	NopLogger
	err error
}

func (f failingCloser) Close() error { return f.err }

func TestMultiLogger(t *testing.T) {
	a, b := NewMockLogger(), NewMockLogger()
	m := NewMultiLogger(a, b)
	m.Info("one")
	m.Warning("two")
	m.Error("three")

	for _, l := range []*MockLogger{a, b} {
		if len(l.InfoCalls()) != 1 || len(l.WarningCalls()) != 1 || len(l.ErrorCalls()) != 1 {
			t.Errorf("calls = %v %v %v", l.InfoCalls(), l.WarningCalls(), l.ErrorCalls())
		}
	}

	first := errors.New("first")
	m = NewMultiLogger(failingCloser{err: first}, a, failingCloser{err: errors.New("second")})
	if err := m.Close(); !errors.Is(err, first) {
		t.Errorf("Close = %v, want first error", err)
	}
	if !a.Closed() {
		t.Error("backend after a failing one was not closed")
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "showrun.log")
	l, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hello %s", "file")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[INFO] hello file") {
		t.Errorf("file content = %q", data)
	}
}
