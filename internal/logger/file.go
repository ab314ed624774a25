package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// FileLogger appends to a log file.
type FileLogger struct {
	*StandardLogger
	f *os.File
}

// OpenFile opens path for appending, creating its directory if needed.
func OpenFile(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &FileLogger{StandardLogger: NewStandardLogger(log.New(f, "", log.LstdFlags)), f: f}, nil
}

func (l *FileLogger) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

var _ Logger = (*FileLogger)(nil)
