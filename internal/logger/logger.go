package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// defaultMaxLogBytes is the size at which the results log is rotated to
// <path>.1.
const defaultMaxLogBytes = 10 * 1024 * 1024

type ResultEvent struct {
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	Test       string `json:"test"`
	Backend    string `json:"backend"`
	Env        string `json:"env"`
	Expected   string `json:"expected"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type ResultLogger struct {
	path     string
	file     *os.File
	size     int64
	maxBytes int64
	mu       sync.Mutex
}

func New(path string) (*ResultLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	l := &ResultLogger{path: path, maxBytes: defaultMaxLogBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	if l.size >= l.maxBytes {
		if err := l.rotate(); err != nil {
			l.file.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *ResultLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// rotate moves the current file to <path>.1, replacing any older backup,
// and starts a fresh file.
func (l *ResultLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("rotate results log: %w", err)
	}
	return l.open()
}

func (l *ResultLogger) Log(event ResultEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if l.size > 0 && l.size+int64(len(data)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(data)
	l.size += int64(n)
	return err
}

func (l *ResultLogger) Path() string {
	return l.path
}

func (l *ResultLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
