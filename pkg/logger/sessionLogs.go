package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var ErrLogNotFound = errors.New("session log not found")

// SessionLogs хранит текстовый лог каждой сессии импорта в отдельном файле <dir>/<session_id>.log.
// Файлы переживают вытеснение сессии из памяти.
type SessionLogs struct {
	dir     string
	console bool
}

func NewSessionLogs(dir string, console bool) (*SessionLogs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session log dir %s: %w", dir, err)
	}
	return &SessionLogs{dir: dir, console: console}, nil
}

func (s *SessionLogs) Path(sessionID string) (string, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	return filepath.Join(s.dir, sessionID+".log"), nil
}

type SessionLog struct {
	*BaseLogger
	file *os.File
}

func (l *SessionLog) Close() error {
	_ = l.BaseLogger.Sync()
	return l.file.Close()
}

func (s *SessionLogs) Open(sessionID string, prefix string) (*SessionLog, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	var base *BaseLogger
	if s.console {
		base = NewLogger(file, prefix)
	} else {
		base = NewWriterLogger(file, prefix)
	}
	return &SessionLog{BaseLogger: base, file: file}, nil
}

func (s *SessionLogs) Read(sessionID string) (string, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrLogNotFound
		}
		return "", fmt.Errorf("read session log: %w", err)
	}
	return string(data), nil
}
