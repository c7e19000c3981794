package logger

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLogs_WriteAndRead(t *testing.T) {
	logs, err := NewSessionLogs(t.TempDir(), false)
	require.NoError(t, err)

	id := uuid.NewString()
	sl, err := logs.Open(id, "[import]")
	require.NoError(t, err)
	sl.Log("processed %d records", 3)
	sl.Warn("record %s skipped", "42")
	require.NoError(t, sl.Close())

	text, err := logs.Read(id)
	require.NoError(t, err)
	assert.Contains(t, text, "[import] processed 3 records")
	assert.Contains(t, text, "[import] record 42 skipped")
}

func TestSessionLogs_Read_Missing(t *testing.T) {
	logs, err := NewSessionLogs(t.TempDir(), false)
	require.NoError(t, err)

	_, err = logs.Read(uuid.NewString())
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestSessionLogs_RejectsPathLikeIDs(t *testing.T) {
	logs, err := NewSessionLogs(t.TempDir(), false)
	require.NoError(t, err)

	_, err = logs.Read("../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLogNotFound)
}

func TestBaseLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "[a]")
	l.WithPrefix("[b]").Log("hello %s", "world")
	assert.Contains(t, buf.String(), "[a] [b] hello world")
}
