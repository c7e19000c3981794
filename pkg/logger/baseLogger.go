package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BaseLogger пишет строки вида "<prefix> <message>" в консоль и, если задан, в дополнительный writer.
type BaseLogger struct {
	mu     sync.Mutex
	prefix string
	writer io.Writer
	zl     *zap.SugaredLogger
}

func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	return &BaseLogger{
		writer: writer,
		prefix: prefix,
		zl:     newZap(writer, true),
	}
}

// NewWriterLogger пишет только в writer, без дублирования в консоль.
func NewWriterLogger(writer io.Writer, prefix string) *BaseLogger {
	return &BaseLogger{
		writer: writer,
		prefix: prefix,
		zl:     newZap(writer, false),
	}
}

// Nop глотает всё. Удобно в тестах.
func Nop() *BaseLogger {
	return &BaseLogger{zl: zap.NewNop().Sugar()}
}

func newZap(writer io.Writer, console bool) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = ""

	var cores []zapcore.Core
	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			zap.InfoLevel,
		))
	}
	if writer != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(writer),
			zap.DebugLevel,
		))
	}
	if len(cores) == 0 {
		return zap.NewNop().Sugar()
	}
	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func (l *BaseLogger) message(format string, v ...interface{}) string {
	l.mu.Lock()
	prefix := l.prefix
	l.mu.Unlock()
	if prefix == "" {
		return fmt.Sprintf(format, v...)
	}
	return prefix + " " + fmt.Sprintf(format, v...)
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.zl.Info(l.message(format, v...))
}

func (l *BaseLogger) Warn(format string, v ...interface{}) {
	l.zl.Warn(l.message(format, v...))
}

func (l *BaseLogger) Error(format string, v ...interface{}) {
	l.zl.Error(l.message(format, v...))
}

func (l *BaseLogger) WithPrefix(extraPrefix string) *BaseLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := extraPrefix
	if l.prefix != "" {
		prefix = l.prefix + " " + extraPrefix
	}
	return &BaseLogger{
		writer: l.writer,
		prefix: prefix,
		zl:     l.zl,
	}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

func (l *BaseLogger) Sync() error {
	return l.zl.Sync()
}
