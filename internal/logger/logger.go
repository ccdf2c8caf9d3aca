package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// TypeEnum tags a log line with the component that wrote it.
type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeStore
	TypeTimer
	TypeReward
	TypeLedger
	TypeAnket
	TypeExport
)

var typeNames = map[TypeEnum]string{
	TypeApp:    "app",
	TypeStore:  "store",
	TypeTimer:  "timer",
	TypeReward: "reward",
	TypeLedger: "ledger",
	TypeAnket:  "anket",
	TypeExport: "export",
}

func (t TypeEnum) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

type Logger interface {
	Debugf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Errorf(t TypeEnum, format string, args ...interface{})
	Close()
}

// Options configures where and how verbosely log lines are written.
type Options struct {
	Level string
	Dir   string
	Mode  os.FileMode
}

const FileName = "flowbank.log"

type zeroLogger struct {
	log  zerolog.Logger
	file *os.File
}

// New opens <Dir>/flowbank.log for appending. The terminal belongs to the
// TUI, so nothing is ever written to stdout.
func New(opts Options) (Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	mode := opts.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(opts.Dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &zeroLogger{
		log:  newZerolog(f, level),
		file: f,
	}, nil
}

// NewWriter is New without the file handling, mainly for tests.
func NewWriter(w io.Writer, level zerolog.Level) Logger {
	return &zeroLogger{log: newZerolog(w, level)}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return &zeroLogger{log: zerolog.Nop()}
}

func newZerolog(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func (l *zeroLogger) Debugf(t TypeEnum, format string, args ...interface{}) {
	l.log.Debug().Str("type", t.String()).Msgf(format, args...)
}

func (l *zeroLogger) Infof(t TypeEnum, format string, args ...interface{}) {
	l.log.Info().Str("type", t.String()).Msgf(format, args...)
}

func (l *zeroLogger) Warnf(t TypeEnum, format string, args ...interface{}) {
	l.log.Warn().Str("type", t.String()).Msgf(format, args...)
}

func (l *zeroLogger) Errorf(t TypeEnum, format string, args ...interface{}) {
	l.log.Error().Str("type", t.String()).Msgf(format, args...)
}

func (l *zeroLogger) Close() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
