package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeEnumString(t *testing.T) {
	assert.Equal(t, "app", TypeApp.String())
	assert.Equal(t, "ledger", TypeLedger.String())
	assert.Equal(t, "unknown", TypeEnum(99).String())
}

func TestNew_CreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(Options{Level: "info", Dir: dir})
	require.NoError(t, err)

	l.Infof(TypeApp, "hello %s", "world")
	l.Debugf(TypeApp, "filtered out")
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.NotContains(t, string(data), "filtered out")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "verbose", Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestNewWriter_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)
	l.Warnf(TypeAnket, "missing %d days", 3)

	line := buf.String()
	assert.True(t, strings.Contains(line, `"type":"anket"`), line)
	assert.Contains(t, line, "missing 3 days")
	assert.Contains(t, line, `"level":"warn"`)
}

func TestNewNop_DoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Errorf(TypeStore, "ignored")
	l.Close()
}
