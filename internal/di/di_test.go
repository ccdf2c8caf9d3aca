package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/flowbank/internal/config"
	"github.com/sadopc/flowbank/internal/logger"
)

func TestInitApp(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "database:\n  path: " + filepath.Join(dir, "data", "flowbank.db") + "\n" +
		"logger:\n  level: debug\n  dir: " + filepath.Join(dir, "logs") + "\n" +
		"generator:\n  slowCadence: 300ms\n  fastCadence: 50ms\n  fastThreshold: 5\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	app, cleanup, err := InitApp(&config.CliFlags{ConfigPath: cfgPath})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, 300*time.Millisecond, app.Config.Generator.SlowCadence)
	acc, err := app.Engine.Ledger.Accounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, acc.Points)

	gen, err := app.Engine.NewGenerator(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, gen.Cadence())

	_, err = os.Stat(filepath.Join(dir, "logs", logger.FileName))
	assert.NoError(t, err, "log file is created")
}

func TestInitAppInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  level: loud\n"), 0o644))

	_, _, err := InitApp(&config.CliFlags{ConfigPath: cfgPath})
	assert.Error(t, err)
}
