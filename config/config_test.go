package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlephTX/aleph-tx/threecol/shm"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, shm.DefaultNamespace, c.Namespace)
	assert.Equal(t, shm.DefaultPollInterval, c.PollInterval.Duration)
	assert.Zero(t, c.Supervisor.Limit)
	assert.Empty(t, c.Supervisor.ReportAddr)
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "threecol.toml", `
namespace = "lab"
poll_interval = "5ms"

[supervisor]
limit = 1000
delay = "250ms"
report_addr = "127.0.0.1:8090"

[generator]
verbose = true
seed = 17
`)
		c, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "lab", c.Namespace)
		assert.Equal(t, 5*time.Millisecond, c.PollInterval.Duration)
		assert.EqualValues(t, 1000, c.Supervisor.Limit)
		assert.Equal(t, 250*time.Millisecond, c.Supervisor.Delay.Duration)
		assert.Equal(t, "127.0.0.1:8090", c.Supervisor.ReportAddr)
		assert.True(t, c.Generator.Verbose)
		assert.EqualValues(t, 17, c.Generator.Seed)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "threecol.toml", "[generator]\nverbose = true\n")
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, shm.DefaultNamespace, c.Namespace)
		assert.Equal(t, shm.DefaultPollInterval, c.PollInterval.Duration)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "threecol.toml", `poll_interval = "soon"`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid namespace", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "threecol.toml", `namespace = "a/b"`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFromEnv(t *testing.T) {
	t.Run("no file no env", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvNamespace, "")
		t.Setenv(EnvReportAddr, "")

		c, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})

	t.Run("env overrides file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		path := writeFile(t, dir, "threecol.toml", "namespace = \"from-file\"\n[supervisor]\nlimit = 3\n")
		t.Setenv(EnvConfig, path)
		t.Setenv(EnvNamespace, "from-env")
		t.Setenv(EnvReportAddr, ":9000")

		c, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "from-env", c.Namespace)
		assert.Equal(t, ":9000", c.Supervisor.ReportAddr)
		assert.EqualValues(t, 3, c.Supervisor.Limit)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvReportAddr, "")
		// Registered so the value godotenv sets is restored afterwards.
		t.Setenv(EnvNamespace, "")
		os.Unsetenv(EnvNamespace)
		writeFile(t, dir, ".env", EnvNamespace+"=dotenv-ns\n")

		c, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "dotenv-ns", c.Namespace)
	})
}
