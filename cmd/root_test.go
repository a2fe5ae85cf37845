package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
)

func execute(t *testing.T, args ...string) (string, *conf.Settings, error) {
	t.Helper()
	settings := &conf.Settings{}
	root := RootCommand(settings, &buildinfo.Context{Version: "1.2.3", BuildDate: "2026-10-01"})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), settings, err
}

func TestVersionCommand(t *testing.T) {
	out, settings, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trailcam 1.2.3 (built 2026-10-01")
	assert.Empty(t, settings.Main.Name, "version must not load configuration")
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
main:
  name: ridge-cam
mqtt:
  password: hunter2
output:
  sqlite:
    path: /var/lib/trailcam/trailcam.db
`), 0o600))

	out, settings, err := execute(t, "config", "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "ridge-cam", settings.Main.Name)
	assert.Equal(t, "hunter2", settings.MQTT.Password, "settings keep the real value")
	assert.Contains(t, out, "name: ridge-cam")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestClassifyCommand_RequiresArgs(t *testing.T) {
	_, _, err := execute(t, "classify")
	require.Error(t, err)
}

func TestDeleteCommand_RejectsBadID(t *testing.T) {
	_, _, err := execute(t, "delete", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid image id")
}
