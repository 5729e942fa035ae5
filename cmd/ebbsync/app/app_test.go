package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New("test", "none", "now")
	require.NoError(t, err)
	a.config.StorePath = filepath.Join(t.TempDir(), "test.db")
	return a
}

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{name: "default", config: Config{}, want: "info"},
		{name: "verbose", config: Config{Verbose: true}, want: "debug"},
		{name: "quiet", config: Config{Quiet: true}, want: "warn"},
		{name: "quiet wins over verbose", config: Config{Verbose: true, Quiet: true}, want: "warn"},
		{name: "explicit level wins", config: Config{Verbose: true, LogLevel: "error"}, want: "error"},
		{name: "invalid level falls back", config: Config{LogLevel: "shout"}, want: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineLogLevel(&tt.config))
		})
	}
}

func TestUpdateFromFlags(t *testing.T) {
	c := Config{StorePath: "default.db", LogLevel: "info"}

	c.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, c.Verbose)
	assert.Equal(t, "default.db", c.StorePath, "empty flag must not clobber config")

	c.UpdateFromFlags(false, false, false, "other.db", "debug")
	assert.Equal(t, "other.db", c.StorePath)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestInitCommand(t *testing.T) {
	a := newTestApp(t)

	out := &bytes.Buffer{}
	cmd := a.NewInitCommand()
	cmd.SetOut(out)
	cmd.SetContext(context.Background())

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), a.config.StorePath)
}

func TestPendingCommandEmptyStore(t *testing.T) {
	a := newTestApp(t)

	out := &bytes.Buffer{}
	cmd := a.NewPendingCommand()
	cmd.SetOut(out)
	cmd.SetContext(context.Background())

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "no pending mutations")
}
