package batchfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebbworks/ebbsync/internal/batchfile"
	"github.com/ebbworks/ebbsync/pkg/errors"
)

const sampleBatch = `
models:
  - schema: note
    id: n-1
    version: 3
    last_changed_at: 2026-08-01T10:00:00Z
    body:
      title: hello
      tags: [a, b]
  - schema: note
    id: n-2
    version: 7
    deleted: true
`

func TestParse(t *testing.T) {
	batch, err := batchfile.Parse([]byte(sampleBatch))
	require.NoError(t, err)
	require.Len(t, batch, 2)

	first := batch[0]
	assert.Equal(t, "note", first.Envelope.Schema)
	assert.Equal(t, "n-1", first.Envelope.ID)
	assert.Equal(t, int64(3), first.Metadata.Version)
	assert.JSONEq(t, `{"title":"hello","tags":["a","b"]}`, string(first.Envelope.Body))

	second := batch[1]
	assert.True(t, second.Metadata.Deleted)
	assert.Empty(t, second.Envelope.Body, "tombstones carry no body")
}

func TestParseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing schema", yaml: "models:\n  - id: n-1\n    version: 1\n"},
		{name: "missing id", yaml: "models:\n  - schema: note\n    version: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := batchfile.Parse([]byte(tt.yaml))
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := batchfile.Parse([]byte("models: [unclosed"))
	assert.True(t, errors.IsSerialization(err))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBatch), 0o644))

	batch, err := batchfile.Load(path)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := batchfile.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
