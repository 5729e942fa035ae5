// Package batchfile loads remote mutation batches from YAML files. It
// exists for the CLI and for fixtures; the engine itself only ever sees
// the decoded batch.
package batchfile

import (
	"encoding/json"
	"os"
	"time"

	"github.com/agentstation/utc"
	"github.com/goccy/go-yaml"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// item is the on-disk shape of one remote mutation.
type item struct {
	Schema        string    `yaml:"schema"`
	ID            string    `yaml:"id"`
	Version       int64     `yaml:"version"`
	LastChangedAt time.Time `yaml:"last_changed_at"`
	Deleted       bool      `yaml:"deleted"`
	Body          any       `yaml:"body"`
}

// file is the on-disk shape of a batch.
type file struct {
	Models []item `yaml:"models"`
}

// Load reads a batch of remote mutations from a YAML file.
func Load(path string) ([]model.RemoteModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data)
}

// Parse decodes a batch of remote mutations from YAML bytes.
func Parse(data []byte) ([]model.RemoteModel, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewSerializationError("", "", "parsing batch file", err)
	}

	batch := make([]model.RemoteModel, 0, len(f.Models))
	for _, it := range f.Models {
		if it.Schema == "" {
			return nil, errors.NewValidationError("schema", it.Schema, "must not be empty")
		}
		if it.ID == "" {
			return nil, errors.NewValidationError("id", it.ID, "must not be empty")
		}

		var body json.RawMessage
		if it.Body != nil {
			encoded, err := json.Marshal(it.Body)
			if err != nil {
				return nil, errors.NewSerializationError(it.Schema, it.ID, "encoding body", err)
			}
			body = encoded
		}

		batch = append(batch, model.RemoteModel{
			Envelope: model.Envelope{Schema: it.Schema, ID: it.ID, Body: body},
			Metadata: model.Metadata{
				Version:       it.Version,
				LastChangedAt: utc.New(it.LastChangedAt),
				Deleted:       it.Deleted,
			},
		})
	}

	return batch, nil
}
