package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/store"
	"github.com/ebbworks/ebbsync/pkg/store/memory"
)

func key(id string) model.Key {
	return model.Key{Schema: "note", ID: id}
}

func TestMetadataLookup(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.SaveMetadata(ctx, model.Record{
		Key:      key("a"),
		Metadata: model.Metadata{Version: 3, LastChangedAt: utc.Now()},
	}, nil)
	require.NoError(t, err)

	got, err := s.Metadata(ctx, []model.Key{key("a"), key("missing")})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), got[key("a")].Version)
	_, present := got[key("missing")]
	assert.False(t, present, "missing keys must be absent, not zero-valued")
}

func TestSaveAndDeleteModel(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	env := model.Envelope{Schema: "note", ID: "a", Body: json.RawMessage(`{"title":"x"}`)}
	saved, err := s.SaveModel(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, env, saved)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.DeleteModel(ctx, key("a"), nil))
	assert.Equal(t, 0, s.Len())

	err = s.DeleteModel(ctx, key("a"), nil)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, s.Ignorable(err), "missing delete must classify as ignorable")
}

func TestSaveMetadataPrecondition(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.SaveMetadata(ctx, model.Record{Key: key("a"), Metadata: model.Metadata{Version: 1}}, nil)
	require.NoError(t, err)

	t.Run("matching precondition", func(t *testing.T) {
		_, err := s.SaveMetadata(ctx, model.Record{Key: key("a"), Metadata: model.Metadata{Version: 2}},
			&model.Metadata{Version: 1})
		assert.NoError(t, err)
	})

	t.Run("stale precondition", func(t *testing.T) {
		_, err := s.SaveMetadata(ctx, model.Record{Key: key("a"), Metadata: model.Metadata{Version: 5}},
			&model.Metadata{Version: 1})
		assert.ErrorIs(t, err, errors.ErrPreconditionFailed)
	})
}

func TestPendingMutations(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.SavePending(ctx, model.PendingMutation{
		Key:      key("a"),
		Kind:     model.MutationUpdate,
		QueuedAt: utc.Now(),
	}))

	got, err := s.Pending(ctx, []model.Key{key("a"), key("b")})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, model.MutationUpdate, got[key("a")].Kind)

	require.NoError(t, s.DeletePending(ctx, key("a")))
	got, err = s.Pending(ctx, []model.Key{key("a")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransactionPassesAdapter(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	err := s.Transaction(ctx, func(tx store.Adapter) error {
		_, err := tx.SaveModel(ctx, model.Envelope{Schema: "note", ID: "a"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.New()
	_, err := s.Metadata(ctx, []model.Key{key("a")})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.SaveModel(ctx, model.Envelope{Schema: "note", ID: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}
