package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/page-watcher/internal/hash/sha256"
	"github.com/JakeFAU/page-watcher/internal/storage"
	"github.com/JakeFAU/page-watcher/internal/storage/local"
	"github.com/JakeFAU/page-watcher/internal/storage/memory"
	"github.com/JakeFAU/page-watcher/internal/watch"
)

func ptr[T any](v T) *T { return &v }

func TestLoadEmptyWhenNothingStored(t *testing.T) {
	t.Parallel()

	s := New(memory.New(), nil)
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.HasBaseline())
	assert.Nil(t, st.LastMatch)
	assert.Nil(t, st.LastChecked)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "page_state.json")
	backend, err := local.New(local.Config{Path: path})
	require.NoError(t, err)
	s := New(backend, nil)

	checked := time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC)
	want := watch.State{
		LastHash:    ptr(sha256.Fingerprint("Price: $19.99")),
		LastMatch:   ptr("Selector '.price' matched: 'Price: $19.99...'"),
		LastChecked: &checked,
	}
	require.NoError(t, s.Save(context.Background(), want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, *want.LastHash, *got.LastHash)
	assert.Equal(t, *want.LastMatch, *got.LastMatch)
	assert.True(t, want.LastChecked.Equal(*got.LastChecked))
}

func TestEncodeFormat(t *testing.T) {
	t.Parallel()

	data, err := Encode(watch.State{})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"last_hash\": null,\n  \"last_match\": null,\n  \"last_checked\": null\n}\n", string(data))

	est := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600))
	data, err = Encode(watch.State{LastChecked: &est})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_checked": "2024-01-02T08:04:05Z"`)
}

func TestLoadCorruptIsWarning(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"garbage":      "{not json",
		"wrong type":   `{"last_hash": 42}`,
		"invalid hash": `{"last_hash": "not-a-digest"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.WarnLevel)
			backend := memory.New()
			require.NoError(t, backend.Write(context.Background(), []byte(raw)))

			st, err := New(backend, zap.New(core)).Load(context.Background())
			require.NoError(t, err)
			assert.False(t, st.HasBaseline())
			assert.Equal(t, 1, logs.FilterMessage("state corrupt, starting fresh").Len())
		})
	}
}

func TestLoadCorruptFileThenSaveRecovers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page_state.json")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x01garbage"), 0o600))
	backend, err := local.New(local.Config{Path: path})
	require.NoError(t, err)
	s := New(backend, nil)

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.HasBaseline())

	require.NoError(t, s.Save(context.Background(), watch.State{LastHash: ptr(sha256.Fingerprint("x"))}))
	st, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasBaseline())
}

func TestLoadUnreadableIsWarning(t *testing.T) {
	t.Parallel()

	backend := &storage.MockBackend{}
	backend.On("Read", mock.Anything).Return(nil, errors.New("access denied"))

	core, logs := observer.New(zapcore.WarnLevel)
	st, err := New(backend, zap.New(core)).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.HasBaseline())
	assert.Equal(t, 1, logs.FilterMessage("state unreadable, starting fresh").Len())
	backend.AssertExpectations(t)
}

func TestLoadCanceledContextIsError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend := &storage.MockBackend{}
	backend.On("Read", mock.Anything).Return(nil, context.Canceled)

	_, err := New(backend, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveBackendFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	backend := &storage.MockBackend{}
	backend.On("Write", mock.Anything, mock.Anything).Return(boom)

	err := New(backend, nil).Save(context.Background(), watch.State{})
	assert.ErrorIs(t, err, boom)
	backend.AssertExpectations(t)
}

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), "memory", nil)
	require.NoError(t, err)
	assert.Equal(t, "memory://state", s.Location())
	assert.NoError(t, s.Close())

	path := filepath.Join(t.TempDir(), "page_state.json")
	s, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, s.Location())

	_, err = Open(context.Background(), "  ", nil)
	assert.Error(t, err)
	_, err = Open(context.Background(), "gs://bucket-only", nil)
	assert.Error(t, err)
	_, err = Open(context.Background(), "s3:///key", nil)
	assert.Error(t, err)
}

func TestDecodeReportsCorruption(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("[]"))
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = Decode([]byte(`{"last_hash": "ABC"}`))
	assert.ErrorIs(t, err, ErrCorrupt)

	st, err := Decode([]byte(`{"last_hash": null, "last_match": null, "last_checked": null}`))
	require.NoError(t, err)
	assert.False(t, st.HasBaseline())
}

func TestSplitObjectURI(t *testing.T) {
	t.Parallel()

	bucket, object, err := splitObjectURI("gs://watch-state/prod/page_state.json")
	require.NoError(t, err)
	assert.Equal(t, "watch-state", bucket)
	assert.Equal(t, "prod/page_state.json", object)
}
