package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "crashtruth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		fileStore.Close()
		sqliteStore.Close()
	})
	return map[string]Store{
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.Exists(ctx, "crash_01", KindTracks)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Get(ctx, "crash_01", KindTracks)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, s.Put(ctx, "crash_01", KindTracks, []byte(`{"tracks":[]}`)))

			ok, err = s.Exists(ctx, "crash_01", KindTracks)
			require.NoError(t, err)
			assert.True(t, ok)

			body, err := s.Get(ctx, "crash_01", KindTracks)
			require.NoError(t, err)
			assert.Equal(t, `{"tracks":[]}`, string(body))

			// Other kinds and videos are independent
			ok, err = s.Exists(ctx, "crash_01", KindFindings)
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = s.Exists(ctx, "crash_02", KindTracks)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStorePutOnce(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "v", KindFindings, []byte("first")))
			err := s.Put(ctx, "v", KindFindings, []byte("second"))
			assert.True(t, errors.Is(err, ErrExists), "got %v", err)

			body, err := s.Get(ctx, "v", KindFindings)
			require.NoError(t, err)
			assert.Equal(t, "first", string(body))
		})
	}
}

func TestStoreConcurrentPut(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 8
			var wg sync.WaitGroup
			results := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- s.Put(ctx, "race", KindTracks, []byte("body"))
				}()
			}
			wg.Wait()
			close(results)

			written := 0
			for err := range results {
				if err == nil {
					written++
					continue
				}
				assert.True(t, errors.Is(err, ErrExists), "unexpected error %v", err)
			}
			assert.Equal(t, 1, written)
		})
	}
}

func TestStoreInvalidKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, ref := range []string{"", "  ", ".", "..", "a/b", `a\b`, "a\x00b"} {
				assert.Error(t, s.Put(ctx, ref, KindTracks, nil), "ref %q", ref)
			}
			_, err := s.Exists(ctx, "video", Kind("frames"))
			assert.Error(t, err)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "clip", KindFindings, []byte("{}")))

	data, err := os.ReadFile(filepath.Join(root, "clip", "faults.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "clip"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "clip", KindDetections, []byte("{}\n")))
	require.NoError(t, s.Close())

	// Migrations are already applied: second open must be a no-op
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	body, err := s.Get(ctx, "clip", KindDetections)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(body))
}

func TestSQLiteStoreRunJournal(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	var journal RunJournal = s
	require.NoError(t, journal.RecordRun(ctx, RunRecord{
		RunID: "r1", VideoRef: "clip", Stage: "tracks", Outcome: "processed", Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, journal.RecordRun(ctx, RunRecord{
		RunID: "r2", VideoRef: "clip", Stage: "findings", Outcome: "already_done",
	}))
	require.NoError(t, journal.RecordRun(ctx, RunRecord{
		RunID: "r3", VideoRef: "other", Stage: "tracks", Outcome: "failed", Detail: "boom",
	}))

	runs, err := journal.ListRuns(ctx, "clip")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].RunID)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.Equal(t, "already_done", runs[1].Outcome)

	runs, err = journal.ListRuns(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
