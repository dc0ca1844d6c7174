package cas_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	store, err := cas.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	return store
}

func stageArtifact(t *testing.T, store *cas.Store, key domain.CacheKey, name, content string) string {
	t.Helper()
	staged, err := store.Stage(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staged, name), []byte(content), 0o755))
	return staged
}

func testMeta(unit string) domain.BuildMetadata {
	return domain.BuildMetadata{
		UnitName:      unit,
		Target:        "linux_x64",
		Profile:       "debug",
		KonancVersion: "2.1.0",
		BuiltAt:       time.Now().UTC(),
	}
}

func TestStore_LookupMissing(t *testing.T) {
	store := newStore(t)
	entry, err := store.Lookup("0000")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_CommitAndLookup(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("abcd1234")
	staged := stageArtifact(t, store, key, "app.kexe", "binary")

	entry, err := store.Commit(key, staged, testMeta("app"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, key, entry.Key)
	assert.Equal(t, "app", entry.Metadata.UnitName)

	data, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	// Staging directory is gone after commit.
	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err))

	got, err := store.Lookup(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Path, got.Path)
	assert.Equal(t, "linux_x64", got.Metadata.Target)
}

func TestStore_CommitExistingKeyKeepsWinner(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("samekey")

	first := stageArtifact(t, store, key, "app.kexe", "first")
	entry, err := store.Commit(key, first, testMeta("app"))
	require.NoError(t, err)

	// Second commit under the same key must not clobber the first.
	second, err := store.Stage(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(second, "app.kexe"), []byte("second"), 0o755))
	adopted, err := store.Commit(key, second, testMeta("app"))
	require.NoError(t, err)

	data, err := os.ReadFile(adopted.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, entry.Path, adopted.Path)
}

func TestStore_StageSameKeyIsolated(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("sharedkey")

	first, err := store.Stage(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "app.kexe"), []byte("first"), 0o755))

	// A second staging for the same key must not disturb the first.
	second, err := store.Stage(key)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(filepath.Join(first, "app.kexe"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	entry, err := store.Commit(key, first, testMeta("app"))
	require.NoError(t, err)
	data, err = os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestStore_ConcurrentCommits(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("racekey")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			staged, err := store.Stage(key)
			if err != nil {
				errs[i] = err
				return
			}
			if err := os.WriteFile(filepath.Join(staged, "app.kexe"), []byte("artifact"), 0o755); err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = store.Commit(key, staged, testMeta("app"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}

	entry, err := store.Lookup(key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	data, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "artifact", string(data))
}

func TestStore_Materialize(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("matkey")
	staged := stageArtifact(t, store, key, "lib.klib", "klib-bytes")
	entry, err := store.Commit(key, staged, testMeta("lib"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "build", "linux_x64", "debug", "lib.klib")
	require.NoError(t, store.Materialize(entry, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "klib-bytes", string(data))

	// Materializing over an existing file replaces it.
	require.NoError(t, store.Materialize(entry, dest))
}

func TestStore_Clean(t *testing.T) {
	store := newStore(t)
	key := domain.CacheKey("cleankey")
	staged := stageArtifact(t, store, key, "app.kexe", "x")
	_, err := store.Commit(key, staged, testMeta("app"))
	require.NoError(t, err)

	require.NoError(t, store.Clean())

	entry, err := store.Lookup(key)
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Clean on an empty store is a no-op.
	require.NoError(t, store.Clean())
}
