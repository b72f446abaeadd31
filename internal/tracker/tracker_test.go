package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamewatch/internal/catalog"
	"gamewatch/internal/storage"
	logx "gamewatch/pkg/logx"
)

type fakeSource struct {
	mu   sync.Mutex
	snap catalog.Snapshot
	err  error
	hits int
}

func (f *fakeSource) set(s catalog.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = s, err
}

func (f *fakeSource) Fetch(context.Context) (catalog.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	return f.snap, f.err
}

type failingStore struct {
	storage.Store
	loadErr error
	saveErr error
}

func (s failingStore) Load(context.Context) ([]string, error) { return nil, s.loadErr }
func (s failingStore) Save(context.Context, []string) error { return s.saveErr }
func (s failingStore) Exists(context.Context) (bool, error) { return false, nil }
func (s failingStore) Clear(context.Context) error { return nil }

func newFileStore(t *testing.T) (storage.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_games.json")
	st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func ids(entries []NewEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func snapshot(keys ...string) catalog.Snapshot {
	s := catalog.Snapshot{}
	for _, k := range keys {
		s[k] = catalog.Entry{OfficialName: "name-" + k}
	}
	return s
}

func TestCheckFirstEntryThenIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _ := newFileStore(t)
	src := &fakeSource{snap: catalog.Snapshot{"g1": {OfficialName: "Alpha"}}}
	tr := New(ctx, src, st, logx.Nop())

	res, err := tr.Check(ctx)
	require.NoError(t, err)
	require.Len(t, res.New, 1)
	assert.Equal(t, "g1", res.New[0].ID)
	assert.Equal(t, "Alpha", res.New[0].Entry.OfficialName)
	assert.Equal(t, []string{"g1"}, tr.Known())
	assert.True(t, tr.Persisted(ctx))

	res, err = tr.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Equal(t, 1, res.Known)
}

func TestCheckReplacesInsteadOfUnion(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{snap: snapshot("a", "b", "c")}
	tr := New(ctx, src, nil, logx.Nop())

	_, err := tr.Check(ctx)
	require.NoError(t, err)

	src.set(snapshot("b", "d"), nil)
	res, err := tr.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(res.New))
	assert.Equal(t, []string{"b", "d"}, tr.Known())

	// "a" left the set, so it is new again when it comes back.
	src.set(snapshot("a", "b", "d"), nil)
	res, err = tr.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(res.New))
}

func TestCheckEmptySnapshotKeepsKnownSet(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{snap: snapshot("a", "b")}
	tr := New(ctx, src, nil, logx.Nop())
	_, err := tr.Check(ctx)
	require.NoError(t, err)

	src.set(catalog.Snapshot{}, nil)
	res, err := tr.Check(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Empty(t, res.New)
	assert.Equal(t, []string{"a", "b"}, tr.Known())
}

func TestCheckFetchErrorKeepsKnownSet(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{snap: snapshot("a")}
	tr := New(ctx, src, nil, logx.Nop())
	_, err := tr.Check(ctx)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	src.set(nil, boom)
	res, err := tr.Check(ctx)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, res.New)
	assert.Equal(t, []string{"a"}, tr.Known())
}

func TestResetRescansEverything(t *testing.T) {
	ctx := context.Background()
	st, path := newFileStore(t)
	src := &fakeSource{snap: snapshot("x", "y")}
	tr := New(ctx, src, st, logx.Nop())

	_, err := tr.Check(ctx)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, 0, tr.Count())
	assert.False(t, tr.Persisted(ctx))

	res, err := tr.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(res.New))
}

func TestNewLoadsPersistedSet(t *testing.T) {
	ctx := context.Background()
	st, _ := newFileStore(t)
	require.NoError(t, st.Save(ctx, []string{"g1", "g2"}))

	src := &fakeSource{snap: snapshot("g1", "g2", "g3")}
	tr := New(ctx, src, st, logx.Nop())
	assert.Equal(t, 2, tr.Count())

	res, err := tr.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g3"}, ids(res.New))
}

func TestNewCorruptStateStartsEmpty(t *testing.T) {
	ctx := context.Background()
	st, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("[\"g1\","), 0o644))

	tr := New(ctx, &fakeSource{}, st, logx.Nop())
	assert.Equal(t, 0, tr.Count())
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	ctx := context.Background()
	saveErr := errors.New("disk full")
	st := failingStore{loadErr: errors.New("unreadable"), saveErr: saveErr}
	src := &fakeSource{snap: snapshot("a")}
	tr := New(ctx, src, st, logx.Nop())

	res, err := tr.Check(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, res.SaveErr, saveErr)
	assert.Equal(t, []string{"a"}, ids(res.New))
	assert.Equal(t, []string{"a"}, tr.Known())
}

func TestConcurrentChecksReportEachEntryOnce(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{snap: snapshot("a", "b", "c", "d")}
	tr := New(ctx, src, nil, logx.Nop())

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total []string
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tr.Check(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			total = append(total, ids(res.New)...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, total)
}

func TestAdvanceEmptyIsNoop(t *testing.T) {
	tr := New(context.Background(), &fakeSource{}, nil, logx.Nop())
	tr.Advance(snapshot("a"))
	assert.Nil(t, tr.Advance(catalog.Snapshot{}))
	assert.Equal(t, []string{"a"}, tr.Known())
}

func TestPreviewDoesNotAdvance(t *testing.T) {
	st, _ := newFileStore(t)
	src := &fakeSource{}
	tr := New(context.Background(), src, st, logx.Nop())

	src.set(snapshot("a"), nil)
	_, err := tr.Check(context.Background())
	require.NoError(t, err)

	src.set(snapshot("a", "b"), nil)
	res, err := tr.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(res.New))
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, []string{"a"}, tr.Known())

	persisted, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, persisted)
}
