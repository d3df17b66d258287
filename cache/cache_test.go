package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string) Item {
	return Item{
		ID:                id,
		AuthorDisplayName: "Author " + id,
		AuthorHandle:      "author_" + id,
		CreatedAt:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Body:              "body of " + id,
	}
}

func stores(t *testing.T) map[string]func(path string) Store {
	return map[string]func(path string) Store{
		"json": func(path string) Store { return NewJSONStore(path) },
		"bolt": func(path string) Store {
			s, err := OpenBoltStore(path)
			require.NoError(t, err)
			return s
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "seen")

			c, err := Open(ctx, newStore(path), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, 0, c.Len())

			const n = 7
			for i := 0; i < n; i++ {
				require.NoError(t, c.Add(ctx, item(fmt.Sprint(i))))
			}
			require.NoError(t, c.Close())

			reopened, err := Open(ctx, newStore(path), zerolog.Nop())
			require.NoError(t, err)
			defer reopened.Close()

			require.Equal(t, n, reopened.Len())
			for i, it := range reopened.Items() {
				assert.Equal(t, item(fmt.Sprint(i)), it)
			}
			assert.False(t, reopened.Has("missing"))
		})
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, NewJSONStore(filepath.Join(t.TempDir(), "seen.json")), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, item("a")))
	dup := item("a")
	dup.Body = "changed"
	assert.ErrorIs(t, c.Add(ctx, dup), ErrExists)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "body of a", got.Body)
	assert.Equal(t, 1, c.Len())
}

func TestOpenMissingFile(t *testing.T) {
	c, err := Open(context.Background(), NewJSONStore(filepath.Join(t.TempDir(), "none", "seen.json")), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestOpenMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewJSONStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)

	c, err := Open(context.Background(), NewJSONStore(path), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	// The next insertion replaces the broken file.
	require.NoError(t, c.Add(context.Background(), item("x")))
	items, err := NewJSONStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Item{item("x")}, items)
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	c, err := Open(context.Background(), NewJSONStore(path), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestOpenDropsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, NewJSONStore(path).Save(context.Background(), []Item{item("a"), item("b"), item("a")}))

	c, err := Open(context.Background(), NewJSONStore(path), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestJSONStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStore(filepath.Join(dir, "seen.json"))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(context.Background(), []Item{item(fmt.Sprint(i))}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seen.json", entries[0].Name())
	assert.Equal(t, filepath.Join(dir, entries[0].Name()), s.Path())
}

func TestJSONStoreCreatesParentDir(t *testing.T) {
	s := NewJSONStore(filepath.Join(t.TempDir(), "state", "seen.json"))
	require.NoError(t, s.Save(context.Background(), nil))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

type failingStore struct {
	saves int
}

func (s *failingStore) Load(context.Context) ([]Item, error) { return nil, nil }

func (s *failingStore) Save(context.Context, []Item) error {
	s.saves++
	return errors.New("disk full")
}

func TestAddKeepsItemWhenSaveFails(t *testing.T) {
	store := &failingStore{}
	c, err := Open(context.Background(), store, zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, c.Add(context.Background(), item("a")))
	assert.True(t, c.Has("a"))
	assert.Equal(t, 1, store.saves)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]Item, error) { return nil, os.ErrPermission }
func (brokenStore) Save(context.Context, []Item) error   { return nil }

func TestOpenFailsOnUnreadableStore(t *testing.T) {
	_, err := Open(context.Background(), brokenStore{}, zerolog.Nop())
	assert.ErrorIs(t, err, os.ErrPermission)
}
