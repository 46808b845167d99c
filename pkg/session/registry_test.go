package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairgate/pairgate/pkg/pairing"
)

func setupTestRegistry(t *testing.T) (*Registry, string) {
	root := t.TempDir()
	r, err := NewRegistry(RegistryOptions{
		Root:     root,
		Provider: pairing.NewLocalProvider(),
	})
	require.NoError(t, err)
	return r, root
}

func TestNewRegistry_RequiresProvider(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{Root: t.TempDir()})
	assert.Error(t, err)
}

func TestNewRegistry_RequiresRoot(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{Provider: pairing.NewLocalProvider()})
	assert.Error(t, err)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"digits only", "15551234567", "15551234567"},
		{"formatted", "+1 (555) 123-4567", "15551234567"},
		{"letters", "call-me", ""},
		{"empty", "", ""},
		{"mixed", "abc123def456", "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestRegistry_CreateAndLookup(t *testing.T) {
	r, _ := setupTestRegistry(t)

	sess, result, err := r.Create(context.Background(), "+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^15551234567_\d+$`), sess.ID)
	assert.Equal(t, "15551234567", sess.Phone)
	assert.NotEmpty(t, result.Code)
	assert.True(t, sess.Alive)
	assert.DirExists(t, sess.Dir)

	got, ok := r.Lookup(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "15551234567", got.Phone)
}

func TestRegistry_CreateInvalidPhone(t *testing.T) {
	r, root := setupTestRegistry(t)

	for _, phone := range []string{"", "abc", "---", "   "} {
		_, _, err := r.Create(context.Background(), phone)
		assert.ErrorIs(t, err, ErrInvalidPhone)
	}

	// No partial state: registry empty, session root untouched.
	assert.Equal(t, 0, r.Len())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistry_CreateProviderFailureRollsBack(t *testing.T) {
	root := t.TempDir()
	r, err := NewRegistry(RegistryOptions{
		Root: root,
		Provider: pairing.ProviderFunc(func(ctx context.Context, phone, dir string) (pairing.Result, error) {
			return pairing.Result{}, pairing.ErrCapabilityUnavailable
		}),
	})
	require.NoError(t, err)

	_, _, err = r.Create(context.Background(), "15551234567")
	require.Error(t, err)
	assert.ErrorIs(t, err, pairing.ErrCapabilityUnavailable)

	// Full rollback: no map entry, no leftover directory.
	assert.Equal(t, 0, r.Len())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistry_DeleteIdempotent(t *testing.T) {
	r, _ := setupTestRegistry(t)

	sess, _, err := r.Create(context.Background(), "15551234567")
	require.NoError(t, err)

	assert.True(t, r.Delete(sess.ID))
	assert.NoDirExists(t, sess.Dir)

	_, ok := r.Lookup(sess.ID)
	assert.False(t, ok)

	// Second delete is a no-op, not an error.
	assert.False(t, r.Delete(sess.ID))
	assert.False(t, r.Delete("unknown_123"))
}

func TestRegistry_DeleteSurvivesMissingDirectory(t *testing.T) {
	r, _ := setupTestRegistry(t)

	sess, _, err := r.Create(context.Background(), "15551234567")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(sess.Dir))

	// Map entry removal must not depend on directory state.
	assert.True(t, r.Delete(sess.ID))
	_, ok := r.Lookup(sess.ID)
	assert.False(t, ok)
}

func TestRegistry_ExpireOlderThan_Boundary(t *testing.T) {
	const ttl = 10 * time.Minute

	base := time.Now()
	current := base
	r, err := NewRegistry(RegistryOptions{
		Root:     t.TempDir(),
		Provider: pairing.NewLocalProvider(),
		Now:      func() time.Time { return current },
	})
	require.NoError(t, err)

	sess, _, err := r.Create(context.Background(), "15551234567")
	require.NoError(t, err)

	// Just under the TTL: nothing expires.
	current = base.Add(ttl - time.Second)
	assert.Equal(t, 0, r.ExpireOlderThan(ttl))
	_, ok := r.Lookup(sess.ID)
	assert.True(t, ok)

	// Just over: reclaimed.
	current = base.Add(ttl + time.Second)
	assert.Equal(t, 1, r.ExpireOlderThan(ttl))
	_, ok = r.Lookup(sess.ID)
	assert.False(t, ok)
	assert.NoDirExists(t, sess.Dir)
}

func TestRegistry_ExpireSkipsFreshSessions(t *testing.T) {
	const ttl = 10 * time.Minute

	base := time.Now()
	current := base
	r, err := NewRegistry(RegistryOptions{
		Root:     t.TempDir(),
		Provider: pairing.NewLocalProvider(),
		Now:      func() time.Time { return current },
	})
	require.NoError(t, err)

	old, _, err := r.Create(context.Background(), "15551230001")
	require.NoError(t, err)

	current = base.Add(ttl + time.Minute)
	fresh, _, err := r.Create(context.Background(), "15551230002")
	require.NoError(t, err)

	assert.Equal(t, 1, r.ExpireOlderThan(ttl))

	_, ok := r.Lookup(old.ID)
	assert.False(t, ok)
	_, ok = r.Lookup(fresh.ID)
	assert.True(t, ok)
}

func TestRegistry_ConcurrentCreateSamePhone(t *testing.T) {
	const n = 20

	// Frozen clock forces id collisions that the reservation scheme must
	// resolve.
	frozen := time.Now()
	r, err := NewRegistry(RegistryOptions{
		Root:     t.TempDir(),
		Provider: pairing.NewLocalProvider(),
		Now:      func() time.Time { return frozen },
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make(chan string, n)
	dirs := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _, err := r.Create(context.Background(), "15551234567")
			assert.NoError(t, err)
			ids <- sess.ID
			dirs <- sess.Dir
		}()
	}
	wg.Wait()
	close(ids)
	close(dirs)

	seenIDs := make(map[string]bool)
	for id := range ids {
		assert.False(t, seenIDs[id], "duplicate session id %s", id)
		seenIDs[id] = true
	}
	seenDirs := make(map[string]bool)
	for dir := range dirs {
		assert.False(t, seenDirs[dir], "duplicate working directory %s", dir)
		seenDirs[dir] = true
	}

	assert.Len(t, seenIDs, n)
	assert.Len(t, seenDirs, n)
	assert.Equal(t, n, r.Len())
}

func TestRegistry_ConcurrentCreateDeleteExpire(t *testing.T) {
	r, _ := setupTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _, err := r.Create(context.Background(), fmt.Sprintf("1555123%04d", i))
			if assert.NoError(t, err) && i%2 == 0 {
				r.Delete(sess.ID)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			r.ExpireOlderThan(time.Hour)
		}
	}()
	wg.Wait()

	// Odd-indexed sessions survive; nothing was young enough to expire.
	assert.Equal(t, 5, r.Len())
}

func TestRegistry_MarkAlive(t *testing.T) {
	r, _ := setupTestRegistry(t)

	sess, _, err := r.Create(context.Background(), "15551234567")
	require.NoError(t, err)

	assert.True(t, r.MarkAlive(sess.ID, false))
	got, ok := r.Lookup(sess.ID)
	require.True(t, ok)
	assert.False(t, got.Alive)

	assert.False(t, r.MarkAlive("unknown_123", true))
}

func TestRegistry_ListOrdered(t *testing.T) {
	base := time.Now()
	current := base
	r, err := NewRegistry(RegistryOptions{
		Root:     t.TempDir(),
		Provider: pairing.NewLocalProvider(),
		Now:      func() time.Time { return current },
	})
	require.NoError(t, err)

	var created []string
	for i := 0; i < 3; i++ {
		current = base.Add(time.Duration(i) * time.Second)
		sess, _, err := r.Create(context.Background(), fmt.Sprintf("155500000%02d", i))
		require.NoError(t, err)
		created = append(created, sess.ID)
	}

	list := r.List()
	require.Len(t, list, 3)
	for i, sess := range list {
		assert.Equal(t, created[i], sess.ID)
	}
}

func TestRegistry_WorkingDirectoriesUnderRoot(t *testing.T) {
	r, root := setupTestRegistry(t)

	sess, _, err := r.Create(context.Background(), "15551234567")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, sess.ID), sess.Dir)
}
