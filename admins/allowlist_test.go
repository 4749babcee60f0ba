package admins

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsIsCaseInsensitive(t *testing.T) {
	a := New("Ops@Example.com", " ")
	assert.True(t, a.Contains("ops@example.com"))
	assert.True(t, a.Contains("  OPS@example.COM "))
	assert.False(t, a.Contains("user@example.com"))
	assert.False(t, a.Contains(""))
	assert.Equal(t, 1, a.Len())

	var nilList *Allowlist
	assert.False(t, nilList.Contains("ops@example.com"))
}

func TestReplaceKeepsStaticEntries(t *testing.T) {
	a := New("root@example.com")
	a.Replace([]string{"file@example.com"})
	assert.True(t, a.Contains("root@example.com"))
	assert.True(t, a.Contains("file@example.com"))

	a.Replace(nil)
	assert.True(t, a.Contains("root@example.com"))
	assert.False(t, a.Contains("file@example.com"))
}

func TestParseFile(t *testing.T) {
	got := ParseFile([]byte("# admins\nA@example.com\n\nb@example.com, c@example.com # trailing\n"))
	assert.Equal(t, []string{"A@example.com", "b@example.com", "c@example.com"}, got)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "admins.txt")
	require.NoError(t, os.WriteFile(path, []byte("first@example.com\n"), 0o600))

	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, path) }()

	require.Eventually(t, func() bool { return a.Contains("first@example.com") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("second@example.com\n"), 0o600))
	require.Eventually(t, func() bool {
		return a.Contains("second@example.com") && !a.Contains("first@example.com")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchMissingFile(t *testing.T) {
	a := New()
	err := a.Watch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
