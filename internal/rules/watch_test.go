package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calnorm/internal/model"
)

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	repo := NewFileRepository(path)
	require.NoError(t, repo.Save(New()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() { changed <- struct{}{} })
	}()
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)

	edited := New()
	edited.SetTitle("Lecture", model.TitleRule{Title: "Lecture (EN)"})
	require.NoError(t, repo.Save(edited))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("edit was not reported")
	}

	t.Run("identical rewrite is ignored", func(t *testing.T) {
		require.NoError(t, repo.Save(edited))
		select {
		case <-changed:
			t.Fatal("unchanged content must not trigger")
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("unrelated files are ignored", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o600))
		select {
		case <-changed:
			t.Fatal("other files must not trigger")
		case <-time.After(300 * time.Millisecond):
		}
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
