package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
)

func newIngestor(t *testing.T) (*Ingestor, *repository.MemoryStore, *storage.LocalStore) {
	t.Helper()
	files, err := storage.NewLocalStore(t.TempDir(), 1<<20, nil)
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	return NewIngestor(store.Documents(), files, nil), store, files
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestPath(t *testing.T) {
	ing, store, files := newIngestor(t)
	src := filepath.Join(t.TempDir(), "Complaint.PDF")
	writeFile(t, src, "complaint body")

	r, err := ing.IngestPath(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, r.Deduplicated)
	assert.Equal(t, "pdf", r.FileType)
	assert.Len(t, r.SHA256, 64)

	doc, err := store.Documents().Get(context.Background(), r.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Complaint.PDF", doc.OriginalName)
	assert.Equal(t, constants.StatusUploaded, doc.Status)
	assert.EqualValues(t, len("complaint body"), doc.FileSize)

	p, err := files.Path(doc.FileName)
	require.NoError(t, err)
	assert.FileExists(t, p)
}

func TestIngestPath_Unsupported(t *testing.T) {
	ing, _, _ := newIngestor(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, src, "x")

	_, err := ing.IngestPath(context.Background(), src)
	assert.ErrorIs(t, err, common.ErrUnsupportedFileType)
}

func TestIngestPath_DedupFollowsDeletes(t *testing.T) {
	ing, store, files := newIngestor(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "same bytes")
	writeFile(t, filepath.Join(dir, "b.pdf"), "same bytes")

	first, err := ing.IngestPath(ctx, filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	second, err := ing.IngestPath(ctx, filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	entries, err := os.ReadDir(files.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Documents().Delete(ctx, first.DocumentID))
	third, err := ing.IngestPath(ctx, filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)
	assert.False(t, third.Deduplicated)
	assert.NotEqual(t, first.DocumentID, third.DocumentID)
}

func TestIngestDirectory(t *testing.T) {
	ing, store, _ := newIngestor(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "motion.pdf"), "motion")
	writeFile(t, filepath.Join(root, "nested", "scan.png"), "png")
	writeFile(t, filepath.Join(root, "nested", "copy.pdf"), "motion")
	writeFile(t, filepath.Join(root, "readme.txt"), "skip")
	writeFile(t, filepath.Join(root, ".hidden", "secret.pdf"), "hidden")

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	docs, err := store.Documents().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestIngestDirectory_EmptyRoot(t *testing.T) {
	ing, _, _ := newIngestor(t)
	_, _, err := ing.IngestDirectory(context.Background(), " ", true)
	assert.Error(t, err)
}

func TestWatch_EmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watch event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.pdf"), next())

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, ".partial.pdf"), "x")
	writeFile(t, filepath.Join(root, "new.docx"), "new")
	assert.Equal(t, filepath.Join(root, "new.docx"), next())

	cancel()
	for range events {
	}
}

func TestWatch_DebouncesEachPathSeparately(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, Debounce: 150 * time.Millisecond}, nil)
	require.NoError(t, err)

	busy := filepath.Join(root, "busy.pdf")
	quiet := filepath.Join(root, "quiet.pdf")
	stopWriting := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(30 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-stopWriting:
				return
			case <-ticker.C:
				_ = os.WriteFile(busy, []byte(fmt.Sprintf("rev %d", i)), 0o644)
			}
		}
	}()
	writeFile(t, quiet, "done")

	// the quiet file is released while the busy one keeps changing
	select {
	case p := <-events:
		assert.Equal(t, quiet, p)
	case <-time.After(2 * time.Second):
		t.Fatal("quiet file held back by writes to another path")
	}

	close(stopWriting)
	<-writerDone
	select {
	case p := <-events:
		assert.Equal(t, busy, p)
	case <-time.After(5 * time.Second):
		t.Fatal("busy file never emitted")
	}

	cancel()
	for range events {
	}
}

func TestConsume(t *testing.T) {
	ing, _, _ := newIngestor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "a")
	writeFile(t, filepath.Join(dir, "dup.pdf"), "a")
	writeFile(t, filepath.Join(dir, "bad.txt"), "b")

	paths := make(chan string, 3)
	paths <- filepath.Join(dir, "a.pdf")
	paths <- filepath.Join(dir, "bad.txt")
	paths <- filepath.Join(dir, "dup.pdf")
	close(paths)

	var (
		mu     sync.Mutex
		queued []string
	)
	ing.Consume(context.Background(), paths, func(_ context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		queued = append(queued, id)
		return nil
	})
	assert.Len(t, queued, 1)
}
