package manifest

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndQueryCompletedChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	m, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if m.RunID() == "" {
		t.Fatal("expected a non-empty run id for a fresh run")
	}

	for i := 0; i < 3; i++ {
		rec := ChunkRecord{
			FileNumber:  i,
			FileSuffix:  "chunk",
			StartMS:     int64(i * 1000),
			EndMS:       int64((i + 1) * 1000),
			ByteCount:   1024,
			CompletedAt: time.Now(),
		}
		if err := m.RecordChunk(rec); err != nil {
			t.Fatalf("RecordChunk(%d): %v", i, err)
		}
	}

	done, err := m.CompletedFileNumbers()
	if err != nil {
		t.Fatalf("CompletedFileNumbers: %v", err)
	}
	if len(done) != 3 {
		t.Fatalf("CompletedFileNumbers = %v, want 3 entries", done)
	}
	for i := 0; i < 3; i++ {
		if !done[i] {
			t.Fatalf("expected file number %d to be recorded", i)
		}
	}
}

func TestOpenResumeReusesRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	first, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	firstRunID := first.RunID()
	if err := first.RecordChunk(ChunkRecord{FileNumber: 0, FileSuffix: "a", CompletedAt: time.Now()}); err != nil {
		t.Fatalf("RecordChunk: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open (resume): %v", err)
	}
	defer second.Close()

	if second.RunID() != firstRunID {
		t.Fatalf("resumed run id = %q, want %q", second.RunID(), firstRunID)
	}
}

func TestOpenFreshRunWithoutResumeMintsNewID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	first, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.RecordChunk(ChunkRecord{FileNumber: 0, FileSuffix: "a", CompletedAt: time.Now()}); err != nil {
		t.Fatalf("RecordChunk: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open (fresh): %v", err)
	}
	defer second.Close()

	if second.RunID() == first.RunID() {
		t.Fatal("expected a fresh run id when resume is false")
	}
}
