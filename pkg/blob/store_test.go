package blob

import (
	"bytes"
	"strings"
	"testing"
)

func TestSaveFetchDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	payload := []byte("hello attachment")
	key, size, err := store.Save(bytes.NewReader(payload), 1024)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("Save() size = %d, want %d", size, len(payload))
	}
	if !strings.HasPrefix(key, "blob_") {
		t.Fatalf("Save() key = %q, want blob_ prefix", key)
	}

	got, err := store.Fetch(key, 0)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Fetch() = %q, want %q", got, payload)
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists(key) {
		t.Fatalf("blob still exists after delete")
	}
	if _, err := store.Fetch(key, 0); err == nil {
		t.Fatalf("expected error fetching deleted blob")
	}

	// Deleting again is a no-op.
	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}
}

func TestSaveRejectsOversizedPayload(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if _, _, err := store.Save(bytes.NewReader(make([]byte, 100)), 10); err == nil {
		t.Fatalf("expected size cap error")
	}
}

func TestDataURL(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	key, _, err := store.Save(bytes.NewReader([]byte{0x89, 0x50}), 100)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	url, err := store.DataURL(key, "image/png", 0)
	if err != nil {
		t.Fatalf("DataURL() error = %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("DataURL() = %q, want data:image/png;base64, prefix", url)
	}
}

func TestFetchRejectsInvalidKey(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, err := store.Fetch("../etc/passwd", 0); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
