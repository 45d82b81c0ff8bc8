package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HatiCode/meteocache/cmd/meteocache/config"
	"github.com/HatiCode/meteocache/pkg/storage"
)

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	store, health, err := newStore(&config.Config{Storage: "memory"})
	if err != nil {
		t.Fatalf("memory: unexpected error: %v", err)
	}
	if _, ok := store.(*storage.MemoryStore); !ok {
		t.Errorf("memory: got %T, want *storage.MemoryStore", store)
	}
	if health != nil {
		t.Error("memory: expected no health check")
	}

	store, health, err = newStore(&config.Config{Storage: "file", CacheDir: filepath.Join(dir, "partitions")})
	if err != nil {
		t.Fatalf("file: unexpected error: %v", err)
	}
	if _, ok := store.(*storage.FileStore); !ok {
		t.Errorf("file: got %T, want *storage.FileStore", store)
	}
	if health != nil {
		t.Error("file: expected no health check")
	}
	if _, err := os.Stat(filepath.Join(dir, "partitions")); err != nil {
		t.Errorf("file: cache directory not created: %v", err)
	}
}

func TestNewStore_FileError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := newStore(&config.Config{Storage: "file", CacheDir: filepath.Join(blocker, "sub")}); err == nil {
		t.Error("expected error when cache directory cannot be created")
	}
}
