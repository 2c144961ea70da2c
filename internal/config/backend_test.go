package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/cachefs/pkg/backend/mirrorbackend"
)

func TestBuildBackend_Mirror(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := BuildBackend(context.Background(), &BackendConfig{
		Type:   "mirror",
		Mirror: &MirrorBackendConfig{Root: filepath.Join(tmpDir, "origin")},
	})
	if err != nil {
		t.Fatalf("BuildBackend: %v", err)
	}
	if _, ok := b.(*mirrorbackend.Backend); !ok {
		t.Errorf("BuildBackend returned %T, want *mirrorbackend.Backend", b)
	}
}

func TestBuildBackend_MirrorMissingConfig(t *testing.T) {
	_, err := BuildBackend(context.Background(), &BackendConfig{Type: "mirror"})
	if err == nil {
		t.Fatal("expected an error when backend.mirror is unset")
	}
}

func TestBuildBackend_UnknownType(t *testing.T) {
	_, err := BuildBackend(context.Background(), &BackendConfig{Type: "bogus"})
	if err == nil {
		t.Fatal("expected an error for an unknown backend type")
	}
}
