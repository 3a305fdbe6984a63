/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestFilesystemURL(t *testing.T) {
	fs := NewFilesystemStorage("/srv/media", "https://cdn.example.com", zerolog.Nop())

	got, err := fs.URL(context.Background(), "audio/track 1.ogg")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	want := "https://cdn.example.com/media/audio/track%201.ogg"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}

	if _, err := fs.URL(context.Background(), ""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestFilesystemExists(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "audio"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "audio", "a.ogg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	fs := NewFilesystemStorage(root, "http://localhost:8080", zerolog.Nop())

	ok, err := fs.Exists(context.Background(), "audio/a.ogg")
	if err != nil || !ok {
		t.Errorf("Exists(audio/a.ogg) = %v, %v", ok, err)
	}

	ok, err = fs.Exists(context.Background(), "audio/missing.ogg")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}
