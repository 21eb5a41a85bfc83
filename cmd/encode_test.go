package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_person.JPG", "a_person.png", "notes.txt", "c.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o750); err != nil {
		t.Fatal(err)
	}

	files, err := listImages(dir)
	if err != nil {
		t.Fatalf("listImages() error = %v", err)
	}

	want := []string{"a_person.png", "b_person.JPG", "c.webp"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Errorf("file %d: got %q, want %q", i, filepath.Base(f), want[i])
		}
	}
}

func TestListImages_MissingFolder(t *testing.T) {
	if _, err := listImages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestEncodeFile_UnsupportedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane_doe.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	called := false
	extractor := extract.ExtractorFunc(func(context.Context, []byte) ([]gallery.Descriptor, error) {
		called = true
		return nil, nil
	})

	if _, err := encodeFile(context.Background(), extractor, path); err == nil {
		t.Error("expected error for undecodable image")
	}
	if called {
		t.Error("extractor must not be called for undecodable images")
	}
}

func TestLoadGallery_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	content := "Jane Doe:\n  status: Missing\n  encoding: [0.1, 0.2]\nAlex Poe:\n  encoding: [0.3, 0.4]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Gallery: config.GalleryConfig{Source: config.GallerySourceFile, Path: path}}
	store, err := loadGallery(context.Background(), cfg)
	if err != nil {
		t.Fatalf("loadGallery() error = %v", err)
	}
	if store.Len() != 2 || store.Dim() != 2 {
		t.Errorf("expected 2 identities of dim 2, got %d of dim %d", store.Len(), store.Dim())
	}
}

func TestLoadGallery_UnknownSource(t *testing.T) {
	cfg := &config.Config{Gallery: config.GalleryConfig{Source: "redis"}}
	if _, err := loadGallery(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestEntryMetadata(t *testing.T) {
	tests := []struct {
		name             string
		status           string
		lastSeenLocation string
		want             gallery.Metadata
	}{
		{"none", "", "", gallery.Metadata{}},
		{"status only", "Missing", "", gallery.Metadata{"status": "Missing"}},
		{"both", "Missing", "Central City Park", gallery.Metadata{
			"status":             "Missing",
			"last_seen_location": "Central City Park",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryMetadata(tt.status, tt.lastSeenLocation)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestEntryMetadata_WrittenToGalleryFile(t *testing.T) {
	id := gallery.Identity{
		Label:      gallery.LabelFromFilename("jane_doe.jpg"),
		Descriptor: gallery.Descriptor{0.1, 0.2},
		Metadata:   entryMetadata("Missing", "Central City Park"),
	}
	data, err := gallery.Marshal([]gallery.Identity{id})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	parsed, err := gallery.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parsed[0].Metadata[gallery.MetaLastSeenLocation]; got != "Central City Park" {
		t.Errorf("expected last_seen_location to survive, got %q", got)
	}
}
