package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

func TestCharacterImageKey(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		wantErr     bool
	}{
		{"face.png", "image/png", false},
		{"face.JPG", "image/jpeg", false},
		{"face.jpeg", "image/jpeg", false},
		{"face.webp", "image/webp", false},
		{"face.gif", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			key, ct, err := CharacterImageKey("c1", tt.filename)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Errorf("error = %v, want ErrUnsupportedType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CharacterImageKey() error = %v", err)
			}
			if ct != tt.contentType {
				t.Errorf("content type = %q, want %q", ct, tt.contentType)
			}
			if !strings.HasPrefix(key, "characters/c1/") {
				t.Errorf("key = %q, want characters/c1/ prefix", key)
			}
		})
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	url, err := s.Put(ctx, "characters/c1/a.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/uploads/characters/c1/a.png" {
		t.Errorf("Put() url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "characters", "c1", "a.png"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("stored content = %q", data)
	}

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		if _, err := s.Put(ctx, "../../escape.png", strings.NewReader("x"), 1, "image/png"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
			t.Errorf("escaped key not confined to store dir: %v", err)
		}
	})

	if err := s.Delete(ctx, "characters/c1/a.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "characters/c1/a.png"); err != nil {
		t.Errorf("Delete() of missing asset error = %v", err)
	}
}

func TestMinioStore_URL(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{})
	if err != nil {
		t.Fatalf("minio.New() error = %v", err)
	}
	s := NewMinioStore(client, "assets", "https://cdn.example.com/assets/")

	key, _, err := CharacterImageKey("c1", "face.png")
	if err != nil {
		t.Fatalf("CharacterImageKey() error = %v", err)
	}
	if got, want := s.URL(key), "https://cdn.example.com/assets/"+key; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
