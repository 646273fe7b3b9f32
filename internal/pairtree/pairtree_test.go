package pairtree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
)

func TestEncodeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ark:/21198/zz002dw148", "ark+=21198=zz002dw148"},
		{"21198/zz002dw148", "21198=zz002dw148"},
		{"file.name", "file,name"},
		{"a b", "a^20b"},
		{"a+b", "a^2bb"},
		{"a^b", "a^5eb"},
		{`q"*,<=>?\|`, "q^22^2a^2c^3c^3d^3e^3f^5c^7c"},
		{"é", "^c3^a9"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EncodeID(tt.in); got != tt.want {
			t.Errorf("EncodeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeIDRoundTrip(t *testing.T) {
	ids := []string{"ark:/21198/zz002dw148", "a b+c^d.e", "é/ü"}
	for _, id := range ids {
		if got := DecodeID(EncodeID(id)); got != id {
			t.Errorf("DecodeID(EncodeID(%q)) = %q", id, got)
		}
	}
}

func TestShorties(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"21198/zz002dw148", "21/19/8=/zz/00/2d/w1/48"},
		{"21198/zz002hdsj2", "21/19/8=/zz/00/2h/ds/j2"},
		{"abc", "ab/c"},
		{"ab", "ab"},
		{"a", "a"},
	}

	for _, tt := range tests {
		if got := strings.Join(Shorties(tt.id), "/"); got != tt.want {
			t.Errorf("Shorties(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestMapToPath(t *testing.T) {
	got := MapToPath("soul/pairtree_root", "21198/zz002dw148", "21198/zz002dw148")
	want := "soul/pairtree_root/21/19/8=/zz/00/2d/w1/48/21198=zz002dw148"
	if got != want {
		t.Errorf("MapToPath() = %q, want %q", got, want)
	}
}

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	out := t.TempDir()
	src := t.TempDir()
	return NewStore(Config{OutputDir: out, SourceDir: src, Prefix: "ark:/", Extension: "mp4"}), out, src
}

func writeSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStorePutVideo(t *testing.T) {
	store, out, src := newTestStore(t)
	writeSource(t, src, "synanon/video/synanon.mp4", "video")

	item, _ := manifest.NewItem("ark:/21198/zz002hdsj2", "synanon/video/synanon.mp4")
	stored, err := store.Put(context.Background(), item)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !stored.Processed {
		t.Error("Processed = false, want true")
	}

	want := filepath.Join(out, "synanon/pairtree_root/21/19/8=/zz/00/2h/ds/j2/21198=zz002hdsj2/ark+=21198=zz002hdsj2.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected object at %s: %v", want, err)
	}

	prefix, err := os.ReadFile(filepath.Join(out, "synanon", PrefixFile))
	if err != nil || string(prefix) != "ark:/" {
		t.Errorf("pairtree_prefix = %q, %v", prefix, err)
	}
	if _, err := os.Stat(filepath.Join(out, "synanon", VersionFile)); err != nil {
		t.Errorf("version file missing: %v", err)
	}
}

func TestStorePutConvertedAudioUsesOriginalPathRoot(t *testing.T) {
	store, out, _ := newTestStore(t)

	scratch := t.TempDir()
	converted := filepath.Join(scratch, "uclapasc.mp4")
	if err := os.WriteFile(converted, []byte("aac"), 0o644); err != nil {
		t.Fatal(err)
	}

	item, _ := manifest.NewItem("ark:/21198/zz002dvxmm", "soul/audio/uclapasc.wav")
	item = item.WithFilePath(converted)

	if _, err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := filepath.Join(out, "soul/pairtree_root/21/19/8=/zz/00/2d/vx/mm/21198=zz002dvxmm/ark+=21198=zz002dvxmm.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected object at %s: %v", want, err)
	}
	if _, err := os.Stat(converted); err != nil {
		t.Error("Put must not remove the source file")
	}
}

func TestStorePutOverwrites(t *testing.T) {
	store, _, src := newTestStore(t)
	writeSource(t, src, "soul/video/a.mp4", "first")

	item, _ := manifest.NewItem("ark:/21198/zz002dw148", "soul/video/a.mp4")
	if _, err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}

	objDir := store.ObjectDir(item.PathRoot, item.ARK)
	if err := os.WriteFile(filepath.Join(objDir, "stale.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeSource(t, src, "soul/video/a.mp4", "second")
	if _, err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	entries, err := os.ReadDir(objDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("object dir has %d entries, want 1", len(entries))
	}
	data, _ := os.ReadFile(store.ObjectPath(item))
	if string(data) != "second" {
		t.Errorf("object content = %q, want %q", data, "second")
	}
}

func TestStorePutMissingSource(t *testing.T) {
	store, _, _ := newTestStore(t)

	item, _ := manifest.NewItem("ark:/21198/zz002dw148", "soul/video/missing.mp4")
	got, err := store.Put(context.Background(), item)
	if !apperror.Is(err, apperror.KindStorage) {
		t.Fatalf("Put() error = %v, want storage error", err)
	}
	if got.Processed {
		t.Error("Processed = true after failure")
	}
}

func TestStorePutRejectsEmptyIdentifier(t *testing.T) {
	store, _, src := newTestStore(t)
	writeSource(t, src, "soul/video/a.mp4", "kept")
	writeSource(t, src, "soul/video/b.mp4", "bad")

	kept, _ := manifest.NewItem("ark:/21198/zz002dw148", "soul/video/a.mp4")
	if _, err := store.Put(context.Background(), kept); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	bad, _ := manifest.NewItem("ark:/", "soul/video/b.mp4")
	got, err := store.Put(context.Background(), bad)
	if !apperror.Is(err, apperror.KindStorage) {
		t.Fatalf("Put() error = %v, want storage error", err)
	}
	if got.Processed {
		t.Error("Processed = true after failure")
	}

	data, err := os.ReadFile(store.ObjectPath(kept))
	if err != nil {
		t.Fatalf("stored object lost: %v", err)
	}
	if string(data) != "kept" {
		t.Errorf("object content = %q, want %q", data, "kept")
	}
}
