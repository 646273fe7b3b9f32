package manifest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
)

func TestPathRoot(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"soul/audio/uclapasc.wav", "soul"},
		{"soul", "soul"},
		{"/abs/path.wav", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := PathRoot(tt.path); got != tt.want {
			t.Errorf("PathRoot(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNewItem(t *testing.T) {
	item, err := NewItem("ark:/21198/zz002dvxmm", "soul/audio/uclapasc.wav")
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if item.PathRoot != "soul" {
		t.Errorf("PathRoot = %q, want %q", item.PathRoot, "soul")
	}
	if item.Processed {
		t.Error("Processed = true, want false")
	}

	if _, err := NewItem("", "soul/a.wav"); !apperror.Is(err, apperror.KindParse) {
		t.Errorf("NewItem(\"\") error = %v, want parse error", err)
	}
}

func TestItemKind(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"soul/audio/a.wav", KindAudio},
		{"soul/video/b.mp4", KindVideo},
		{"soul/image/c.tif", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		item, _ := NewItem("ark:/1/2", tt.path)
		if got := item.Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestItemSurvivesConversion(t *testing.T) {
	item, _ := NewItem("ark:/21198/zz002dvxmm", "soul/audio/uclapasc.wav")
	converted := item.WithFilePath("/tmp/av-pairtree-123/ark+=21198=zz002dvxmm/uclapasc.mp4")

	if converted.PathRoot != "soul" {
		t.Errorf("PathRoot = %q after conversion, want %q", converted.PathRoot, "soul")
	}
	if !converted.IsAudio() {
		t.Error("IsAudio() = false after conversion, want true")
	}
	if item.FilePath != "soul/audio/uclapasc.wav" {
		t.Error("WithFilePath mutated the original value")
	}

	stored := converted.MarkProcessed()
	if !stored.Processed || converted.Processed {
		t.Error("MarkProcessed should only change the returned copy")
	}
}

func TestRead(t *testing.T) {
	input := "\ufeffItem ARK,Title,File Name\n" +
		"ark:/21198/zz002dvxmm,\"Song, with comma\",soul/audio/uclapasc.wav\n" +
		"ark:/21198/zz002dw148,Film,soul/video/film.mp4\n" +
		"ark:/21198/zz00000000,Collection,\n"

	m, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if m.Header[0] != HeaderARK {
		t.Errorf("Header[0] = %q, want BOM stripped %q", m.Header[0], HeaderARK)
	}
	if len(m.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(m.Rows))
	}
	if m.Rows[0].Values[1] != "Song, with comma" {
		t.Errorf("Values[1] = %q", m.Rows[0].Values[1])
	}
	if m.Rows[1].Line != 3 {
		t.Errorf("Rows[1].Line = %d, want 3", m.Rows[1].Line)
	}

	kinds := []Kind{KindAudio, KindVideo, KindOther}
	for i, want := range kinds {
		if got := m.Rows[i].Item.Kind(); got != want {
			t.Errorf("Rows[%d].Kind() = %v, want %v", i, got, want)
		}
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing ark column", "Title,File Name\nx,y.wav\n"},
		{"missing file column", "Item ARK,Title\nark:/1,x\n"},
		{"empty ark", "Item ARK,File Name\n,soul/a.wav\n"},
		{"bad quoting", "Item ARK,File Name\n\"ark:/1,soul/a.wav\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Read() error = nil, want parse error")
			}
			if !apperror.Is(err, apperror.KindParse) {
				t.Errorf("Read() error kind = %v, want %v", apperror.KindOf(err), apperror.KindParse)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name       string
		header     []string
		wantHeader []string
		wantGrown  int
	}{
		{
			name:       "neither column",
			header:     []string{"Item ARK", "File Name"},
			wantHeader: []string{"Item ARK", "File Name", "IIIF Access URL", "Waveform"},
			wantGrown:  2,
		},
		{
			name:       "access url present",
			header:     []string{"IIIF Access URL", "Item ARK", "File Name"},
			wantHeader: []string{"IIIF Access URL", "Item ARK", "File Name", "Waveform"},
			wantGrown:  1,
		},
		{
			name:       "both present",
			header:     []string{"Item ARK", "Waveform", "File Name", "IIIF Access URL"},
			wantHeader: []string{"Item ARK", "Waveform", "File Name", "IIIF Access URL"},
			wantGrown:  0,
		},
		{
			name:       "case sensitive",
			header:     []string{"Item ARK", "File Name", "waveform"},
			wantHeader: []string{"Item ARK", "File Name", "waveform", "IIIF Access URL", "Waveform"},
			wantGrown:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLayout(tt.header)
			if got := l.Header(); strings.Join(got, "|") != strings.Join(tt.wantHeader, "|") {
				t.Errorf("Header() = %v, want %v", got, tt.wantHeader)
			}
			if got := l.Grown(); got != tt.wantGrown {
				t.Errorf("Grown() = %d, want %d", got, tt.wantGrown)
			}
		})
	}
}

func TestLayoutFillPreservesExisting(t *testing.T) {
	l := NewLayout([]string{"Item ARK", "File Name", "IIIF Access URL", "Waveform"})

	row := l.Project([]string{"ark:/1", "img.tif", "https://iiif/img", "old-wave"})
	l.Fill(row, "", "")
	if row[2] != "https://iiif/img" || row[3] != "old-wave" {
		t.Errorf("Fill with empty values clobbered row: %v", row)
	}

	l.Fill(row, "https://av/new.mp4", "")
	if row[2] != "https://av/new.mp4" || row[3] != "old-wave" {
		t.Errorf("Fill() = %v", row)
	}
}

func TestLayoutProjectRagged(t *testing.T) {
	l := NewLayout([]string{"Item ARK", "File Name"})

	short := l.Project([]string{"ark:/1"})
	if len(short) != 4 || short[0] != "ark:/1" || short[1] != "" {
		t.Errorf("Project(short) = %v", short)
	}

	long := l.Project([]string{"ark:/1", "a.wav", "stray"})
	if len(long) != 4 || long[2] != "" {
		t.Errorf("Project(long) = %v", long)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/csv/batch.csv", "/csv/batch.out"},
		{"/csv/batch.v2.csv", "/csv/batch.v2.out"},
		{"/csv/noext", "/csv/noext.out"},
	}

	for _, tt := range tests {
		if got := OutputPath(tt.in); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func writeManifest(t *testing.T, rows [][]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "batch.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestRewrite(t *testing.T) {
	path := writeManifest(t, [][]string{
		{"Item ARK", "Title", "File Name"},
		{"ark:/21198/a", "Audio, one", "soul/a.wav"},
		{"ark:/21198/v", "Video", "soul/v.mp4"},
		{"ark:/21198/i", "Image", "soul/i.tif"},
	})

	access := map[int]string{
		2: "https://av/a.mp4",
		3: "https://av/v.mp4",
	}
	waves := map[int]string{2: "https://s3/a"}

	out, err := Rewrite(path, access, waves)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if out != strings.TrimSuffix(path, ".csv")+".out" {
		t.Errorf("Rewrite() path = %q", out)
	}

	got := readOutput(t, out)
	want := [][]string{
		{"Item ARK", "Title", "File Name", "IIIF Access URL", "Waveform"},
		{"ark:/21198/a", "Audio, one", "soul/a.wav", "https://av/a.mp4", "https://s3/a"},
		{"ark:/21198/v", "Video", "soul/v.mp4", "https://av/v.mp4", ""},
		{"ark:/21198/i", "Image", "soul/i.tif", "", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if strings.Join(got[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}

	original, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(original), "Item ARK,Title,File Name\n") {
		t.Error("original manifest was modified")
	}
}

func TestRewriteKeepsWidthWhenColumnsExist(t *testing.T) {
	path := writeManifest(t, [][]string{
		{"Item ARK", "File Name", "IIIF Access URL", "Waveform"},
		{"ark:/21198/a", "soul/a.wav", "", ""},
		{"ark:/21198/i", "soul/i.tif", "https://iiif/i", "kept"},
	})

	out, err := Rewrite(path, map[int]string{2: "https://av/a.mp4"}, map[int]string{2: "https://s3/a"})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got := readOutput(t, out)
	for i, row := range got {
		if len(row) != 4 {
			t.Errorf("row %d width = %d, want 4", i, len(row))
		}
	}
	if got[1][2] != "https://av/a.mp4" || got[1][3] != "https://s3/a" {
		t.Errorf("audio row = %v", got[1])
	}
	if got[2][2] != "https://iiif/i" || got[2][3] != "kept" {
		t.Errorf("image row was clobbered: %v", got[2])
	}
}

func TestRewriteFillsOnlyListedLines(t *testing.T) {
	path := writeManifest(t, [][]string{
		{"Item ARK", "File Name"},
		{"ark:/21198/a", "soul/a.mp4"},
		{"ark:/21198/a", "soul/a.mp4"},
		{"ark:/21198/a", "soul/a.tif"},
	})

	out, err := Rewrite(path, map[int]string{2: "https://av/a.mp4"}, nil)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got := readOutput(t, out)
	if got[1][2] != "https://av/a.mp4" {
		t.Errorf("line 2 = %v, want access url", got[1])
	}
	for _, row := range got[2:] {
		if row[2] != "" {
			t.Errorf("row sharing the ark was filled: %v", row)
		}
	}
}

func TestRewriteMissingManifest(t *testing.T) {
	_, err := Rewrite(filepath.Join(t.TempDir(), "missing.csv"), nil, nil)
	if !apperror.Is(err, apperror.KindParse) {
		t.Errorf("Rewrite() error = %v, want parse error", err)
	}
}
