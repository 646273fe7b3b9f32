package manifest

import (
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
)

const (
	AudioExt = ".wav"
	VideoExt = ".mp4"
)

type Kind int

const (
	KindOther Kind = iota
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Item is one manifest row as it moves through the pipeline. It is a value
// type: stages receive a copy and return the updated copy.
type Item struct {
	ARK          string `json:"ark"`
	FilePath     string `json:"file_path"`
	OriginalPath string `json:"original_path"`
	PathRoot     string `json:"path_root"`
	Processed    bool   `json:"processed"`
}

// NewItem captures the row's original path; PathRoot and Kind are derived
// from it and survive later FilePath changes.
func NewItem(ark, filePath string) (Item, error) {
	if ark == "" {
		return Item{}, apperror.New(apperror.KindParse, "manifest", "item ark must not be empty")
	}
	return Item{
		ARK:          ark,
		FilePath:     filePath,
		OriginalPath: filePath,
		PathRoot:     PathRoot(filePath),
	}, nil
}

// PathRoot returns the first slash-separated segment of path.
func PathRoot(path string) string {
	root, _, _ := strings.Cut(path, "/")
	return root
}

func (i Item) Kind() Kind {
	switch {
	case strings.HasSuffix(i.OriginalPath, AudioExt):
		return KindAudio
	case strings.HasSuffix(i.OriginalPath, VideoExt):
		return KindVideo
	default:
		return KindOther
	}
}

// JobKey identifies the item in worker logs.
func (i Item) JobKey() string { return i.ARK }

func (i Item) IsAudio() bool { return i.Kind() == KindAudio }

func (i Item) IsVideo() bool { return i.Kind() == KindVideo }

func (i Item) WithFilePath(path string) Item {
	i.FilePath = path
	return i
}

func (i Item) MarkProcessed() Item {
	i.Processed = true
	return i
}

// SourcePath resolves the item's file against sourceDir. Absolute paths are
// returned unchanged.
func (i Item) SourcePath(sourceDir string) string {
	if filepath.IsAbs(i.FilePath) {
		return i.FilePath
	}
	return filepath.Join(sourceDir, i.FilePath)
}
