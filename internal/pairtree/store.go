package pairtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
)

type Config struct {
	OutputDir string
	SourceDir string
	Prefix    string
	Extension string
}

// Store writes derivatives into one Pairtree per collection, rooted at
// <OutputDir>/<PathRoot>.
type Store struct {
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// TreeDir is the directory holding the pairtree_root of a collection.
func (s *Store) TreeDir(pathRoot string) string {
	return filepath.Join(s.cfg.OutputDir, pathRoot)
}

// ObjectDir is the Pairtree object directory for ark within a collection.
func (s *Store) ObjectDir(pathRoot, ark string) string {
	id := StripPrefix(ark, s.cfg.Prefix)
	return filepath.FromSlash(MapToPath(filepath.ToSlash(filepath.Join(s.TreeDir(pathRoot), Root)), id, id))
}

func (s *Store) ObjectPath(item manifest.Item) string {
	return filepath.Join(s.ObjectDir(item.PathRoot, item.ARK), EncodeID(item.ARK)+"."+s.cfg.Extension)
}

// CreateIfNeeded lays down pairtree_root and the prefix and version marker
// files for a collection. It is safe to call concurrently.
func (s *Store) CreateIfNeeded(pathRoot string) error {
	dir := s.TreeDir(pathRoot)
	if err := os.MkdirAll(filepath.Join(dir, Root), 0o755); err != nil {
		return fmt.Errorf("create pairtree root: %w", err)
	}
	if err := writeOnce(filepath.Join(dir, VersionFile), versionText); err != nil {
		return err
	}
	if s.cfg.Prefix != "" {
		if err := writeOnce(filepath.Join(dir, PrefixFile), s.cfg.Prefix); err != nil {
			return err
		}
	}
	return nil
}

// Put copies the item's file into its object directory, replacing whatever
// the object held before, and returns the item marked processed.
func (s *Store) Put(ctx context.Context, item manifest.Item) (manifest.Item, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return item, err
	}

	src := item.SourcePath(s.cfg.SourceDir)
	if _, err := os.Stat(src); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pairtree.put", "source file not readable")
	}

	if err := s.CreateIfNeeded(item.PathRoot); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pairtree.put", "cannot create pairtree")
	}

	objDir, err := s.objectDirFor(item)
	if err != nil {
		return item, err
	}
	if err := os.RemoveAll(objDir); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pairtree.put", "cannot remove existing object")
	}
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pairtree.put", "cannot create object directory")
	}

	dest := s.ObjectPath(item)
	if err := copyFile(src, dest); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pairtree.put", "copy into pairtree failed")
	}

	log.Debug("pairtree object stored", "ark", item.ARK, "path", dest, "duration_ms", time.Since(start).Milliseconds())
	return item.MarkProcessed(), nil
}

// objectDirFor resolves the object directory Put is about to replace and
// refuses anything that is not strictly below the collection's pairtree_root.
func (s *Store) objectDirFor(item manifest.Item) (string, error) {
	if StripPrefix(item.ARK, s.cfg.Prefix) == "" {
		return "", apperror.Newf(apperror.KindStorage, "pairtree.put", "ark %q has no identifier after prefix %q", item.ARK, s.cfg.Prefix)
	}

	root := filepath.Join(s.TreeDir(item.PathRoot), Root)
	objDir := s.ObjectDir(item.PathRoot, item.ARK)
	rel, err := filepath.Rel(root, objDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperror.Newf(apperror.KindStorage, "pairtree.put", "ark %q does not map below %s", item.ARK, Root)
	}
	return objDir, nil
}

func writeOnce(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
