package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
)

// OutputExt is the suffix of rewritten manifests. It differs from .csv so
// the watcher does not pick up its own output.
const OutputExt = ".out"

func OutputPath(manifestPath string) string {
	return strings.TrimSuffix(manifestPath, filepath.Ext(manifestPath)) + OutputExt
}

// Rewrite re-reads the manifest at manifestPath and writes a sibling output
// file with the access URL and waveform columns filled from the given maps,
// keyed by the row's line in the manifest (Row.Line). Rows missing from the
// maps keep their values. It returns the output path.
func Rewrite(manifestPath string, accessURLs, waveforms map[int]string) (string, error) {
	in, err := os.Open(manifestPath)
	if err != nil {
		return "", apperror.Wrap(err, apperror.KindParse, "manifest.rewrite", "cannot open manifest")
	}
	defer in.Close()

	outPath := OutputPath(manifestPath)
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".avpt-*.tmp")
	if err != nil {
		return "", apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", "cannot create output")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := rewrite(in, tmp, accessURLs, waveforms); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", "cannot flush output")
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return "", apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", "cannot move output into place")
	}

	return outPath, nil
}

func rewrite(r io.Reader, w io.Writer, accessURLs, waveforms map[int]string) error {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return err
	}

	layout := NewLayout(header)
	cw := csv.NewWriter(w)

	if err := cw.Write(layout.Header()); err != nil {
		return apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", "write header")
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return apperror.Wrap(err, apperror.KindParse, "manifest.rewrite", "malformed row")
		}

		line, _ := cr.FieldPos(0)
		row := layout.Project(record)
		layout.Fill(row, accessURLs[line], waveforms[line])

		if err := cw.Write(row); err != nil {
			return apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", fmt.Sprintf("write line %d", line))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperror.Wrap(err, apperror.KindStorage, "manifest.rewrite", "flush")
	}
	return nil
}
