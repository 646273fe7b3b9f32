package manifest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
)

const (
	HeaderARK       = "Item ARK"
	HeaderFileName  = "File Name"
	HeaderAccessURL = "IIIF Access URL"
	HeaderWaveform  = "Waveform"
)

const utf8BOM = "\ufeff"

type Row struct {
	Line   int
	Item   Item
	Values []string
}

type Manifest struct {
	Header []string
	Rows   []Row
}

func ReadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindParse, "manifest.read", "cannot open manifest")
	}
	defer f.Close()

	return Read(f)
}

func Read(r io.Reader) (*Manifest, error) {
	cr := newReader(r)

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	arkIdx := indexOf(header, HeaderARK)
	fileIdx := indexOf(header, HeaderFileName)
	if arkIdx < 0 || fileIdx < 0 {
		return nil, apperror.Newf(apperror.KindParse, "manifest.read",
			"header must contain %q and %q columns", HeaderARK, HeaderFileName)
	}

	m := &Manifest{Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.KindParse, "manifest.read", "malformed row")
		}

		line, _ := cr.FieldPos(0)
		item, err := NewItem(cell(record, arkIdx), cell(record, fileIdx))
		if err != nil {
			return nil, apperror.Newf(apperror.KindParse, "manifest.read", "line %d: missing %q", line, HeaderARK)
		}

		m.Rows = append(m.Rows, Row{Line: line, Item: item, Values: record})
	}

	return m, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperror.New(apperror.KindParse, "manifest.read", "manifest is empty")
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindParse, "manifest.read", "malformed header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
