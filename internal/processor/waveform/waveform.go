// Package waveform extracts audiowaveform data from audio files and publishes
// it to object storage.
package waveform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor"
	"github.com/abdul-hamid-achik/av-pairtree/internal/storage"
	"github.com/klauspost/compress/gzip"
)

const (
	ObjectName      = "audiowaveform.dat"
	ContentType     = "application/octet-stream"
	ContentEncoding = "gzip"
)

// Uploader is the slice of storage.Storage the extractor needs.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, opts storage.UploadOptions) error
	ObjectURL(key string) string
}

type Config struct {
	AudiowaveformPath string
	SourceDir         string
}

type Result struct {
	ARK string `json:"ark"`
	URL string `json:"url"`
}

type Extractor struct {
	config   *Config
	tool     string
	uploader Uploader
}

func NewExtractor(cfg *Config, uploader Uploader) (*Extractor, error) {
	if cfg.AudiowaveformPath == "" {
		cfg.AudiowaveformPath = "audiowaveform"
	}
	tool, err := processor.CheckInstalled(cfg.AudiowaveformPath)
	if err != nil {
		return nil, err
	}
	return &Extractor{config: cfg, tool: tool, uploader: uploader}, nil
}

func (e *Extractor) Name() string {
	return "waveform"
}

// ObjectKey is where the waveform of ark is stored.
func ObjectKey(ark string) string {
	return ark + "/" + ObjectName
}

func (e *Extractor) Extract(ctx context.Context, item manifest.Item) (Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	input := item.SourcePath(e.config.SourceDir)
	args := []string{"--input-filename", input, "--output-format", "dat", "--bits", "8"}

	data, err := runTool(ctx, e.tool, args)
	if err != nil {
		log.Error("audiowaveform failed", "ark", item.ARK, "error", err)
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, processor.Failure("waveform", processor.CommandLine(e.tool, args), processor.ErrMissingOutput, nil)
	}

	compressed, err := Compress(data)
	if err != nil {
		return Result{}, apperror.Wrap(err, apperror.KindStorage, "waveform", "gzip failed")
	}

	key := ObjectKey(item.ARK)
	err = e.uploader.Upload(ctx, key, bytes.NewReader(compressed), int64(len(compressed)), storage.UploadOptions{
		ContentType:     ContentType,
		ContentEncoding: ContentEncoding,
	})
	if err != nil {
		return Result{}, apperror.Wrap(err, apperror.KindStorage, "waveform", fmt.Sprintf("upload of %s failed", key))
	}

	url := e.uploader.ObjectURL(key)
	log.Debug("waveform uploaded", "ark", item.ARK, "key", key, "raw_bytes", len(data), "gzip_bytes", len(compressed), "duration_ms", time.Since(start).Milliseconds())

	return Result{ARK: item.ARK, URL: url}, nil
}

func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
