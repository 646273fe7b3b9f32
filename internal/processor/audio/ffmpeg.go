// Package audio converts archival audio into web-friendly derivatives.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
	"github.com/abdul-hamid-achik/av-pairtree/internal/pairtree"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor"
)

type Config struct {
	FFmpegPath string
	SourceDir  string
	// ScratchDir is created under os.TempDir when empty.
	ScratchDir string

	Codec      string
	BitRate    int
	Channels   int
	SampleRate int
	Format     string
	// Threads of 0 lets ffmpeg choose.
	Threads int
}

func DefaultConfig() *Config {
	return &Config{
		FFmpegPath: "ffmpeg",
		Codec:      "aac",
		BitRate:    128000,
		Channels:   2,
		SampleRate: 44100,
		Format:     "mp4",
	}
}

// Converter runs ffmpeg on one item at a time and leaves the derivative in a
// scratch directory owned by the process.
type Converter struct {
	config      *Config
	ffmpeg      string
	scratch     string
	ownsScratch bool
}

func NewConverter(cfg *Config) (*Converter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ffmpeg, err := processor.CheckInstalled(cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}

	c := &Converter{config: cfg, ffmpeg: ffmpeg, scratch: cfg.ScratchDir}
	if c.scratch == "" {
		dir, err := os.MkdirTemp("", "av-pairtree-*")
		if err != nil {
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
		c.scratch = dir
		c.ownsScratch = true
	} else if err := os.MkdirAll(c.scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	return c, nil
}

func (c *Converter) Name() string {
	return "audio_convert"
}

func (c *Converter) ScratchDir() string {
	return c.scratch
}

// OutputPath is the scratch location of the item's derivative. The encoded
// ARK keeps files with the same base name from different rows apart.
func (c *Converter) OutputPath(item manifest.Item) string {
	base := filepath.Base(item.FilePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.scratch, pairtree.EncodeID(item.ARK), base+"."+c.config.Format)
}

// Convert transcodes the item's source file and returns the item pointing at
// the derivative.
func (c *Converter) Convert(ctx context.Context, item manifest.Item) (manifest.Item, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	input := item.SourcePath(c.config.SourceDir)
	output := c.OutputPath(item)

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "convert", "cannot create scratch directory")
	}

	args := c.buildArgs(input, output)
	cmdline := processor.CommandLine(c.ffmpeg, args)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Error("ffmpeg failed", "ark", item.ARK, "command", cmdline, "error", err)
		return item, processor.Failure("convert", cmdline, err, stderr.Bytes())
	}

	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		return item, processor.Failure("convert", cmdline, processor.ErrMissingOutput, stderr.Bytes())
	}

	log.Debug("audio converted", "ark", item.ARK, "input", input, "output", output, "duration_ms", time.Since(start).Milliseconds())
	return item.WithFilePath(output), nil
}

func (c *Converter) buildArgs(input, output string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", input,
		"-vn",
		"-c:a", c.config.Codec,
	}

	if c.config.BitRate > 0 {
		args = append(args, "-b:a", strconv.Itoa(c.config.BitRate))
	}
	if c.config.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(c.config.Channels))
	}
	if c.config.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(c.config.SampleRate))
	}
	if c.config.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(c.config.Threads))
	}

	args = append(args, "-f", c.config.Format, output)
	return args
}

// Close removes the scratch directory if the converter created it.
func (c *Converter) Close() error {
	if !c.ownsScratch {
		return nil
	}
	return os.RemoveAll(c.scratch)
}
