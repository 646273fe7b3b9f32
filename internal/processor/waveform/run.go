package waveform

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor"
)

// runTool starts name and reads stdout and stderr to EOF before calling
// Wait. audiowaveform blocks on a full stdout pipe, so Wait must never come
// first.
func runTool(ctx context.Context, name string, args []string) ([]byte, error) {
	cmdline := processor.CommandLine(name, args)
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, processor.Failure("waveform", cmdline, err, nil)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, processor.Failure("waveform", cmdline, err, nil)
	}

	if err := cmd.Start(); err != nil {
		return nil, processor.Failure("waveform", cmdline, err, nil)
	}

	var (
		errBuf bytes.Buffer
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&errBuf, stderr)
	}()

	out, readErr := io.ReadAll(stdout)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return nil, processor.Failure("waveform", cmdline, err, errBuf.Bytes())
	}
	if readErr != nil {
		return nil, processor.Failure("waveform", cmdline, readErr, errBuf.Bytes())
	}

	if errBuf.Len() > 0 {
		logger.FromContext(ctx).Debug("audiowaveform stderr", "command", cmdline, "stderr", errBuf.String())
	}
	return out, nil
}
