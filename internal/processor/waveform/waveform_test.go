package waveform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor"
	"github.com/abdul-hamid-achik/av-pairtree/internal/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts storage.UploadOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	args := m.Called(key, data, size, opts)
	return args.Error(0)
}

func (m *mockUploader) ObjectURL(key string) string {
	return m.Called(key).String(0)
}

func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "audiowaveform")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "ark:/21198/zz002dvxmm/audiowaveform.dat", ObjectKey("ark:/21198/zz002dvxmm"))
}

func TestCompressRoundTrip(t *testing.T) {
	in := bytes.Repeat([]byte{0x01, 0x7f, 0x80}, 1000)
	out, err := Compress(in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in))
	assert.Equal(t, in, gunzip(t, out))
}

func TestExtract(t *testing.T) {
	tool := fakeTool(t, `echo "$@" > "$(dirname "$0")/args"
printf 'DATA'
echo "Generating waveform data..." >&2`)

	src := t.TempDir()
	up := &mockUploader{}
	up.On("Upload", "ark:/21198/zz002dvxmm/audiowaveform.dat", mock.AnythingOfType("[]uint8"), mock.AnythingOfType("int64"),
		storage.UploadOptions{ContentType: ContentType, ContentEncoding: "gzip"}).Return(nil)
	up.On("ObjectURL", "ark:/21198/zz002dvxmm/audiowaveform.dat").Return("https://s3/ark%3A%2F21198%2Fzz002dvxmm%2Faudiowaveform.dat")

	e, err := NewExtractor(&Config{AudiowaveformPath: tool, SourceDir: src}, up)
	require.NoError(t, err)

	item, _ := manifest.NewItem("ark:/21198/zz002dvxmm", "soul/audio/uclapasc.wav")
	res, err := e.Extract(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, "ark:/21198/zz002dvxmm", res.ARK)
	assert.Equal(t, "https://s3/ark%3A%2F21198%2Fzz002dvxmm%2Faudiowaveform.dat", res.URL)
	up.AssertExpectations(t)

	uploaded := up.Calls[0].Arguments.Get(1).([]byte)
	assert.Equal(t, []byte("DATA"), gunzip(t, uploaded))
	assert.Equal(t, int64(len(uploaded)), up.Calls[0].Arguments.Get(2).(int64))

	args, err := os.ReadFile(filepath.Join(filepath.Dir(tool), "args"))
	require.NoError(t, err)
	want := "--input-filename " + filepath.Join(src, "soul/audio/uclapasc.wav") + " --output-format dat --bits 8"
	assert.Equal(t, want, strings.TrimSpace(string(args)))
}

func TestExtractLargeOutputDoesNotDeadlock(t *testing.T) {
	tool := fakeTool(t, `dd if=/dev/zero bs=1024 count=512 2>/dev/null
dd if=/dev/zero bs=1024 count=256 2>/dev/null >&2`)

	up := storage.NewMemoryStorage("memory://w/{}")
	e, err := NewExtractor(&Config{AudiowaveformPath: tool}, up)
	require.NoError(t, err)

	item, _ := manifest.NewItem("ark:/1/big", "/abs/big.wav")
	res, err := e.Extract(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "memory://w/ark%3A%2F1%2Fbig%2Faudiowaveform.dat", res.URL)

	data, ok := up.GetData(ObjectKey("ark:/1/big"))
	require.True(t, ok)
	assert.Len(t, gunzip(t, data), 512*1024)

	enc, _ := up.GetContentEncoding(ObjectKey("ark:/1/big"))
	assert.Equal(t, "gzip", enc)
}

func TestExtractToolFailure(t *testing.T) {
	tool := fakeTool(t, `echo "Can't open input file" >&2
exit 2`)

	up := &mockUploader{}
	e, err := NewExtractor(&Config{AudiowaveformPath: tool}, up)
	require.NoError(t, err)

	item, _ := manifest.NewItem("ark:/1/x", "/abs/x.wav")
	_, err = e.Extract(context.Background(), item)
	require.Error(t, err)

	assert.True(t, apperror.Is(err, apperror.KindExternalTool))
	var te *processor.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.ExitCode)
	assert.Contains(t, te.Stderr, "Can't open input file")
	assert.Contains(t, te.CommandLine, "--input-filename /abs/x.wav --output-format dat --bits 8")

	up.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractUploadFailure(t *testing.T) {
	tool := fakeTool(t, `printf 'DATA'`)

	up := &mockUploader{}
	up.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	e, err := NewExtractor(&Config{AudiowaveformPath: tool}, up)
	require.NoError(t, err)

	item, _ := manifest.NewItem("ark:/1/x", "/abs/x.wav")
	_, err = e.Extract(context.Background(), item)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindStorage))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExtractEmptyOutput(t *testing.T) {
	tool := fakeTool(t, `exit 0`)

	e, err := NewExtractor(&Config{AudiowaveformPath: tool}, &mockUploader{})
	require.NoError(t, err)

	item, _ := manifest.NewItem("ark:/1/x", "/abs/x.wav")
	_, err = e.Extract(context.Background(), item)
	assert.ErrorIs(t, err, processor.ErrMissingOutput)
}

func TestNewExtractorMissingTool(t *testing.T) {
	_, err := NewExtractor(&Config{AudiowaveformPath: "/nonexistent/audiowaveform"}, &mockUploader{})
	assert.ErrorIs(t, err, processor.ErrToolNotFound)
}
