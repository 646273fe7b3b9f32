package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestMemoryStorage_Upload(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		content string
		opts    UploadOptions
		wantErr error
	}{
		{
			name:    "gzip waveform",
			key:     "ark:/21198/zz002dvxmm/audiowaveform.dat",
			content: "\x1f\x8b\x08binary",
			opts:    UploadOptions{ContentType: "application/octet-stream", ContentEncoding: "gzip"},
		},
		{
			name:    "plain text",
			key:     "notes.txt",
			content: "hello",
			opts:    UploadOptions{ContentType: "text/plain"},
		},
		{
			name:    "empty key",
			key:     "",
			content: "x",
			wantErr: ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStorage("")
			err := s.Upload(context.Background(), tt.key, strings.NewReader(tt.content), int64(len(tt.content)), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			data, ok := s.GetData(tt.key)
			if !ok || string(data) != tt.content {
				t.Errorf("GetData() = %q, %v", data, ok)
			}
			enc, _ := s.GetContentEncoding(tt.key)
			if enc != tt.opts.ContentEncoding {
				t.Errorf("GetContentEncoding() = %q, want %q", enc, tt.opts.ContentEncoding)
			}
		})
	}
}

func TestMemoryStorage_DownloadDeleteExists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("")

	if _, err := s.Download(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Upload(ctx, "k", strings.NewReader("v"), 1, UploadOptions{}); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Download(ctx, "k")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "v" {
		t.Errorf("Download() = %q, want %q", data, "v")
	}

	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Error("Exists() = false, want true")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("Exists() after Delete = true")
	}
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStorage("")
	if err := s.Upload(ctx, "k", strings.NewReader("v"), 1, UploadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload() error = %v, want context.Canceled", err)
	}
	if err := s.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStorage_Concurrent(t *testing.T) {
	s := NewMemoryStorage("")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + strings.Repeat("x", i)
			_ = s.Upload(ctx, key, strings.NewReader("v"), 1, UploadOptions{})
			_, _ = s.Exists(ctx, key)
		}(i)
	}
	wg.Wait()

	if got := s.Count(); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		key      string
		want     string
	}{
		{
			name:     "localstack path style",
			template: "http://localhost:4566/waveforms/{}",
			key:      "ark:/21198/zz002dvxmm/audiowaveform.dat",
			want:     "http://localhost:4566/waveforms/ark%3A%2F21198%2Fzz002dvxmm%2Faudiowaveform.dat",
		},
		{
			name:     "aws virtual host",
			template: "https://waveforms.s3.us-west-2.amazonaws.com/{}",
			key:      "a b",
			want:     "https://waveforms.s3.us-west-2.amazonaws.com/a+b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectURL(tt.template, tt.key); got != tt.want {
				t.Errorf("ObjectURL() = %q, want %q", got, tt.want)
			}
		})
	}

	s := NewMemoryStorage("memory://bucket/{}")
	if got := s.ObjectURL("x/y"); got != "memory://bucket/x%2Fy" {
		t.Errorf("MemoryStorage.ObjectURL() = %q", got)
	}
}

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		endpoint   string
		wantHost   string
		wantSecure bool
	}{
		{"http://localhost:4566", "localhost:4566", false},
		{"https://s3.example.com", "s3.example.com", true},
		{"minio:9000", "minio:9000", true},
	}

	for _, tt := range tests {
		host, secure := endpointHost(tt.endpoint)
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Errorf("endpointHost(%q) = %q, %v, want %q, %v", tt.endpoint, host, secure, tt.wantHost, tt.wantSecure)
		}
	}
}

func TestNewMinIOStorage(t *testing.T) {
	s, err := NewMinIOStorage(&Config{
		Endpoint:          "http://localhost:4566",
		AccessKey:         "test",
		SecretKey:         "test",
		Bucket:            "waveforms",
		Region:            "us-east-1",
		ObjectURLTemplate: "http://localhost:4566/waveforms/{}",
	})
	if err != nil {
		t.Fatalf("NewMinIOStorage() error = %v", err)
	}
	if got := s.ObjectURL("k"); got != "http://localhost:4566/waveforms/k" {
		t.Errorf("ObjectURL() = %q", got)
	}
}
