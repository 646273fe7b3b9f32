package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/jobs"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
)

type fakeStorage struct{ err error }

func (f fakeStorage) HealthCheck(context.Context) error { return f.err }

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		method   string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, http.StatusOK, "{\"status\":\"ok\"}\n"},
		{http.MethodPost, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		StatusHandler()(rec, httptest.NewRequest(tt.method, "/status", nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s /status code = %d, want %d", tt.method, rec.Code, tt.wantCode)
		}
		if rec.Body.String() != tt.wantBody {
			t.Errorf("%s /status body = %q, want %q", tt.method, rec.Body.String(), tt.wantBody)
		}
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		storageErr error
		wantCode   int
		wantStatus Status
	}{
		{"healthy", nil, http.StatusOK, StatusHealthy},
		{"storage down", errors.New("bucket missing"), http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(nil).WithStorage(fakeStorage{err: tt.storageErr})

			rec := httptest.NewRecorder()
			ReadinessHandler(checker)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", resp.Status, tt.wantStatus)
			}
			if len(resp.Components) != 1 || resp.Components[0].Name != "storage" {
				t.Errorf("components = %+v", resp.Components)
			}
		})
	}
}

func TestJobsHandler(t *testing.T) {
	tracker := jobs.NewMemoryTracker()

	rec := httptest.NewRecorder()
	JobsHandler(tracker)(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if rec.Body.String() != "{\"count\":0,\"jobs\":[]}\n" {
		t.Errorf("empty /jobs body = %q", rec.Body.String())
	}

	item, _ := manifest.NewItem("ark:/21198/zz002dvxmm", "soul/audio/uclapasc.wav")
	if err := tracker.Add(context.Background(), jobs.Entry{Item: item, RunID: "r", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	JobsHandler(tracker)(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	var resp JobsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Jobs[0].Item.ARK != "ark:/21198/zz002dvxmm" {
		t.Errorf("/jobs = %+v", resp)
	}
}

type failingTracker struct{ jobs.Tracker }

func (failingTracker) List(context.Context) ([]jobs.Entry, error) {
	return nil, errors.New("redis: connection refused")
}

func TestJobsHandler_TrackerDown(t *testing.T) {
	rec := httptest.NewRecorder()
	JobsHandler(failingTracker{})(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("body leaks cause: %s", rec.Body.String())
	}
}
