package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/health"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var jobsAddr string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs in flight on a running server",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsAddr, "addr", "http://localhost:8888", "Base URL of a running avpt serve")
}

var httpClient = &http.Client{
	Timeout:   10 * time.Second,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

func fetchJobs(cmd *cobra.Command, addr string) (*health.JobsResponse, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimSuffix(addr, "/")+"/jobs", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jobs: unexpected status %s", resp.Status)
	}

	var jobs health.JobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return &jobs, nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	resp, err := fetchJobs(cmd, jobsAddr)
	if err != nil {
		return err
	}

	if printer.IsJSON() {
		return printer.JSON(resp)
	}
	if resp.Count == 0 {
		printer.Info("No jobs in flight")
		return nil
	}

	table := printer.Table("ARK", "FILE", "MANIFEST", "RUNNING")
	for _, job := range resp.Jobs {
		table.Append(
			job.Item.ARK,
			job.Item.FilePath,
			job.Manifest,
			time.Since(job.StartedAt).Truncate(time.Second).String(),
		)
	}
	return table.Render()
}
