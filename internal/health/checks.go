package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// DirWritable returns a [Checker] that verifies dir exists (creating it if
// needed) and that a file can be created inside it. The listener registers
// this for the clip directory, the watcher for the task log directory, so a
// full shared-storage mount shows up in /readyz rather than as write errors
// mid-pipeline.
func DirWritable(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
			probe := filepath.Join(dir, ".wodehouse-probe")
			if err := os.WriteFile(probe, nil, 0o644); err != nil {
				return fmt.Errorf("write probe in %s: %w", dir, err)
			}
			return os.Remove(probe)
		},
	}
}

// HTTPReachable returns a [Checker] that verifies the given base URL answers
// HTTP requests. Any response, including an error status, counts as
// reachable; only transport failures fail the check. The watcher registers
// this for the whisper server and the LLM endpoint.
func HTTPReachable(name, baseURL string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("reach %s: %w", baseURL, err)
			}
			return resp.Body.Close()
		},
	}
}
