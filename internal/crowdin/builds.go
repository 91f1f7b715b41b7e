package crowdin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BuildProject requests a project-wide translations export build.
func (c *Client) BuildProject(ctx context.Context, approvedOnly, skipUntranslated bool) (*Build, error) {
	body := buildRequest{
		SkipUntranslatedStrings: skipUntranslated,
		ExportApprovedOnly:      approvedOnly,
	}
	var envelope dataEnvelope[Build]
	if err := c.doJSON(ctx, http.MethodPost, c.projectURL("/translations/builds"), body, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// BuildStatus fetches the current state of a build.
func (c *Client) BuildStatus(ctx context.Context, buildID int64) (*Build, error) {
	target := c.projectURL(fmt.Sprintf("/translations/builds/%d", buildID))
	var envelope dataEnvelope[Build]
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// WaitForBuild polls the build until it finishes or maxWait elapses.
func (c *Client) WaitForBuild(ctx context.Context, buildID int64, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		build, err := c.BuildStatus(ctx, buildID)
		if err != nil {
			return err
		}
		if build.Status == BuildFinished {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("build %d not finished after %s (status %s)", buildID, maxWait, build.Status)
		}
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DownloadURL returns the signed archive URL of a finished build.
func (c *Client) DownloadURL(ctx context.Context, buildID int64) (string, error) {
	target := c.projectURL(fmt.Sprintf("/translations/builds/%d/download", buildID))
	var envelope dataEnvelope[downloadLink]
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.URL, nil
}

// DownloadArchive fetches the build archive bytes from the signed URL.
// The URL is pre-authorized, so no bearer token is attached.
func (c *Client) DownloadArchive(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: "archive download failed"}
	}
	return io.ReadAll(resp.Body)
}
