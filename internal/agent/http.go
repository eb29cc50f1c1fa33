package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// getJSON issues a GET and decodes a JSON body into dst. Non-2xx responses
// are returned as errors carrying the status and a bounded body excerpt.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	resp, err := get(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s - %s", url, resp.Status, string(body))
	}
	return resp, nil
}
