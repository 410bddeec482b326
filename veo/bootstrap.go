package veo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dreamtide/veod/errors"
)

// bootstrapResponse is served by the out-of-band bootstrap endpoint.
type bootstrapResponse struct {
	BaseURL string `json:"baseUrl"`
}

// Bootstrap resolves the client's target. A configured base URL wins;
// otherwise the bootstrap endpoint is queried once. With neither, the
// client stays unresolved and calls keep failing fast.
func (c *Client) Bootstrap(ctx context.Context, baseURL, bootstrapURL string) error {
	if baseURL != "" {
		return c.SetBaseURL(baseURL)
	}
	if bootstrapURL == "" {
		return errors.Wrap(errors.ErrBaseURLUnresolved, "no base URL or bootstrap URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bootstrapURL, nil)
	if err != nil {
		return errors.Wrap(err, "build bootstrap request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "bootstrap fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("bootstrap endpoint returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read bootstrap response")
	}

	var body bootstrapResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return errors.Wrap(err, "decode bootstrap response")
	}
	if body.BaseURL == "" {
		return errors.New("bootstrap response missing baseUrl")
	}

	return c.SetBaseURL(body.BaseURL)
}
