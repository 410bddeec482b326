// Package artifact turns a completed job's result reference into a local
// media file: inline base64 payloads are decoded, remote pointers are
// fetched over the guarded HTTP client.
package artifact

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/internal/httpclient"
	"github.com/dreamtide/veod/logger"
	"github.com/dreamtide/veod/veo"
)

const (
	// maxArtifactBytes caps a single downloaded or decoded video payload.
	maxArtifactBytes = 512 << 20

	fetchTimeout = 5 * time.Minute
)

// Materializer persists artifacts into the media directory.
type Materializer struct {
	dir  string
	http *httpclient.SaferClient
}

// NewMaterializer creates a materializer writing into dir. Remote fetches
// keep full SSRF protection because result pointers come from the
// backend, not from local configuration.
func NewMaterializer(dir string) *Materializer {
	return &Materializer{
		dir:  dir,
		http: httpclient.New(fetchTimeout, httpclient.Options{}),
	}
}

// NewMaterializerWithHTTP is for tests that serve artifacts from httptest.
func NewMaterializerWithHTTP(dir string, hc *httpclient.SaferClient) *Materializer {
	return &Materializer{dir: dir, http: hc}
}

// Materialize resolves resultRef into bytes on disk and returns the local
// file path. The file is named after the job id with an extension derived
// from the mime type.
func (m *Materializer) Materialize(ctx context.Context, jobID, resultRef, mimeType string) (string, error) {
	if resultRef == "" {
		return "", errors.Wrap(errors.ErrInvalidRequest, "empty result reference")
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create media directory")
	}

	var data []byte
	var err error
	if strings.HasPrefix(resultRef, veo.InlinePrefix) {
		data, err = decodeInline(strings.TrimPrefix(resultRef, veo.InlinePrefix))
	} else {
		data, err = m.fetch(ctx, resultRef)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(m.dir, jobID+extensionFor(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write artifact")
	}

	logger.Infow("Artifact materialized", "job_id", jobID, "path", path, "bytes", len(data))
	return path, nil
}

func decodeInline(encoded string) ([]byte, error) {
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxArtifactBytes {
		return nil, errors.Newf("inline payload exceeds %d byte limit", maxArtifactBytes)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode inline payload")
	}
	return data, nil
}

func (m *Materializer) fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build artifact request")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch artifact from %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("artifact fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read artifact body")
	}
	if len(data) > maxArtifactBytes {
		return nil, errors.Newf("artifact exceeds %d byte limit", maxArtifactBytes)
	}

	return data, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}
