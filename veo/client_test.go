package veo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/internal/httpclient"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClientWithHTTP(httpclient.WrapClient(srv.Client()), "veo-test-model")
	require.NoError(t, c.SetBaseURL(srv.URL))
	return c
}

func TestSubmitReturnsOperationID(t *testing.T) {
	var got GenerateRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, submitPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"name": "op123"})
	}))

	opID, err := c.Submit(context.Background(), GenerateRequest{
		Prompt:          "a dragon in a forest",
		AspectRatio:     AspectRatioLandscape,
		DurationSeconds: 8,
		GenerateAudio:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "op123", opID)
	assert.Equal(t, "a dragon in a forest", got.Prompt)
	assert.Equal(t, AspectRatioLandscape, got.AspectRatio)
	assert.Equal(t, "veo-test-model", got.Model, "client model should fill the request when unset")
}

func TestSubmitRejectsEmptyPromptBeforeNetworkCall(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.Submit(context.Background(), GenerateRequest{
		Prompt:          "   ",
		AspectRatio:     AspectRatioLandscape,
		DurationSeconds: 8,
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
	assert.False(t, called, "validation failures must not reach the network")
}

func TestSubmitRejectsBadAspectRatio(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := c.Submit(context.Background(), GenerateRequest{
		Prompt:          "a dragon",
		AspectRatio:     "4:3",
		DurationSeconds: 8,
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestSubmitFailsFastWhenBaseURLUnresolved(t *testing.T) {
	c := NewClientWithHTTP(httpclient.WrapClient(http.DefaultClient), "m")

	_, err := c.Submit(context.Background(), GenerateRequest{
		Prompt:          "a dragon",
		AspectRatio:     AspectRatioLandscape,
		DurationSeconds: 8,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBaseURLUnresolved))
}

func TestSubmitErrorTaxonomy(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))

		_, err := c.Submit(context.Background(), GenerateRequest{
			Prompt: "a dragon", AspectRatio: AspectRatioPortrait, DurationSeconds: 8,
		})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("missing operation name", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))

		_, err := c.Submit(context.Background(), GenerateRequest{
			Prompt: "a dragon", AspectRatio: AspectRatioPortrait, DurationSeconds: 8,
		})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Contains(t, err.Error(), "missing operation name")
	})
}

func TestFetchStatusTriState(t *testing.T) {
	responses := map[string]string{
		"op-pending":  `{"name":"op-pending","done":false}`,
		"op-done":     `{"name":"op-done","done":true,"response":{"videos":[{"gcsUri":"gs://bucket/video.mp4","mimeType":"video/mp4"}]}}`,
		"op-error":    `{"name":"op-error","done":true,"error":{"code":400,"message":"policy violation"}}`,
		"op-filtered": `{"name":"op-filtered","done":true,"response":{"raiMediaFilteredCount":1,"raiMediaFilteredReasons":["violence","weapons"]}}`,
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, statusPath, r.URL.Path)
		var req statusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Write([]byte(responses[req.OperationName]))
	}))

	pending, err := c.FetchStatus(context.Background(), "op-pending")
	require.NoError(t, err)
	assert.False(t, pending.Done)

	done, err := c.FetchStatus(context.Background(), "op-done")
	require.NoError(t, err)
	assert.True(t, done.Done)
	require.Len(t, done.Response.Videos, 1)
	assert.Equal(t, "gs://bucket/video.mp4", done.Response.Videos[0].Ref())

	failed, err := c.FetchStatus(context.Background(), "op-error")
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "policy violation", failed.Error.Message)

	filtered, err := c.FetchStatus(context.Background(), "op-filtered")
	require.NoError(t, err)
	assert.Equal(t, "violence; weapons", filtered.FilteredReasons())
}

func TestFetchStatusMalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))

	_, err := c.FetchStatus(context.Background(), "op123")
	var fetchErr *StatusFetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestVideoRefPrefersRemotePointer(t *testing.T) {
	v := Video{BytesBase64Encoded: "AAAA", GCSUri: "gs://bucket/v.mp4"}
	assert.Equal(t, "gs://bucket/v.mp4", v.Ref())

	inline := Video{BytesBase64Encoded: "AAAA"}
	assert.Equal(t, InlinePrefix+"AAAA", inline.Ref())

	assert.Empty(t, Video{}.Ref())
}
