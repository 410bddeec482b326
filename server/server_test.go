package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtide/veod/credit"
	"github.com/dreamtide/veod/gen"
	qt "github.com/dreamtide/veod/internal/testing"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/poll"
	"github.com/dreamtide/veod/veo"
)

// stubBackend accepts every submission and keeps operations pending until
// told to complete.
type stubBackend struct {
	mu      sync.Mutex
	submits int
	done    map[string]*veo.OperationStatus
}

func (b *stubBackend) Submit(ctx context.Context, req veo.GenerateRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++
	return fmt.Sprintf("op-%d", b.submits), nil
}

func (b *stubBackend) FetchStatus(ctx context.Context, operationID string) (*veo.OperationStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status, ok := b.done[operationID]; ok {
		return status, nil
	}
	return &veo.OperationStatus{Name: operationID, Done: false}, nil
}

func (b *stubBackend) complete(operationID, ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		b.done = make(map[string]*veo.OperationStatus)
	}
	b.done[operationID] = &veo.OperationStatus{
		Name: operationID,
		Done: true,
		Response: &veo.OperationResponse{
			Videos: []veo.Video{{GCSUri: ref, MimeType: "video/mp4"}},
		},
	}
}

func newTestServer(t *testing.T, initialCredits int) (*httptest.Server, *stubBackend, *job.Store) {
	t.Helper()
	db := qt.CreateTestDB(t)

	store := job.NewStore(db)
	store.Load()

	ledger, err := credit.NewLedger(db, initialCredits)
	require.NoError(t, err)

	backend := &stubBackend{}
	service := gen.NewService(context.Background(), gen.Options{
		Backend: backend,
		Store:   store,
		Credits: ledger,
		PollConfig: poll.Config{
			Interval:         2 * time.Millisecond,
			MaxAttempts:      10000,
			ProgressInterval: time.Millisecond,
			AssumedDuration:  120 * time.Second,
		},
		CostPerVideo: 1,
	})
	t.Cleanup(service.Shutdown)

	s := NewServer(service, store, 0)
	go s.run()
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return srv, backend, store
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeJob(t *testing.T, resp *http.Response) *job.Job {
	t.Helper()
	defer resp.Body.Close()
	var j job.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&j))
	return &j
}

func TestGenerateEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, 3)

	resp := postJSON(t, srv.URL+"/api/generate", generatePayload{
		Prompt:          "a dragon in a forest",
		AspectRatio:     "16:9",
		DurationSeconds: 8,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	j := decodeJob(t, resp)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "op-1", j.OperationID)
	assert.Equal(t, job.StatusPending, j.Status)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	srv, _, _ := newTestServer(t, 3)

	resp := postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateRequiresCredits(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	resp := postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: "a dragon"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestJobsListAndFilter(t *testing.T) {
	srv, _, _ := newTestServer(t, 3)

	for _, prompt := range []string{"first", "second"} {
		resp := postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: prompt})
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jobs []*job.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "second", jobs[0].Prompt, "most recent first")

	bad, err := http.Get(srv.URL + "/api/jobs?status=bogus")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestJobByID(t *testing.T) {
	srv, _, _ := newTestServer(t, 3)

	created := decodeJob(t, postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: "a dragon"}))

	resp, err := http.Get(srv.URL + "/api/jobs/" + created.ID)
	require.NoError(t, err)
	got := decodeJob(t, resp)
	assert.Equal(t, created.ID, got.ID)

	missing, err := http.Get(srv.URL + "/api/jobs/no-such-job")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCancelAndDeleteJob(t *testing.T) {
	srv, _, store := newTestServer(t, 3)

	created := decodeJob(t, postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: "a dragon"}))

	resp := postJSON(t, srv.URL+"/api/jobs/"+created.ID+"/cancel", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		j, err := store.Get(created.ID)
		return err == nil && j.Status == job.StatusCancelled
	}, 5*time.Second, time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/jobs/"+created.ID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	gone, err := http.Get(srv.URL + "/api/jobs/" + created.ID)
	require.NoError(t, err)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestCreditsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, 3)

	resp, err := http.Get(srv.URL + "/api/credits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body["balance"])
}

func TestWebSocketStreamsJobUpdates(t *testing.T) {
	srv, backend, _ := newTestServer(t, 3)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the broadcast loop a moment to register the client
	time.Sleep(20 * time.Millisecond)

	created := decodeJob(t, postJSON(t, srv.URL+"/api/generate", generatePayload{Prompt: "a dragon"}))
	backend.complete(created.OperationID, "gs://bucket/video.mp4")

	deadline := time.Now().Add(5 * time.Second)
	sawCompleted := false
	for time.Now().Before(deadline) && !sawCompleted {
		conn.SetReadDeadline(deadline)
		var msg struct {
			Type string   `json:"type"`
			Job  *job.Job `json:"job"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("websocket read failed: %v", err)
		}
		require.Equal(t, "job_update", msg.Type)
		require.NotNil(t, msg.Job)
		if msg.Job.ID == created.ID && msg.Job.Status == job.StatusCompleted {
			sawCompleted = true
		}
	}

	assert.True(t, sawCompleted, "expected a completed job_update frame")
}
