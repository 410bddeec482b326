package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtide/veod/errors"
	qt "github.com/dreamtide/veod/internal/testing"
	"github.com/dreamtide/veod/internal/util"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(qt.CreateTestDB(t))
	s.Load()
	return s
}

func mustJob(t *testing.T, prompt, category string) *Job {
	t.Helper()
	j, err := New(prompt, category)
	require.NoError(t, err)
	return j
}

func TestAddInsertsAtHead(t *testing.T) {
	s := newTestStore(t)

	first := mustJob(t, "first", "")
	second := mustJob(t, "second", "")
	require.NoError(t, s.Add(first))
	require.NoError(t, s.Add(second))

	jobs := s.List(Filter{})
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID, "most recent job comes first")
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	err := s.Add(j)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Equal(t, 1, s.Len())
}

func TestUpdateUnknownJobReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	err := s.Update(j)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateReplacesRecord(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	j.OperationID = "op123"
	j.Start()
	require.NoError(t, s.Update(j))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "op123", got.OperationID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	require.NoError(t, s.Remove(j.ID))
	require.NoError(t, s.Remove(j.ID))
	require.NoError(t, s.Remove("never-existed"))
	assert.Equal(t, 0, s.Len())
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)

	a := mustJob(t, "a", "fantasy")
	b := mustJob(t, "b", "scifi")
	c := mustJob(t, "c", "fantasy")
	c.Start()
	c.Fail("boom")
	for _, j := range []*Job{a, b, c} {
		require.NoError(t, s.Add(j))
	}

	fantasy := s.List(Filter{Category: util.Ptr("fantasy")})
	require.Len(t, fantasy, 2)
	assert.Equal(t, c.ID, fantasy[0].ID)
	assert.Equal(t, a.ID, fantasy[1].ID)

	failed := s.List(Filter{Status: util.Ptr(StatusFailed)})
	require.Len(t, failed, 1)
	assert.Equal(t, c.ID, failed[0].ID)

	both := s.List(Filter{Status: util.Ptr(StatusFailed), Category: util.Ptr("scifi")})
	assert.Empty(t, both)
}

func TestLoadRestoresPersistedJobs(t *testing.T) {
	db := qt.CreateTestDB(t)

	s := NewStore(db)
	s.Load()

	j := mustJob(t, "persisted prompt", "cat")
	j.OperationID = "op123"
	j.Start()
	j.SetProgress(0.4)
	require.NoError(t, s.Add(j))
	require.NoError(t, s.Update(j))

	// Fresh store over the same database sees the record
	restored := NewStore(db)
	restored.Load()

	got, err := restored.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted prompt", got.Prompt)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "op123", got.OperationID)
	assert.InDelta(t, 0.4, got.Progress, 0.0001)
}

func TestLoadDegradesToEmptyOnCorruptStorage(t *testing.T) {
	db := qt.CreateTestDB(t)
	_, err := db.Exec(`DROP TABLE jobs`)
	require.NoError(t, err)

	s := NewStore(db)
	s.Load()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.List(Filter{}))
}

func TestSubscribersReceiveMutations(t *testing.T) {
	s := newTestStore(t)

	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	added := <-ch
	assert.Equal(t, j.ID, added.ID)
	assert.Equal(t, StatusPending, added.Status)

	j.Start()
	require.NoError(t, s.Update(j))

	updated := <-ch
	assert.Equal(t, StatusRunning, updated.Status)
}

func TestSlowSubscriberDoesNotBlockWriters(t *testing.T) {
	s := newTestStore(t)

	// Never drained; fill past the buffer
	s.Subscribe()

	for i := 0; i < SubscriberChannelBufferSize+10; i++ {
		j := mustJob(t, "prompt", "")
		require.NoError(t, s.Add(j))
	}

	assert.Equal(t, SubscriberChannelBufferSize+10, s.Len())
}

func TestStaleWriterCannotResurrectTerminalJob(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	// A reader takes a snapshot while the job is still running
	stale, err := s.Get(j.ID)
	require.NoError(t, err)
	stale.Start()
	stale.SetProgress(0.5)

	// The owning loop finishes the job first
	final, err := s.Get(j.ID)
	require.NoError(t, err)
	final.Start()
	final.Fail("boom")
	require.NoError(t, s.Update(final))

	// The stale write lands afterwards and is dropped
	require.NoError(t, s.Update(stale))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.FailureReason)
}

func TestUpdateKeepsProgressMonotonicAcrossWriters(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	j.Start()
	require.NoError(t, s.Add(j))

	ahead, err := s.Get(j.ID)
	require.NoError(t, err)
	ahead.SetProgress(0.6)
	require.NoError(t, s.Update(ahead))

	behind, err := s.Get(j.ID)
	require.NoError(t, err)
	behind.Progress = 0.2
	require.NoError(t, s.Update(behind))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.Progress)
}

func TestReadersSeeConsistentSnapshots(t *testing.T) {
	s := newTestStore(t)

	j := mustJob(t, "prompt", "")
	require.NoError(t, s.Add(j))

	got, err := s.Get(j.ID)
	require.NoError(t, err)

	// Mutating the returned copy never touches the stored record
	got.Status = StatusFailed
	got.FailureReason = "mutated copy"

	fresh, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)
	assert.Empty(t, fresh.FailureReason)
}
