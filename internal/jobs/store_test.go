package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/domain"
)

type fakeIndex struct {
	jobs map[string]domain.Job
	err  error
}

func (f *fakeIndex) ReconstructJob(id string) (domain.Job, bool) {
	job, ok := f.jobs[id]
	return job, ok
}

func (f *fakeIndex) CompletedJobs() ([]domain.Job, error) {
	out := make([]domain.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStoreCreateDefaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	job, err := s.Create(domain.Job{ID: "a", URL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, now, job.CreatedAt)

	_, err = s.Create(domain.Job{ID: "a"})
	assert.ErrorIs(t, err, ErrJobExists)

	_, err = s.Create(domain.Job{})
	assert.Error(t, err)
}

func TestStoreUpdateTransitions(t *testing.T) {
	s := NewStore()
	_, err := s.Create(domain.Job{ID: "a"})
	require.NoError(t, err)

	job, err := s.Update("a", domain.StatusUpdate(domain.JobStatusDownloading))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDownloading, job.Status)

	_, err = s.Update("a", domain.StatusUpdate(domain.JobStatusQueued))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	job, err = s.Update("a", domain.JobUpdate{
		Status: domain.Ptr(domain.JobStatusError),
		Error:  domain.Ptr("boom"),
	})
	require.NoError(t, err)
	assert.Equal(t, "boom", job.Error)

	_, err = s.Update("a", domain.StatusUpdate(domain.JobStatusComplete))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Update("missing", domain.StatusUpdate(domain.JobStatusDownloading))
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore()
	_, err := s.Create(domain.Job{ID: "a", Title: "original"})
	require.NoError(t, err)

	job, ok := s.Get("a")
	require.True(t, ok)
	job.Title = "mutated"

	again, _ := s.Get("a")
	assert.Equal(t, "original", again.Title)
}

func TestStoreGetFallsBackToArtifacts(t *testing.T) {
	index := &fakeIndex{jobs: map[string]domain.Job{
		"old": {ID: "old", Status: domain.JobStatusComplete, Title: "Restored"},
	}}
	s := NewStore(WithArtifactIndex(index))

	job, ok := s.Get("old")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusComplete, job.Status)
	assert.Equal(t, "Restored", job.Title)
	assert.False(t, s.Live("old"))

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStoreListMergesNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := &fakeIndex{jobs: map[string]domain.Job{
		"disk-old": {ID: "disk-old", Status: domain.JobStatusComplete, CreatedAt: base},
		"live":     {ID: "live", Status: domain.JobStatusComplete, CreatedAt: base.Add(time.Hour), Title: "stale"},
	}}
	s := NewStore(WithArtifactIndex(index))
	_, err := s.Create(domain.Job{ID: "live", CreatedAt: base.Add(2 * time.Hour), Title: "fresh"})
	require.NoError(t, err)
	_, err = s.Create(domain.Job{ID: "newest", CreatedAt: base.Add(3 * time.Hour)})
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "newest", list[0].ID)
	assert.Equal(t, domain.UnknownTitle, list[0].Title)
	assert.Equal(t, "live", list[1].ID)
	assert.Equal(t, "fresh", list[1].Title)
	assert.Equal(t, "disk-old", list[2].ID)
}

func TestStoreListAfterRestart(t *testing.T) {
	index := &fakeIndex{jobs: map[string]domain.Job{
		"x": {ID: "x", Status: domain.JobStatusComplete},
	}}
	s := NewStore(WithArtifactIndex(index))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.JobStatusComplete, list[0].Status)
}

func TestStoreListScanFailureKeepsLiveJobs(t *testing.T) {
	index := &fakeIndex{err: errors.New("permission denied")}
	s := NewStore(WithArtifactIndex(index))
	_, err := s.Create(domain.Job{ID: "a"})
	require.NoError(t, err)

	list, err := s.List()
	assert.Error(t, err)
	assert.Len(t, list, 1)
}

func TestStoreLogsFormatAndIsolation(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(now)))

	s.AppendLog("a", "Downloading audio...")
	s.Logf("b", "Transcribing with %s", "whisper")

	assert.Equal(t, []string{"09:05:07 - Downloading audio..."}, s.Logs("a"))
	assert.Equal(t, []string{"09:05:07 - Transcribing with whisper"}, s.Logs("b"))
	assert.Empty(t, s.Logs("unknown"))
	assert.NotNil(t, s.Logs("unknown"))
}

func TestStoreLogsBounded(t *testing.T) {
	s := NewStore(WithClock(fixedClock(time.Unix(0, 0).UTC())))
	for i := 0; i < 250; i++ {
		s.AppendLog("a", fmt.Sprintf("line %d", i))
	}

	logs := s.Logs("a")
	require.Len(t, logs, DefaultLogLines)
	assert.Equal(t, "00:00:00 - line 150", logs[0])
	assert.Equal(t, "00:00:00 - line 249", logs[len(logs)-1])
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job-%d", i)
		_, err := s.Create(domain.Job{ID: id})
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, status := range []domain.JobStatus{
				domain.JobStatusDownloading,
				domain.JobStatusTranscribing,
				domain.JobStatusGeneratingNotes,
				domain.JobStatusComplete,
			} {
				_, _ = s.Update(id, domain.StatusUpdate(status))
				s.AppendLog(id, string(status))
				_, _ = s.List()
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job-%d", i)
		job, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusComplete, job.Status)
		assert.Len(t, s.Logs(id), 4)
	}
}
