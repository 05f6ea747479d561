package domain

import "time"

// JobStatus represents the lifecycle status of a pipeline job.
// Values move strictly forward: queued, downloading, transcribing,
// generating_notes, complete. JobStatusError is reachable from any
// non-terminal status.
type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusDownloading     JobStatus = "downloading"
	JobStatusTranscribing    JobStatus = "transcribing"
	JobStatusGeneratingNotes JobStatus = "generating_notes"
	JobStatusComplete        JobStatus = "complete"
	JobStatusError           JobStatus = "error"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// stageOrder ranks non-error statuses so forward-only transitions can be checked.
var stageOrder = map[JobStatus]int{
	JobStatusQueued:          0,
	JobStatusDownloading:     1,
	JobStatusTranscribing:    2,
	JobStatusGeneratingNotes: 3,
	JobStatusComplete:        4,
}

// CanTransition reports whether a job in status s may move to next.
// Parameters:
//   - next: requested status.
//
// Returns:
//   - bool: true for forward moves, same-status updates and error from a
//     non-terminal status.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusError {
		return true
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[next]
	if !ok {
		return false
	}
	return to > from
}

// Job is the in-memory record of one submission.
// It is mutated only through the job store; handlers receive copies.
type Job struct {
	ID             string      `json:"job_id"`
	URL            string      `json:"url"`
	Status         JobStatus   `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	ModelType      ModelFamily `json:"model_type,omitempty"`
	ModelSize      string      `json:"model_size,omitempty"`
	Language       string      `json:"language,omitempty"`
	AudioPath      string      `json:"audio_path,omitempty"`
	TranscriptPath string      `json:"transcript_path,omitempty"`
	NotesPath      string      `json:"notes_path,omitempty"`
	Title          string      `json:"title,omitempty"`
	Channel        string      `json:"channel,omitempty"`
	Thumbnail      string      `json:"thumbnail,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Summary returns the list-view projection of the job.
func (j Job) Summary() JobSummary {
	title := j.Title
	if title == "" {
		title = UnknownTitle
	}
	return JobSummary{
		ID:        j.ID,
		Status:    j.Status,
		URL:       j.URL,
		Title:     title,
		CreatedAt: j.CreatedAt,
	}
}

// JobSummary is one row of the job listing.
type JobSummary struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// JobUpdate carries a partial mutation. Nil fields are left untouched.
type JobUpdate struct {
	Status         *JobStatus
	AudioPath      *string
	TranscriptPath *string
	NotesPath      *string
	Title          *string
	Channel        *string
	Thumbnail      *string
	Language       *string
	Error          *string
}

// Apply copies every non-nil field of u onto job.
func (u JobUpdate) Apply(job *Job) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.AudioPath != nil {
		job.AudioPath = *u.AudioPath
	}
	if u.TranscriptPath != nil {
		job.TranscriptPath = *u.TranscriptPath
	}
	if u.NotesPath != nil {
		job.NotesPath = *u.NotesPath
	}
	if u.Title != nil {
		job.Title = *u.Title
	}
	if u.Channel != nil {
		job.Channel = *u.Channel
	}
	if u.Thumbnail != nil {
		job.Thumbnail = *u.Thumbnail
	}
	if u.Language != nil {
		job.Language = *u.Language
	}
	if u.Error != nil {
		job.Error = *u.Error
	}
}

// StatusUpdate is shorthand for an update that only changes status.
func StatusUpdate(status JobStatus) JobUpdate {
	return JobUpdate{Status: &status}
}

// Ptr returns a pointer to v. Used to build JobUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
