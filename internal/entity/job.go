package entity

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

type OutputFormat string

const (
	FormatRawContainer OutputFormat = "raw-container"
	FormatAudioExtract OutputFormat = "audio-extract"
	FormatStreamingMP4 OutputFormat = "streaming-mp4"
)

func (f OutputFormat) Valid() bool {
	switch f {
	case FormatRawContainer, FormatAudioExtract, FormatStreamingMP4:
		return true
	}

	return false
}

// Job is the state of one stream assembly. The job exclusively owns
// OutputPath for its lifetime; paths are generated to be unique per job.
type Job struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	Format        OutputFormat `json:"format"`
	OutputPath    string       `json:"output_path"`
	Status        JobStatus    `json:"status"`
	TotalSegments int          `json:"total_segments"`
	DoneSegments  int          `json:"done_segments"`
	FailedCount   int          `json:"failed_segments"`
	BytesWritten  int64        `json:"bytes_written"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	FinishedAt    time.Time    `json:"finished_at,omitempty"`
	Error         string       `json:"error,omitempty"`
	ErrorKind     string       `json:"error_kind,omitempty"`
}
