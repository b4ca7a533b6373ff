package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Job lifecycle statuses. Transitions are strictly forward; completed and
// failed are terminal.
const (
	JobStatusPending      = "pending"
	JobStatusDownloading  = "downloading"
	JobStatusExtracting   = "extracting"
	JobStatusTranscribing = "transcribing"
	JobStatusAnalyzing    = "analyzing"
	JobStatusSynthesizing = "synthesizing"
	JobStatusCompleted    = "completed"
	JobStatusFailed       = "failed"
)

const (
	VideoSourceDrive   = "drive"
	VideoSourceYouTube = "youtube"
	VideoSourceUpload  = "upload"
)

// Segment is one transcript span. Within a finalized transcript, segments
// are sorted by StartS and the chunk-overlap dedup rules hold.
type Segment struct {
	Text       string  `json:"text"`
	StartS     float64 `json:"start_s"`
	EndS       float64 `json:"end_s"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// HeroFrame is the canonical visual for one cluster. LocalPath only exists
// between extraction and upload; after upload BlobURL is set and the local
// file is released.
type HeroFrame struct {
	TimestampS  float64 `json:"timestamp_s"`
	LocalPath   string  `json:"-"`
	BlobURL     string  `json:"blob_url"`
	Description string  `json:"description"`
	OCRText     string  `json:"ocr_text"`
	Kind        string  `json:"kind"` // slide, diagram, chart, demo, person, other
}

type SubTopic struct {
	Title           string  `json:"title"`
	VisualSummary   string  `json:"visual_summary"`
	Timestamp       string  `json:"timestamp"`
	ImageURL        string  `json:"image_url,omitempty"`
	FrameTimestampS float64 `json:"frame_timestamp_s"`
}

type Topic struct {
	Title      string      `json:"title"`
	StartS     float64     `json:"start_s"`
	EndS       float64     `json:"end_s"`
	Summary    string      `json:"summary,omitempty"`
	KeyPoints  []string    `json:"key_points"`
	Frames     []HeroFrame `json:"frames"`
	SubTopics  []SubTopic  `json:"sub_topics"`
	Quotes     []string    `json:"quotes,omitempty"`
	VisualCues []string    `json:"visual_cues,omitempty"`

	// Type is whatever the analyzer declared ("content", "ad", ...). Topics
	// declared "ad" are filtered before and after synthesis.
	Type string `json:"type,omitempty"`
}

type Slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Entities maps a category (people, companies, concepts, tools) to the
// deduplicated names mentioned in the video.
type Entities map[string][]string

// LogEntry is one append-only progress line surfaced to the user.
type LogEntry struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// VideoJob is the single mutable record of one processing run. Only the
// pipeline orchestrator mutates it; every other component is stateless.
type VideoJob struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	VideoSource       string `gorm:"column:video_source;not null" json:"video_source"`
	DriveVideoURL     string `gorm:"column:drive_video_url" json:"drive_video_url,omitempty"`
	DriveFileID       string `gorm:"column:drive_file_id" json:"drive_file_id,omitempty"`
	YouTubeURL        string `gorm:"column:youtube_url" json:"youtube_url,omitempty"`
	YouTubeVideoID    string `gorm:"column:youtube_video_id" json:"youtube_video_id,omitempty"`
	UploadedVideoPath string `gorm:"column:uploaded_video_path" json:"-"`
	VideoName         string `gorm:"column:video_name" json:"video_name"`
	UserID            string `gorm:"column:user_id;index" json:"user_id,omitempty"`

	PlaylistID *uuid.UUID `gorm:"type:uuid;column:playlist_id;index" json:"playlist_id,omitempty"`

	Status        string  `gorm:"column:status;not null" json:"status"`
	Progress      float64 `gorm:"column:progress;not null" json:"progress"`
	CurrentAction string  `gorm:"column:current_action" json:"current_action"`
	ErrorMessage  string  `gorm:"column:error_message" json:"error_message,omitempty"`

	ProcessingLog datatypes.JSON `gorm:"column:processing_log;type:jsonb" json:"processing_log,omitempty"`

	DurationSeconds float64 `gorm:"column:duration_seconds" json:"duration_seconds"`

	Transcript       datatypes.JSON `gorm:"column:transcript;type:jsonb" json:"transcript,omitempty"`
	Topics           datatypes.JSON `gorm:"column:topics;type:jsonb" json:"topics,omitempty"`
	Frames           datatypes.JSON `gorm:"column:frames;type:jsonb" json:"frames,omitempty"`
	Entities         datatypes.JSON `gorm:"column:entities;type:jsonb" json:"entities,omitempty"`
	KeyTakeaways     datatypes.JSON `gorm:"column:key_takeaways;type:jsonb" json:"key_takeaways,omitempty"`
	SlideSummary     datatypes.JSON `gorm:"column:slide_summary;type:jsonb" json:"slide_summary,omitempty"`
	ExecutiveSummary string         `gorm:"column:executive_summary" json:"executive_summary,omitempty"`

	Genre           string  `gorm:"column:genre" json:"genre,omitempty"`
	GenreConfidence float64 `gorm:"column:genre_confidence" json:"genre_confidence,omitempty"`
	GenreReason     string  `gorm:"column:genre_reason" json:"genre_reason,omitempty"`

	DriveFolderID  string `gorm:"column:drive_folder_id" json:"drive_folder_id,omitempty"`
	AudioPath      string `gorm:"column:audio_path" json:"-"`
	AudioObjectKey string `gorm:"column:audio_object_key" json:"-"`

	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (VideoJob) TableName() string { return "video_job" }

// IsTerminal reports whether the job reached a final state.
func (j *VideoJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
