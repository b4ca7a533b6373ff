package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PlaylistStatusPending    = "pending"
	PlaylistStatusProcessing = "processing"
	PlaylistStatusCompleted  = "completed"
	// Partial means the batch finished but some videos failed.
	PlaylistStatusPartial = "partial"
	PlaylistStatusFailed  = "failed"
)

// Playlist groups a batch of video jobs submitted together. Videos are
// processed sequentially; each report after the first is generated with the
// previous reports' topic titles as context.
type Playlist struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name   string `gorm:"column:name;not null" json:"name"`
	UserID string `gorm:"column:user_id;index" json:"user_id,omitempty"`

	Status        string  `gorm:"column:status;not null" json:"status"`
	TotalVideos   int     `gorm:"column:total_videos;not null" json:"total_videos"`
	VideosDone    int     `gorm:"column:videos_done;not null" json:"videos_done"`
	ErrorMessage  string  `gorm:"column:error_message" json:"error_message,omitempty"`
	SeriesSummary string  `gorm:"column:series_summary" json:"series_summary,omitempty"`
	Progress      float64 `gorm:"column:progress;not null" json:"progress"`

	// VideoOrder holds the job IDs in submission order.
	VideoOrder datatypes.JSON `gorm:"column:video_order;type:jsonb" json:"video_order,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Playlist) TableName() string { return "playlist" }
