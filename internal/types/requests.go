package types

// ProcessVideoRequest starts a single-video job. Exactly one of DriveURL or
// YouTubeURL must be set; uploads come in through the multipart endpoint.
type ProcessVideoRequest struct {
	DriveURL   string `json:"drive_url"`
	YouTubeURL string `json:"youtube_url"`
	VideoName  string `json:"video_name"`
	UserID     string `json:"user_id"`
}

// ProcessPlaylistRequest creates a batch from a YouTube playlist URL. The
// listing is resolved server side; videos process sequentially.
type ProcessPlaylistRequest struct {
	PlaylistURL string `json:"playlist_url" binding:"required"`
	UserID      string `json:"user_id"`
}

type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// JobStatusResponse is the lightweight polling shape; the full report is
// served separately once the job completes.
type JobStatusResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Progress      float64 `json:"progress"`
	CurrentAction string  `json:"current_action"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	VideoName     string  `json:"video_name"`
}

func NewJobStatusResponse(j *VideoJob) JobStatusResponse {
	return JobStatusResponse{
		ID:            j.ID.String(),
		Status:        j.Status,
		Progress:      j.Progress,
		CurrentAction: j.CurrentAction,
		ErrorMessage:  j.ErrorMessage,
		VideoName:     j.VideoName,
	}
}
