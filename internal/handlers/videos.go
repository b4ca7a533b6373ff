package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videomind-backend/internal/config"
	"github.com/yungbote/videomind-backend/internal/pipeline"
	"github.com/yungbote/videomind-backend/internal/platform/gcp"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/services"
	"github.com/yungbote/videomind-backend/internal/types"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

type VideosHandler struct {
	cfg     *config.Config
	jobs    repos.VideoJobRepo
	manager *pipeline.Manager
	ingest  services.IngestService
	ai      services.VideoAIService
	bucket  gcp.BucketService
}

func NewVideosHandler(
	cfg *config.Config,
	jobs repos.VideoJobRepo,
	manager *pipeline.Manager,
	ingest services.IngestService,
	ai services.VideoAIService,
	bucket gcp.BucketService,
) *VideosHandler {
	return &VideosHandler{cfg: cfg, jobs: jobs, manager: manager, ingest: ingest, ai: ai, bucket: bucket}
}

// POST /api/videos/process
func (h *VideosHandler) Process(c *gin.Context) {
	var req types.ProcessVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.DriveURL == "" && req.YouTubeURL == "" {
		RespondError(c, http.StatusBadRequest, "missing_source",
			fmt.Errorf("one of drive_url or youtube_url is required"))
		return
	}

	if req.YouTubeURL != "" {
		h.startYouTubeJob(c, req)
		return
	}
	h.startJob(c, &types.VideoJob{
		VideoSource:   types.VideoSourceDrive,
		DriveVideoURL: req.DriveURL,
		VideoName:     req.VideoName,
		UserID:        req.UserID,
		Status:        types.JobStatusPending,
	})
}

// POST /api/videos/process-youtube
func (h *VideosHandler) ProcessYouTube(c *gin.Context) {
	var req types.ProcessVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.YouTubeURL == "" {
		RespondError(c, http.StatusBadRequest, "missing_source",
			fmt.Errorf("youtube_url is required"))
		return
	}
	h.startYouTubeJob(c, req)
}

func (h *VideosHandler) startYouTubeJob(c *gin.Context, req types.ProcessVideoRequest) {
	if _, err := h.ingest.ExtractYouTubeID(req.YouTubeURL); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_youtube_url", err)
		return
	}
	h.startJob(c, &types.VideoJob{
		VideoSource: types.VideoSourceYouTube,
		YouTubeURL:  req.YouTubeURL,
		VideoName:   req.VideoName,
		UserID:      req.UserID,
		Status:      types.JobStatusPending,
	})
}

func (h *VideosHandler) startJob(c *gin.Context, job *types.VideoJob) {
	if err := h.jobs.Create(nil, job); err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	h.manager.Start(job.ID, "")

	RespondOK(c, types.NewJobStatusResponse(job))
}

// POST /api/videos/process-upload (multipart: file, video_name, user_id)
func (h *VideosHandler) ProcessUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !videoExtensions[ext] {
		RespondError(c, http.StatusBadRequest, "invalid_file_type",
			fmt.Errorf("unsupported file type %q, expected a video file", ext))
		return
	}

	name := c.PostForm("video_name")
	if name == "" {
		name = file.Filename
	}
	job := &types.VideoJob{
		VideoSource: types.VideoSourceUpload,
		VideoName:   name,
		UserID:      c.PostForm("user_id"),
		Status:      types.JobStatusPending,
	}
	if err := h.jobs.Create(nil, job); err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}

	src, err := file.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer src.Close()

	dest := filepath.Join(h.cfg.TempDir, job.ID.String()+"_video"+ext)
	if _, err := h.ingest.SaveUpload(src, dest); err != nil {
		RespondError(c, http.StatusInternalServerError, "save_failed", err)
		return
	}
	if err := h.jobs.UpdateFields(nil, job.ID, map[string]any{"uploaded_video_path": dest}); err != nil {
		RespondError(c, http.StatusInternalServerError, "update_failed", err)
		return
	}
	h.manager.Start(job.ID, "")

	RespondOK(c, types.NewJobStatusResponse(job))
}

// GET /api/videos/status/:id
func (h *VideosHandler) Status(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	var logs []types.LogEntry
	if len(job.ProcessingLog) > 0 {
		json.Unmarshal(job.ProcessingLog, &logs)
	}
	RespondOK(c, gin.H{
		"job":            types.NewJobStatusResponse(job),
		"processing_log": logs,
	})
}

// GET /api/videos/results/:id
func (h *VideosHandler) Results(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if !job.IsTerminal() {
		RespondError(c, http.StatusBadRequest, "still_processing",
			fmt.Errorf("job is still processing (status: %s)", job.Status))
		return
	}
	if job.Status == types.JobStatusFailed {
		RespondError(c, http.StatusInternalServerError, "job_failed",
			fmt.Errorf("job failed: %s", job.ErrorMessage))
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/videos/reports?user_id=&page=&limit= — finished reports only.
func (h *VideosHandler) Reports(c *gin.Context) {
	h.listJobs(c, true)
}

// GET /api/videos/list?user_id=&page=&limit=&completed=
func (h *VideosHandler) List(c *gin.Context) {
	h.listJobs(c, c.Query("completed") == "true")
}

func (h *VideosHandler) listJobs(c *gin.Context, completedOnly bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, total, err := h.jobs.List(nil, c.Query("user_id"), page, limit, completedOnly)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	summaries := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		summaries = append(summaries, gin.H{
			"id":                j.ID.String(),
			"video_name":        j.VideoName,
			"status":            j.Status,
			"progress":          j.Progress,
			"video_source":      j.VideoSource,
			"genre":             j.Genre,
			"duration_seconds":  j.DurationSeconds,
			"executive_summary": j.ExecutiveSummary,
			"thumbnail_url":     thumbnailFromFrames(j.Frames),
			"created_at":        j.CreatedAt,
			"completed_at":      j.CompletedAt,
		})
	}
	RespondOK(c, gin.H{"jobs": summaries, "total": total, "page": page, "limit": limit})
}

// DELETE /api/videos/:id
func (h *VideosHandler) Delete(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	h.manager.Cancel(job.ID)

	// Local artifacts and the archived audio go with the row; Drive uploads
	// stay for shared links.
	if job.AudioPath != "" {
		os.Remove(job.AudioPath)
	}
	if job.UploadedVideoPath != "" {
		os.Remove(job.UploadedVideoPath)
	}
	if job.AudioObjectKey != "" && h.bucket != nil {
		if err := h.bucket.DeleteFile(c.Request.Context(), job.AudioObjectKey); err != nil {
			RespondError(c, http.StatusInternalServerError, "delete_failed", err)
			return
		}
	}

	if err := h.jobs.Delete(nil, job.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("job %s deleted", job.ID)})
}

// POST /api/videos/:id/cancel
func (h *VideosHandler) Cancel(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if job.IsTerminal() {
		RespondError(c, http.StatusBadRequest, "already_finished",
			fmt.Errorf("job already %s", job.Status))
		return
	}
	if !h.manager.Cancel(job.ID) {
		RespondError(c, http.StatusBadRequest, "not_running",
			fmt.Errorf("job has no active run"))
		return
	}
	RespondOK(c, gin.H{"message": "cancellation requested"})
}

// POST /api/videos/:id/chat
func (h *VideosHandler) Chat(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if job.Status != types.JobStatusCompleted {
		RespondError(c, http.StatusBadRequest, "still_processing",
			fmt.Errorf("video is still processing (status: %s)", job.Status))
		return
	}

	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var transcript []types.Segment
	if len(job.Transcript) > 0 {
		json.Unmarshal(job.Transcript, &transcript)
	}
	var topics []types.Topic
	if len(job.Topics) > 0 {
		json.Unmarshal(job.Topics, &topics)
	}

	answer, err := h.ai.AnswerQuestion(c.Request.Context(), job, transcript, topics, req.Question)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "chat_failed", err)
		return
	}
	RespondOK(c, types.ChatResponse{Answer: answer})
}

// GET /api/videos/:id/download/transcript?format=json|txt
func (h *VideosHandler) DownloadTranscript(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if job.Status != types.JobStatusCompleted {
		RespondError(c, http.StatusBadRequest, "still_processing",
			fmt.Errorf("job is not completed (status: %s)", job.Status))
		return
	}
	var transcript []types.Segment
	if len(job.Transcript) > 0 {
		json.Unmarshal(job.Transcript, &transcript)
	}
	if len(transcript) == 0 {
		RespondError(c, http.StatusNotFound, "no_transcript",
			fmt.Errorf("transcript not found for this job"))
		return
	}

	if c.DefaultQuery("format", "json") == "txt" {
		var sb strings.Builder
		for _, seg := range transcript {
			span := fmt.Sprintf("[%s - %s]", services.FormatTimestamp(seg.StartS), services.FormatTimestamp(seg.EndS))
			if seg.Speaker != "" {
				fmt.Fprintf(&sb, "%s %s: %s\n", span, seg.Speaker, seg.Text)
			} else {
				fmt.Fprintf(&sb, "%s %s\n", span, seg.Text)
			}
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="transcript_%s.txt"`, job.ID))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(sb.String()))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="transcript_%s.json"`, job.ID))
	c.JSON(http.StatusOK, transcript)
}

// GET /api/videos/:id/download/audio
func (h *VideosHandler) DownloadAudio(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if job.Status != types.JobStatusCompleted {
		RespondError(c, http.StatusBadRequest, "still_processing",
			fmt.Errorf("job is not completed (status: %s)", job.Status))
		return
	}

	audioPath := job.AudioPath
	if audioPath == "" {
		audioPath = filepath.Join(h.cfg.TempDir, job.ID.String()+"_audio.wav")
	}
	if _, err := os.Stat(audioPath); err == nil {
		c.FileAttachment(audioPath, fmt.Sprintf("audio_%s.wav", job.ID))
		return
	}

	// Local copy gone; fall back to the archive bucket.
	if job.AudioObjectKey != "" && h.bucket != nil {
		rc, err := h.bucket.DownloadFile(c.Request.Context(), job.AudioObjectKey)
		if err == nil {
			defer rc.Close()
			c.DataFromReader(http.StatusOK, -1, "audio/wav", rc, map[string]string{
				"Content-Disposition": fmt.Sprintf(`attachment; filename="audio_%s.wav"`, job.ID),
			})
			return
		}
	}

	RespondError(c, http.StatusNotFound, "no_audio",
		fmt.Errorf("audio file not found for this job"))
}

func (h *VideosHandler) loadJob(c *gin.Context) (*types.VideoJob, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return nil, false
	}
	job, err := h.jobs.GetByID(nil, jobID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "lookup_failed"
		if err == gorm.ErrRecordNotFound {
			status = http.StatusNotFound
			code = "job_not_found"
		}
		RespondError(c, status, code, err)
		return nil, false
	}
	return job, true
}

// thumbnailFromFrames picks the first hero frame with a URL, for list cards.
func thumbnailFromFrames(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var frames []types.HeroFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return ""
	}
	for _, f := range frames {
		if f.BlobURL != "" {
			return f.BlobURL
		}
	}
	return ""
}
