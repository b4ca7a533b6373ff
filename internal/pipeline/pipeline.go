package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/videomind-backend/internal/config"
	"github.com/yungbote/videomind-backend/internal/imaging"
	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/platform/gcp"
	"github.com/yungbote/videomind-backend/internal/platform/gdrive"
	"github.com/yungbote/videomind-backend/internal/reconcile"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/roi"
	"github.com/yungbote/videomind-backend/internal/services"
	"github.com/yungbote/videomind-backend/internal/types"
)

// Coarse sampling interval for the first visual pass. The gatekeeper prunes
// these before any dense work happens, so the interval stays fixed rather
// than configured.
const coarseSampleInterval = 30

// Pipeline runs a video job end to end: fetch, demux, transcribe, analyze,
// sample, cluster, synthesize, persist. One Run per job; all state lives in
// the job row.
type Pipeline struct {
	log    *logger.Logger
	cfg    *config.Config
	jobs   repos.VideoJobRepo
	media  services.MediaToolsService
	ai     services.VideoAIService
	ingest services.IngestService
	drive  gdrive.Service
	bucket gcp.BucketService
}

func New(
	cfg *config.Config,
	jobs repos.VideoJobRepo,
	media services.MediaToolsService,
	ai services.VideoAIService,
	ingest services.IngestService,
	drive gdrive.Service,
	bucket gcp.BucketService,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		log:    log.With("component", "Pipeline"),
		cfg:    cfg,
		jobs:   jobs,
		media:  media,
		ai:     ai,
		ingest: ingest,
		drive:  drive,
		bucket: bucket,
	}
}

// Run processes one job. Errors are terminal: the job is marked failed with
// the message, and Run returns the same error. A cancelled context fails the
// job with "cancelled".
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, playlistContext string) error {
	log := p.log.With("job_id", jobID.String())

	if err := p.process(ctx, jobID, playlistContext, log); err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "cancelled"
		}
		log.Error("Job failed", "error", err)
		if uerr := p.jobs.UpdateFields(nil, jobID, map[string]any{
			"status":        types.JobStatusFailed,
			"error_message": msg,
		}); uerr != nil {
			log.Error("Could not mark job failed", "error", uerr)
		}
		p.cleanup(jobID, "")
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, jobID uuid.UUID, playlistContext string, log *logger.Logger) error {
	job, err := p.jobs.GetByID(nil, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	source := resolveSource(job)

	// Stage 1: fetch the source video.
	p.setStatus(jobID, types.JobStatusDownloading, 0.05,
		fmt.Sprintf("Connecting to %s to download your video...", source))

	videoPath, err := p.fetchVideo(ctx, job, source)
	if err != nil {
		return fmt.Errorf("fetch video: %w", err)
	}
	p.setProgress(jobID, 0.1, "Video secured! Now preparing for detailed analysis...")

	duration := p.media.ProbeDuration(ctx, videoPath)
	p.update(jobID, map[string]any{"duration_seconds": duration})

	// Stage 2: demux audio.
	p.setStatus(jobID, types.JobStatusExtracting, 0.15,
		"Extracting high-quality audio for transcription...")

	audioPath := filepath.Join(p.cfg.TempDir, jobID.String()+"_audio.wav")
	if _, err := p.media.ExtractAudio(ctx, videoPath, audioPath, p.cfg.AudioSampleRate); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	p.update(jobID, map[string]any{"audio_path": audioPath})
	p.archiveAudio(ctx, jobID, audioPath, log)
	p.setProgress(jobID, 0.25, "Audio ready. Starting transcription engine...")

	// Stage 3: transcribe in overlapping chunks.
	p.setStatus(jobID, types.JobStatusTranscribing, 0.3,
		"Transcribing the audio and identifying speakers...")

	transcript, err := p.transcribe(ctx, audioPath, log)
	if err != nil {
		return err
	}
	p.update(jobID, map[string]any{"transcript": mustJSON(transcript)})
	p.setProgress(jobID, 0.5, "Transcription complete. Detecting visual cues and landmarks...")

	// Stage 4: audio cue scout.
	audioCues := p.ai.DetectVisualCues(ctx, transcript)
	log.Info("Audio cue scout done", "cues", len(audioCues))

	// Stage 5: genre classification and transcript analysis.
	p.setStatus(jobID, types.JobStatusAnalyzing, 0.55,
		"Analyzing the transcript to identify key topics and segments...")

	transcriptText := joinTranscript(transcript)
	genre := p.ai.ClassifyGenre(ctx, transcriptText, duration)
	p.update(jobID, map[string]any{
		"genre":            genre.Genre,
		"genre_confidence": genre.Confidence,
		"genre_reason":     genre.Reason,
	})

	analysis, err := p.ai.AnalyzeTranscript(ctx, transcriptText, duration, genre.Genre)
	if err != nil {
		return fmt.Errorf("analyze transcript: %w", err)
	}
	if filtered := reconcile.FilterAds(analysis.Topics); len(filtered) < len(analysis.Topics) {
		log.Info("Filtered ad topics from analysis", "removed", len(analysis.Topics)-len(filtered))
		analysis.Topics = filtered
	}
	p.setProgress(jobID, 0.6, "Filtering transcript for relevance and removing distractions...")

	// Stage 6: coarse sampling plus gatekeeper.
	p.setProgress(jobID, 0.65, "Scanning video frames to identify the most important visual moments...")

	framesDir := filepath.Join(p.cfg.TempDir, jobID.String()+"_frames")
	coarse, err := p.media.ExtractKeyframes(ctx, videoPath, framesDir, coarseSampleInterval)
	if err != nil {
		return fmt.Errorf("extract keyframes: %w", err)
	}

	useful := p.gatekeep(ctx, coarse, log)
	log.Info("Gatekeeper done", "kept", len(useful), "total", len(coarse))

	// Stage 7: ROI fusion and dense sampling.
	windows := roi.MergeWindows(
		cuesFromAudio(audioCues, analysis.VisualCues),
		cuesFromFrames(useful),
		duration,
		p.cfg.ROIBufferSeconds,
		p.cfg.ROIMinGapSeconds,
	)
	log.Info("Merged processing windows", "windows", len(windows))

	var dense []services.SampledFrame
	if len(windows) > 0 {
		dense, err = p.media.ExtractDenseFrames(ctx, videoPath, framesDir, windows, p.cfg.DenseSampleFPS)
		if err != nil {
			log.Warn("Dense sampling failed, continuing with coarse frames", "error", err)
		}
	}
	p.setProgress(jobID, 0.7, "Visual landmarks detected. Deduplicating and selecting hero frames...")

	// Stage 8: dedup by second and cluster.
	frames := combineFrames(useful, dense)
	clusters := imaging.ClusterFrames(frames, p.cfg.ClusterHashThreshold, log)
	log.Info("Clustered frames", "frames", len(frames), "clusters", len(clusters))
	p.setProgress(jobID, 0.75, "Generating visual sub-topics and cross-referencing with audio...")

	// Stage 9: hero selection and description.
	visuals := p.ai.AnalyzeFrameClusters(ctx, clusterInputs(clusters))

	// Stage 10: upload heroes.
	heroes := p.uploadHeroes(ctx, jobID, visuals, log)
	for i := range visuals {
		visuals[i].BlobURL = heroes[i].BlobURL
	}
	p.setProgress(jobID, 0.85, "Almost there! Combining all insights into your final structured report...")

	// Stage 11: synthesis.
	p.setStatus(jobID, types.JobStatusSynthesizing, 0.9,
		"Generating your executive summary and key takeaways...")

	synthesis := p.ai.Synthesize(ctx, analysis, visuals, duration, genre.Genre, playlistContext)
	if filtered := reconcile.FilterAds(synthesis.Topics); len(filtered) < len(synthesis.Topics) {
		log.Info("Filtered ad topics from synthesis", "removed", len(synthesis.Topics)-len(filtered))
		synthesis.Topics = filtered
	}

	// Stage 12: nest visuals under topics.
	synthesis.Topics = p.ai.MapVisualsToTopics(ctx, synthesis.Topics, visuals)

	// Stage 13: slide deck, non-blocking.
	p.setProgress(jobID, 0.95, "Generating a 5-slide executive presentation for you...")
	slides, err := p.ai.GenerateSlideSummary(ctx, transcriptText, synthesis.ExecutiveSummary, synthesis.KeyTakeaways, synthesis.Topics, duration, genre.Genre)
	if err != nil {
		log.Warn("Slide summary generation failed", "error", err)
		slides = nil
	}

	// Stage 14: bind frames to topic spans and finish. Only frames that made
	// it to the blob store are published; a hero without a URL cannot render.
	heroes = publishedHeroes(heroes)
	topics := reconcile.AttachFrames(synthesis.Topics, heroes)

	now := time.Now().UTC()
	if err := p.jobs.UpdateFields(nil, jobID, map[string]any{
		"status":            types.JobStatusCompleted,
		"progress":          1.0,
		"topics":            mustJSON(topics),
		"frames":            mustJSON(heroes),
		"executive_summary": synthesis.ExecutiveSummary,
		"key_takeaways":     mustJSON(synthesis.KeyTakeaways),
		"entities":          mustJSON(synthesis.Entities),
		"slide_summary":     mustJSON(slides),
		"completed_at":      &now,
	}); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	p.appendLog(jobID, "Report complete! Rendering your insights now.")

	videoToRemove := videoPath
	if source == types.VideoSourceUpload {
		// Uploaded originals stay until the job is deleted.
		videoToRemove = ""
	}
	p.cleanup(jobID, videoToRemove)

	log.Info("Job completed", "duration_s", duration, "topics", len(topics), "heroes", len(heroes))
	return nil
}

func resolveSource(job *types.VideoJob) string {
	if job.VideoSource != "" {
		return job.VideoSource
	}
	switch {
	case job.YouTubeURL != "":
		return types.VideoSourceYouTube
	case job.UploadedVideoPath != "":
		return types.VideoSourceUpload
	default:
		return types.VideoSourceDrive
	}
}

func (p *Pipeline) fetchVideo(ctx context.Context, job *types.VideoJob, source string) (string, error) {
	switch source {
	case types.VideoSourceUpload:
		if job.UploadedVideoPath == "" {
			return "", fmt.Errorf("uploaded video path not set")
		}
		if _, err := os.Stat(job.UploadedVideoPath); err != nil {
			return "", fmt.Errorf("uploaded video missing: %w", err)
		}
		if job.VideoName == "" {
			p.update(job.ID, map[string]any{"video_name": filepath.Base(job.UploadedVideoPath)})
		}
		return job.UploadedVideoPath, nil

	case types.VideoSourceYouTube:
		if job.YouTubeURL == "" {
			return "", fmt.Errorf("youtube url not set")
		}
		videoID, err := p.ingest.ExtractYouTubeID(job.YouTubeURL)
		if err != nil {
			return "", err
		}

		name := job.VideoName
		if info, ierr := p.ingest.YouTubeInfo(ctx, job.YouTubeURL); ierr == nil && info.Title != "" {
			name = info.Title
		} else if name == "" {
			name = fmt.Sprintf("video_%s.mp4", job.ID)
		}
		p.update(job.ID, map[string]any{
			"youtube_video_id": videoID,
			"video_name":       name,
			"video_source":     types.VideoSourceYouTube,
		})

		dest := filepath.Join(p.cfg.TempDir, job.ID.String()+"_video.mp4")
		return p.ingest.DownloadYouTube(ctx, job.YouTubeURL, dest)

	default:
		if job.DriveVideoURL == "" {
			return "", fmt.Errorf("drive video url not set")
		}
		destDir := filepath.Join(p.cfg.TempDir, job.ID.String()+"_source")
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", fmt.Errorf("create source dir: %w", err)
		}
		path, name, err := p.ingest.DownloadDrive(ctx, job.DriveVideoURL, destDir)
		if err != nil {
			return "", err
		}
		fileID, _ := p.drive.ExtractFileID(job.DriveVideoURL)
		p.update(job.ID, map[string]any{
			"drive_file_id": fileID,
			"video_name":    name,
			"video_source":  types.VideoSourceDrive,
		})
		return path, nil
	}
}

// archiveAudio copies the extracted WAV into the report bucket so it outlives
// local disk. Best effort; a missing bucket just skips the archive.
func (p *Pipeline) archiveAudio(ctx context.Context, jobID uuid.UUID, audioPath string, log *logger.Logger) {
	if p.bucket == nil {
		return
	}
	f, err := os.Open(audioPath)
	if err != nil {
		log.Warn("Could not open audio for archive", "error", err)
		return
	}
	defer f.Close()

	key := fmt.Sprintf("audio/%s.wav", jobID)
	if err := p.bucket.UploadFile(ctx, key, f, "audio/wav"); err != nil {
		log.Warn("Audio archive upload failed", "error", err)
		return
	}
	p.update(jobID, map[string]any{"audio_object_key": key})
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath string, log *logger.Logger) ([]types.Segment, error) {
	chunks, err := p.media.SplitAudio(ctx, audioPath, p.cfg.MaxAudioChunkSeconds, p.cfg.AudioOverlapSeconds)
	if err != nil {
		return nil, fmt.Errorf("split audio: %w", err)
	}
	log.Info("Transcribing audio chunks", "chunks", len(chunks))

	results, errs := fanOut(ctx, chunks, int64(p.cfg.MaxConcurrentTranscribes),
		func(ctx context.Context, idx int, chunk services.AudioChunk) ([]types.Segment, error) {
			return p.ai.TranscribeChunk(ctx, chunk)
		})

	var all []types.Segment
	var failed int
	for i, segs := range results {
		if errs[i] != nil {
			failed++
			log.Warn("Chunk transcription failed", "chunk", i, "error", errs[i])
			continue
		}
		all = append(all, segs...)
	}
	for _, chunk := range chunks {
		os.Remove(chunk.Path)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("transcription produced no segments (%d/%d chunks failed)", failed, len(chunks))
	}
	return reconcile.DeduplicateSegments(all), nil
}

// gatekeep evaluates coarse frames concurrently and keeps the useful ones in
// timestamp order.
func (p *Pipeline) gatekeep(ctx context.Context, coarse []services.SampledFrame, log *logger.Logger) []services.SampledFrame {
	verdicts, errs := fanOut(ctx, coarse, int64(p.cfg.MaxConcurrentVisionTasks),
		func(ctx context.Context, idx int, frame services.SampledFrame) (services.GateResult, error) {
			return p.ai.EvaluateFrame(ctx, frame.Path), nil
		})

	var useful []services.SampledFrame
	for i, frame := range coarse {
		if errs[i] != nil {
			continue
		}
		if verdicts[i].IsUseful {
			useful = append(useful, frame)
		} else {
			log.Debug("Gatekeeper dropped frame", "timestamp_s", frame.TimestampS, "category", verdicts[i].Category)
		}
	}
	return useful
}

// uploadHeroes pushes each hero frame to Drive concurrently. The result is
// positional with visuals: a failed upload leaves an empty BlobURL, never a
// shifted index.
func (p *Pipeline) uploadHeroes(ctx context.Context, jobID uuid.UUID, visuals []services.VisualSubTopic, log *logger.Logger) []types.HeroFrame {
	folderID := p.cfg.DriveFolderID
	if created, err := p.drive.CreateFolder(ctx, fmt.Sprintf("video_%s_frames", jobID), p.cfg.DriveFolderID); err == nil {
		folderID = created
		p.update(jobID, map[string]any{"drive_folder_id": folderID})
	} else {
		log.Warn("Could not create Drive folder, using parent", "error", err)
	}

	heroes, _ := fanOut(ctx, visuals, int64(p.cfg.MaxConcurrentUploads),
		func(ctx context.Context, idx int, v services.VisualSubTopic) (types.HeroFrame, error) {
			hero := types.HeroFrame{
				TimestampS:  v.TimestampS,
				LocalPath:   v.HeroFramePath,
				Description: v.Title,
				OCRText:     strings.Join(v.OCRKeywords, " "),
				Kind:        "slide",
			}
			if _, err := os.Stat(v.HeroFramePath); err != nil {
				log.Warn("Hero frame missing on disk", "path", v.HeroFramePath)
				return hero, nil
			}
			name := fmt.Sprintf("hero_%02d_%ds.jpg", idx, int(v.TimestampS))
			fileID, err := p.drive.UploadFile(ctx, v.HeroFramePath, name, folderID)
			if err != nil {
				log.Warn("Hero frame upload failed", "path", v.HeroFramePath, "error", err)
				return hero, nil
			}
			hero.BlobURL = p.drive.ThumbnailURL(fileID)
			return hero, nil
		})
	return heroes
}

func (p *Pipeline) setStatus(jobID uuid.UUID, status string, progress float64, message string) {
	p.update(jobID, map[string]any{"status": status, "progress": progress})
	p.appendLog(jobID, message)
}

func (p *Pipeline) setProgress(jobID uuid.UUID, progress float64, message string) {
	p.update(jobID, map[string]any{"progress": progress})
	p.appendLog(jobID, message)
}

func (p *Pipeline) update(jobID uuid.UUID, fields map[string]any) {
	if err := p.jobs.UpdateFields(nil, jobID, fields); err != nil {
		p.log.Warn("Job update failed", "job_id", jobID.String(), "error", err)
	}
}

func (p *Pipeline) appendLog(jobID uuid.UUID, message string) {
	if err := p.jobs.AppendProgress(nil, jobID, message); err != nil {
		p.log.Warn("Progress append failed", "job_id", jobID.String(), "error", err)
	}
}

// cleanup removes the working video and frame directory. The extracted audio
// stays on disk for the download endpoint.
func (p *Pipeline) cleanup(jobID uuid.UUID, videoPath string) {
	if videoPath != "" {
		if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
			p.log.Warn("Could not remove video", "path", videoPath, "error", err)
		}
	}
	framesDir := filepath.Join(p.cfg.TempDir, jobID.String()+"_frames")
	if err := os.RemoveAll(framesDir); err != nil {
		p.log.Warn("Could not remove frames dir", "path", framesDir, "error", err)
	}
	sourceDir := filepath.Join(p.cfg.TempDir, jobID.String()+"_source")
	os.RemoveAll(sourceDir)
}

// publishedHeroes drops frames whose upload never produced a URL, preserving
// order. The positional pairing with visuals is already consumed by then.
func publishedHeroes(heroes []types.HeroFrame) []types.HeroFrame {
	out := make([]types.HeroFrame, 0, len(heroes))
	for _, h := range heroes {
		if h.BlobURL != "" {
			out = append(out, h)
		}
	}
	return out
}

func joinTranscript(segments []types.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

func cuesFromAudio(scout []services.VisualCue, analyzed []services.VisualCue) []roi.Cue {
	cues := make([]roi.Cue, 0, len(scout)+len(analyzed))
	for _, c := range scout {
		cues = append(cues, roi.Cue{Timestamp: c.TimestampS})
	}
	for _, c := range analyzed {
		cues = append(cues, roi.Cue{Timestamp: c.TimestampS})
	}
	return cues
}

func cuesFromFrames(frames []services.SampledFrame) []roi.Cue {
	cues := make([]roi.Cue, 0, len(frames))
	for _, f := range frames {
		cues = append(cues, roi.Cue{Timestamp: f.TimestampS})
	}
	return cues
}

// combineFrames merges the coarse survivors with the dense pass, deduping by
// whole second. Dense frames win a collision; they are the targeted sample.
func combineFrames(useful, dense []services.SampledFrame) []imaging.Frame {
	bySecond := make(map[int]services.SampledFrame, len(useful)+len(dense))
	for _, f := range useful {
		bySecond[int(f.TimestampS)] = f
	}
	for _, f := range dense {
		bySecond[int(f.TimestampS)] = f
	}

	frames := make([]imaging.Frame, 0, len(bySecond))
	for _, f := range bySecond {
		frames = append(frames, imaging.Frame{Path: f.Path, TimestampS: f.TimestampS})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].TimestampS < frames[j].TimestampS })
	return frames
}

func clusterInputs(clusters []imaging.Cluster) []services.ClusterInput {
	inputs := make([]services.ClusterInput, 0, len(clusters))
	for _, c := range clusters {
		in := services.ClusterInput{
			StartS:     c.StartS,
			EndS:       c.EndS,
			FrameCount: c.FrameCount,
		}
		for _, cand := range c.Candidates {
			in.Candidates = append(in.Candidates, services.CandidateFrame{
				Path:       cand.Path,
				TimestampS: cand.TimestampS,
			})
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
