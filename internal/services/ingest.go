package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/platform/gdrive"
)

const (
	youtubeInfoTimeout     = 60 * time.Second
	youtubeDownloadTimeout = 30 * time.Minute
	driveDownloadTimeout   = 30 * time.Minute
)

// Format selectors tried in order. Progressive MP4 first; HLS last because
// fragmented downloads fail more often.
var youtubeFormatSelectors = []string{
	"best[ext=mp4]/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"best[protocol!=m3u8_native][ext=mp4]/best[protocol!=m3u8_native]",
	"best",
}

var youtubeIDRes = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([a-zA-Z0-9_-]{11})`),
}

var bareYouTubeIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoInfo is the metadata yt-dlp reports without downloading.
type VideoInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
}

// PlaylistEntry is one video of a playlist listing.
type PlaylistEntry struct {
	VideoID  string
	VideoURL string
	Title    string
	Duration float64
	Order    int
}

// PlaylistInfo is a flat playlist listing.
type PlaylistInfo struct {
	Title   string
	Channel string
	Videos  []PlaylistEntry
}

// IngestService fetches source video files onto local disk, from YouTube,
// Google Drive, or a client upload stream.
type IngestService interface {
	ExtractYouTubeID(url string) (string, error)
	YouTubeInfo(ctx context.Context, url string) (VideoInfo, error)
	YouTubePlaylistInfo(ctx context.Context, url string) (PlaylistInfo, error)
	DownloadYouTube(ctx context.Context, url, outputPath string) (string, error)
	DownloadDrive(ctx context.Context, driveURL, destDir string) (path string, name string, err error)
	SaveUpload(src io.Reader, destPath string) (string, error)
}

type ingestService struct {
	log     *logger.Logger
	drive   gdrive.Service
	ytdlp   string
	cookies string
	proxy   string
}

func NewIngestService(drive gdrive.Service, log *logger.Logger) IngestService {
	bin := os.Getenv("YT_DLP_PATH")
	if bin == "" {
		bin = "yt-dlp"
	}
	return &ingestService{
		log:     log.With("service", "IngestService"),
		drive:   drive,
		ytdlp:   bin,
		cookies: resolveCookiesPath(os.Getenv("YOUTUBE_COOKIES_PATH")),
		proxy:   os.Getenv("PROXY_URL"),
	}
}

// resolveCookiesPath tries the configured path as-is, then relative to the
// working directory. Empty means no cookies.
func resolveCookiesPath(configured string) string {
	if configured == "" {
		return ""
	}
	candidates := []string{configured}
	if !filepath.IsAbs(configured) {
		if abs, err := filepath.Abs(configured); err == nil {
			candidates = append(candidates, abs)
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func (s *ingestService) ExtractYouTubeID(url string) (string, error) {
	for _, re := range youtubeIDRes {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	if bareYouTubeIDRe.MatchString(url) {
		return url, nil
	}
	return "", fmt.Errorf("invalid YouTube URL format: %s", url)
}

func (s *ingestService) commonArgs() []string {
	args := []string{"--quiet", "--no-warnings"}
	if s.proxy != "" {
		args = append(args, "--proxy", s.proxy)
	}
	if s.cookies != "" {
		args = append(args, "--cookies", s.cookies)
	}
	return args
}

func (s *ingestService) YouTubeInfo(ctx context.Context, url string) (VideoInfo, error) {
	id, err := s.ExtractYouTubeID(url)
	if err != nil {
		return VideoInfo{}, err
	}
	watchURL := "https://www.youtube.com/watch?v=" + id

	ctx, cancel := context.WithTimeout(ctx, youtubeInfoTimeout)
	defer cancel()

	args := append(s.commonArgs(), "--skip-download", "--dump-json", watchURL)
	out, err := exec.CommandContext(ctx, s.ytdlp, args...).Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("fetch video info: %w", err)
	}

	var info VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return VideoInfo{}, fmt.Errorf("parse video info: %w", err)
	}
	if info.Title == "" {
		info.Title = "Untitled Video"
	}
	return info, nil
}

func (s *ingestService) YouTubePlaylistInfo(ctx context.Context, url string) (PlaylistInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, youtubeInfoTimeout)
	defer cancel()

	args := append(s.commonArgs(), "--skip-download", "--flat-playlist", "--dump-single-json", url)
	out, err := exec.CommandContext(ctx, s.ytdlp, args...).Output()
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("fetch playlist info: %w", err)
	}
	return parsePlaylistDump(out)
}

func parsePlaylistDump(raw []byte) (PlaylistInfo, error) {
	var dump struct {
		Title    string `json:"title"`
		Uploader string `json:"uploader"`
		Channel  string `json:"channel"`
		Entries  []struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Duration float64 `json:"duration"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(raw, &dump); err != nil {
		return PlaylistInfo{}, fmt.Errorf("parse playlist info: %w", err)
	}

	info := PlaylistInfo{Title: dump.Title, Channel: dump.Uploader}
	if info.Title == "" {
		info.Title = "Untitled Playlist"
	}
	if info.Channel == "" {
		info.Channel = dump.Channel
	}
	for i, e := range dump.Entries {
		if e.ID == "" {
			continue
		}
		title := e.Title
		if title == "" {
			title = fmt.Sprintf("Video %d", i+1)
		}
		info.Videos = append(info.Videos, PlaylistEntry{
			VideoID:  e.ID,
			VideoURL: "https://www.youtube.com/watch?v=" + e.ID,
			Title:    title,
			Duration: e.Duration,
			Order:    i,
		})
	}
	return info, nil
}

// DownloadYouTube fetches the video to outputPath, cycling through format
// selectors until one yields a non-empty file. yt-dlp chooses the container,
// so the result is renamed to outputPath whatever extension it lands with.
func (s *ingestService) DownloadYouTube(ctx context.Context, url, outputPath string) (string, error) {
	id, err := s.ExtractYouTubeID(url)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(url, "http") {
		url = "https://www.youtube.com/watch?v=" + id
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))

	ctx, cancel := context.WithTimeout(ctx, youtubeDownloadTimeout)
	defer cancel()

	var lastErr error
	for attempt, selector := range youtubeFormatSelectors {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.log.Info("Downloading YouTube video", "video_id", id, "attempt", attempt+1)

		args := append(s.commonArgs(),
			"--format", selector,
			"--output", base+".%(ext)s",
			"--retries", "3",
			"--fragment-retries", "3",
			url,
		)
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, s.ytdlp, args...)
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("%w: %s", err, tail(stderr.String(), 400))
			s.log.Warn("YouTube download attempt failed", "attempt", attempt+1, "error", lastErr)
			continue
		}

		if path, ok := findDownloadedFile(base, outputPath); ok {
			return path, nil
		}
		lastErr = fmt.Errorf("downloaded file is empty or missing")
		s.log.Warn("YouTube download produced no file", "attempt", attempt+1)
	}

	cleanupEmptyDownloads(base)
	return "", fmt.Errorf("download YouTube video after %d attempts: %w", len(youtubeFormatSelectors), lastErr)
}

var downloadExtensions = []string{".mp4", ".webm", ".mkv", ".flv", ".m4a"}

func findDownloadedFile(base, outputPath string) (string, bool) {
	for _, ext := range downloadExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && info.Size() > 0 {
			if candidate != outputPath {
				if err := os.Rename(candidate, outputPath); err != nil {
					return candidate, true
				}
			}
			return outputPath, true
		}
	}
	if info, err := os.Stat(outputPath); err == nil && info.Size() > 0 {
		return outputPath, true
	}
	return "", false
}

func cleanupEmptyDownloads(base string) {
	for _, ext := range downloadExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && info.Size() == 0 {
			os.Remove(candidate)
		}
	}
}

func (s *ingestService) DownloadDrive(ctx context.Context, driveURL, destDir string) (string, string, error) {
	fileID, err := s.drive.ExtractFileID(driveURL)
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(ctx, driveDownloadTimeout)
	defer cancel()

	name, err := s.drive.GetFileName(ctx, fileID)
	if err != nil {
		s.log.Warn("Could not fetch Drive file name", "file_id", fileID, "error", err)
		name = "video.mp4"
	}

	destPath := filepath.Join(destDir, "source"+filepath.Ext(name))
	if filepath.Ext(name) == "" {
		destPath = filepath.Join(destDir, "source.mp4")
	}
	if err := s.drive.DownloadFile(ctx, fileID, destPath); err != nil {
		return "", "", fmt.Errorf("download from Drive: %w", err)
	}
	return destPath, name, nil
}

func (s *ingestService) SaveUpload(src io.Reader, destPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		os.Remove(destPath)
		return "", fmt.Errorf("uploaded file is empty")
	}
	return destPath, nil
}
