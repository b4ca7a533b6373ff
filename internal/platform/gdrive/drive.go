package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/videomind-backend/internal/logger"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Minimum gap between consecutive uploads from this client. Hero frames
// arrive in a burst; without spacing Drive starts throwing 403 rate errors.
const uploadSpacing = 500 * time.Millisecond

// Service wraps the Drive v3 API for the pipeline's three needs: pulling the
// source video, publishing hero frames, and grouping one job's artifacts in a
// folder.
type Service interface {
	ExtractFileID(driveURL string) (string, error)
	DownloadFile(ctx context.Context, fileID, destPath string) error
	GetFileName(ctx context.Context, fileID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, localPath, name, folderID string) (fileID string, err error)
	DeleteFile(ctx context.Context, fileID string) error
	ThumbnailURL(fileID string) string
	FileURL(fileID string) string
}

type service struct {
	log   *logger.Logger
	drive *drive.Service

	clientID     string
	clientSecret string
	refreshToken string

	maxRetries int

	paceMu     sync.Mutex
	nextUpload time.Time
}

func NewService(ctx context.Context, log *logger.Logger) (Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		log:          log.With("service", "DriveService"),
		clientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		clientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		refreshToken: strings.TrimSpace(os.Getenv("GOOGLE_REFRESH_TOKEN")),
		maxRetries:   5,
	}
	if err := s.authenticate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// authenticate builds a fresh Drive client. With a refresh token it uses the
// OAuth user flow (needed for My Drive folders); otherwise it falls back to
// application-default credentials.
func (s *service) authenticate(ctx context.Context) error {
	var opts []option.ClientOption
	if s.refreshToken != "" {
		if s.clientID == "" || s.clientSecret == "" {
			return fmt.Errorf("GOOGLE_REFRESH_TOKEN set but GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET missing")
		}
		conf := &oauth2.Config{
			ClientID:     s.clientID,
			ClientSecret: s.clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{drive.DriveScope},
		}
		ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken})
		opts = append(opts, option.WithTokenSource(ts))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("build drive client: %w", err)
	}
	s.drive = svc
	return nil
}

// ExtractFileID pulls the file ID out of the common Drive URL shapes. A bare
// ID passes through unchanged.
func (s *service) ExtractFileID(driveURL string) (string, error) {
	u := strings.TrimSpace(driveURL)
	if u == "" {
		return "", fmt.Errorf("empty drive url")
	}
	if !strings.Contains(u, "drive.google.com") {
		return u, nil
	}
	if i := strings.Index(u, "/file/d/"); i != -1 {
		rest := u[i+len("/file/d/"):]
		if j := strings.IndexAny(rest, "/?"); j != -1 {
			rest = rest[:j]
		}
		if rest != "" {
			return rest, nil
		}
	}
	if i := strings.Index(u, "id="); i != -1 {
		rest := u[i+len("id="):]
		if j := strings.IndexByte(rest, '&'); j != -1 {
			rest = rest[:j]
		}
		if rest != "" {
			return rest, nil
		}
	}
	return "", fmt.Errorf("unrecognized drive url format: %s", u)
}

func (s *service) DownloadFile(ctx context.Context, fileID, destPath string) error {
	resp, err := s.drive.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

func (s *service) GetFileName(ctx context.Context, fileID string) (string, error) {
	f, err := s.drive.Files.Get(fileID).Fields("name").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("file metadata %s: %w", fileID, err)
	}
	return f.Name, nil
}

func (s *service) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := s.drive.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return f.Id, nil
}

// UploadFile uploads with exponential backoff plus jitter; on a credential
// error it rebuilds the client before the next attempt. The uploaded file is
// made world-readable so thumbnail links work without auth.
func (s *service) UploadFile(ctx context.Context, localPath, name, folderID string) (string, error) {
	if name == "" {
		name = strings.TrimSpace(localPath[strings.LastIndexByte(localPath, '/')+1:])
	}
	meta := &drive.File{Name: name}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	if err := s.pace(ctx); err != nil {
		return "", err
	}

	baseDelay := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		fileID, err := s.uploadOnce(ctx, meta, localPath)
		if err == nil {
			s.publicize(ctx, fileID)
			return fileID, nil
		}
		lastErr = err
		if attempt == s.maxRetries-1 {
			break
		}

		delay := baseDelay*(1<<attempt) + time.Duration(rand.Float64()*float64(time.Second))
		s.log.Warn("Drive upload retrying",
			"file", name,
			"attempt", attempt+1,
			"max_retries", s.maxRetries,
			"sleep", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		if isAuthError(err) {
			s.log.Info("Refreshing Drive credentials")
			if aErr := s.authenticate(ctx); aErr != nil {
				s.log.Warn("Drive re-auth failed", "error", aErr)
			}
		}
	}
	return "", fmt.Errorf("upload %q failed after %d attempts: %w", name, s.maxRetries, lastErr)
}

// pace reserves the next upload slot and sleeps until it arrives. Concurrent
// callers each get their own slot, so uploads stay at least uploadSpacing
// apart no matter how wide the upload pool is.
func (s *service) pace(ctx context.Context) error {
	s.paceMu.Lock()
	slot := s.nextUpload
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	s.nextUpload = slot.Add(uploadSpacing)
	s.paceMu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (s *service) uploadOnce(ctx context.Context, meta *drive.File, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	created, err := s.drive.Files.Create(meta).
		Media(f).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// publicize is best-effort: a frame that stays private degrades the report
// but should not fail the upload.
func (s *service) publicize(ctx context.Context, fileID string) {
	_, err := s.drive.Permissions.Create(fileID, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		s.log.Warn("Failed to set public permission", "file_id", fileID, "error", err)
	}
}

func (s *service) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.drive.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}

func (s *service) ThumbnailURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=w800", fileID)
}

func (s *service) FileURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", fileID)
}

func isAuthError(err error) bool {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code == http.StatusUnauthorized || ge.Code == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "unauthorized")
}
