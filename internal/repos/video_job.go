package repos

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/types"
)

type VideoJobRepo interface {
	Create(tx *gorm.DB, job *types.VideoJob) error
	GetByID(tx *gorm.DB, id uuid.UUID) (*types.VideoJob, error)
	UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	AppendProgress(tx *gorm.DB, id uuid.UUID, message string) error
	List(tx *gorm.DB, userID string, page, limit int, completedOnly bool) ([]types.VideoJob, int64, error)
	ListByPlaylist(tx *gorm.DB, playlistID uuid.UUID) ([]types.VideoJob, error)
	Delete(tx *gorm.DB, id uuid.UUID) error
}

type videoJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoJobRepo(db *gorm.DB, log *logger.Logger) VideoJobRepo {
	return &videoJobRepo{db: db, log: log.With("repo", "video_job")}
}

func (r *videoJobRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *videoJobRepo) Create(tx *gorm.DB, job *types.VideoJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	if err := r.conn(tx).Create(job).Error; err != nil {
		return fmt.Errorf("create video job: %w", err)
	}
	return nil
}

func (r *videoJobRepo) GetByID(tx *gorm.DB, id uuid.UUID) (*types.VideoJob, error) {
	var job types.VideoJob
	if err := r.conn(tx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *videoJobRepo) UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := r.conn(tx).Model(&types.VideoJob{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update video job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendProgress appends one log line and mirrors it into current_action in a
// single transaction, so concurrent readers never see the two out of sync.
func (r *videoJobRepo) AppendProgress(tx *gorm.DB, id uuid.UUID, message string) error {
	return r.conn(tx).Transaction(func(inner *gorm.DB) error {
		q := inner
		// sqlite (used in tests) has no row locks; its transactions already
		// serialize writers.
		if inner.Dialector.Name() == "postgres" {
			q = inner.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var job types.VideoJob
		if err := q.First(&job, "id = ?", id).Error; err != nil {
			return err
		}
		var entries []types.LogEntry
		if len(job.ProcessingLog) > 0 {
			if err := json.Unmarshal(job.ProcessingLog, &entries); err != nil {
				r.log.Warn("Resetting unreadable processing log", "job_id", id, "error", err)
				entries = nil
			}
		}
		entries = append(entries, types.LogEntry{Message: message, Time: time.Now().UTC()})
		raw, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal processing log: %w", err)
		}
		return inner.Model(&types.VideoJob{}).Where("id = ?", id).Updates(map[string]any{
			"processing_log": datatypes.JSON(raw),
			"current_action": message,
			"updated_at":     time.Now().UTC(),
		}).Error
	})
}

func (r *videoJobRepo) List(tx *gorm.DB, userID string, page, limit int, completedOnly bool) ([]types.VideoJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := r.conn(tx).Model(&types.VideoJob{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if completedOnly {
		q = q.Where("status = ?", types.JobStatusCompleted)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []types.VideoJob
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *videoJobRepo) ListByPlaylist(tx *gorm.DB, playlistID uuid.UUID) ([]types.VideoJob, error) {
	var jobs []types.VideoJob
	if err := r.conn(tx).Where("playlist_id = ?", playlistID).
		Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *videoJobRepo) Delete(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&types.VideoJob{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
