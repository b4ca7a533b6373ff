package repos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/types"
)

type PlaylistRepo interface {
	Create(tx *gorm.DB, p *types.Playlist) error
	GetByID(tx *gorm.DB, id uuid.UUID) (*types.Playlist, error)
	UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	List(tx *gorm.DB, userID string, page, limit int) ([]types.Playlist, int64, error)
	Delete(tx *gorm.DB, id uuid.UUID) error
}

type playlistRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlaylistRepo(db *gorm.DB, log *logger.Logger) PlaylistRepo {
	return &playlistRepo{db: db, log: log.With("repo", "playlist")}
}

func (r *playlistRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *playlistRepo) Create(tx *gorm.DB, p *types.Playlist) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = types.PlaylistStatusPending
	}
	if err := r.conn(tx).Create(p).Error; err != nil {
		return fmt.Errorf("create playlist: %w", err)
	}
	return nil
}

func (r *playlistRepo) GetByID(tx *gorm.DB, id uuid.UUID) (*types.Playlist, error) {
	var p types.Playlist
	if err := r.conn(tx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *playlistRepo) UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := r.conn(tx).Model(&types.Playlist{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update playlist %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *playlistRepo) List(tx *gorm.DB, userID string, page, limit int) ([]types.Playlist, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := r.conn(tx).Model(&types.Playlist{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var playlists []types.Playlist
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&playlists).Error; err != nil {
		return nil, 0, err
	}
	return playlists, total, nil
}

func (r *playlistRepo) Delete(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&types.Playlist{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
