package repository

import (
	"context"

	"github.com/timmy/vidnotes/internal/domain"
	"gorm.io/gorm"
)

// ExportRepository records note exports.
type ExportRepository struct {
	db *gorm.DB
}

// NewExportRepository creates a new ExportRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ExportRepository: repository instance bound to db.
func NewExportRepository(db *gorm.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a new export record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: export record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ExportRepository) Create(ctx context.Context, record *domain.ExportRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByJob returns the exports of a job, newest first.
func (r *ExportRepository) ListByJob(ctx context.Context, jobID string) ([]domain.ExportRecord, error) {
	var records []domain.ExportRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// Count returns the number of recorded exports.
func (r *ExportRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ExportRecord{}).Count(&count).Error
	return count, err
}
