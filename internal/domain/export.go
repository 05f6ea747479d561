package domain

import "time"

// ExportRecord stores one successful note export to an external destination.
type ExportRecord struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	JobID       string    `gorm:"type:text;not null;index:idx_exports_job" json:"job_id"`
	Destination string    `gorm:"type:text;not null;default:notion" json:"destination"`
	PageID      string    `gorm:"type:text" json:"page_id"`
	PageURL     string    `gorm:"type:text" json:"page_url"`
	Title       string    `gorm:"type:text" json:"title"`
	BlockCount  int       `gorm:"default:0" json:"block_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ExportRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ExportRecord) TableName() string {
	return "note_exports"
}
