package common

import (
	"time"

	"github.com/guregu/null/v5"
)

// Transfer statuses.
const (
	TransferStored = "stored"
	TransferFailed = "failed"
)

// Transfer is one ingested byte stream: what came in, where it went, and the
// artifacts the fan-out branches produced.
type Transfer struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	Source        string      `gorm:"size:255;index" json:"source"`
	SizeBytes     int64       `json:"size_bytes"`
	Checksum      null.String `gorm:"size:64" json:"checksum"`
	Preview       []byte      `json:"preview,omitempty"`
	Archive       []byte      `gorm:"type:blob" json:"-"`
	Status        string      `gorm:"size:16;index" json:"status"`
	FailureReason null.String `gorm:"size:512" json:"failure_reason,omitempty"`
	CompletedAt   null.Time   `json:"completed_at"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (Transfer) TableName() string {
	return "transfers"
}

// TransferSummary is the listing shape streamed by GET /v1/transfers/stream;
// it leaves the blob columns behind.
type TransferSummary struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	SizeBytes int64       `json:"size_bytes"`
	Checksum  null.String `json:"checksum"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}
