package ledger

import (
	"errors"
	"fmt"

	"github.com/ferrovax/voicebridge/internal/models"

	"gorm.io/gorm"
)

// DefaultRecentLimit caps how many records a history query returns when
// the caller does not ask for a specific limit.
const DefaultRecentLimit = 10

// Ledger records call attempts and their terminal status. It is append
// only: records are created when a call is requested and later mutated
// (status only) when the call ends, never deleted.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateRecord appends a record for a call attempt from caller to callee.
// IDs are strictly increasing and the creation timestamp is assigned here.
func (l *Ledger) CreateRecord(caller, callee string) (*models.CallRecord, error) {
	record := &models.CallRecord{
		CallerID: caller,
		CalleeID: callee,
		Duration: 0,
		Status:   models.CallStatusInitiated,
	}
	if err := l.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("create call record: %w", err)
	}
	return record, nil
}

// RecentCalls returns the records where identity is caller or callee,
// most recent first. limit <= 0 means DefaultRecentLimit.
func (l *Ledger) RecentCalls(identity string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var records []models.CallRecord
	err := l.db.
		Where("caller_id = ? OR callee_id = ?", identity, identity).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query calls for %s: %w", identity, err)
	}
	return records, nil
}

// MarkStatus overwrites the status of the most recent record between the
// two identities, matching either caller/callee order. Missing record is
// a no-op, not an error: the peer may have ended a call the ledger never
// saw the start of.
func (l *Ledger) MarkStatus(identityA, identityB, status string) error {
	var record models.CallRecord
	err := l.db.
		Where("(caller_id = ? AND callee_id = ?) OR (caller_id = ? AND callee_id = ?)",
			identityA, identityB, identityB, identityA).
		Order("created_at DESC").
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find call between %s and %s: %w", identityA, identityB, err)
	}

	if err := l.db.Model(&record).Update("status", status).Error; err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return nil
}
