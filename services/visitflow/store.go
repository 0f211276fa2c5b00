package visitflow

import (
	"errors"
	"fmt"
	"strings"

	"visitor-gate/models/visit"
	"visitor-gate/models/visitor"

	"gorm.io/gorm"
)

// Patch is the set of column changes a transition applies together with its
// status write. Values are written literally, except for the marker types
// below which the store turns into in-database arithmetic.
type Patch map[string]interface{}

// Increment adds Delta to an integer column inside the UPDATE itself, so
// concurrent writers never overwrite each other's increment with a value
// computed from a stale read.
type Increment struct {
	Delta int
}

// AddMinutes pushes a timestamp column forward inside the UPDATE, relative
// to the column's current value rather than a previously read one.
type AddMinutes struct {
	Minutes int
}

// Store owns atomicity for visit reads and writes. Concurrent transitions
// against the same visit are serialized by ConditionalUpdate: the expected
// pre-status is re-verified inside the same UPDATE that writes the new one.
type Store interface {
	LoadVisit(id string) (*visit.Visit, error)
	LoadVisitor(id string) (*visitor.Visitor, error)
	CreateVisit(v *visit.Visit) error
	// ConditionalUpdate applies patch iff the row still has expected status,
	// then returns the fresh row. Zero matched rows yields ErrNotFound or
	// ErrStoreConflict; a pass-number unique violation yields ErrDuplicatePass.
	ConditionalUpdate(id string, expected visit.Status, patch Patch) (*visit.Visit, error)
	// BulkCancelByVisitor moves every visit of the visitor whose status is in
	// from to CANCELLED, row by row, without cross-row atomicity.
	BulkCancelByVisitor(visitorID string, from []visit.Status) (int64, error)
}

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadVisit(id string) (*visit.Visit, error) {
	var v visit.Visit
	err := s.db.Preload("Visitor").Preload("HostEmployee").First(&v, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *GormStore) LoadVisitor(id string) (*visitor.Visitor, error) {
	var vt visitor.Visitor
	err := s.db.First(&vt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitorNotFound
		}
		return nil, err
	}
	return &vt, nil
}

func (s *GormStore) CreateVisit(v *visit.Visit) error {
	return s.db.Create(v).Error
}

func (s *GormStore) ConditionalUpdate(id string, expected visit.Status, patch Patch) (*visit.Visit, error) {
	cols := make(map[string]interface{}, len(patch))
	for col, val := range patch {
		switch x := val.(type) {
		case Increment:
			cols[col] = gorm.Expr(col+" + ?", x.Delta)
		case AddMinutes:
			cols[col] = gorm.Expr(col+" + ?::interval", fmt.Sprintf("%d minutes", x.Minutes))
		default:
			cols[col] = val
		}
	}

	res := s.db.Model(&visit.Visit{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(cols)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicatePass
		}
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Distinguish a missing row from a lost race.
		var count int64
		if err := s.db.Model(&visit.Visit{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStoreConflict
	}

	return s.LoadVisit(id)
}

func (s *GormStore) BulkCancelByVisitor(visitorID string, from []visit.Status) (int64, error) {
	res := s.db.Model(&visit.Visit{}).
		Where("visitor_id = ? AND status IN ?", visitorID, from).
		Update("status", visit.StatusCancelled)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Postgres unique_violation surfaces as SQLSTATE 23505.
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
