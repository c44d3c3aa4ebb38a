package domain

import "time"

// Lifecycle is embedded by entities that carry audit timestamps and a row version.
type Lifecycle struct {
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
	Version   int        `db:"version"`
}

func NewLifecycle(at time.Time) Lifecycle {
	return Lifecycle{
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (l Lifecycle) IsDeleted() bool {
	return l.DeletedAt != nil
}

// Touch bumps UpdatedAt and the version counter.
func (l *Lifecycle) Touch(at time.Time) {
	l.UpdatedAt = at
	l.Version++
}
