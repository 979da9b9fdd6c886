package testutils

import (
	"time"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// NewTestRecordID creates a RecordID with a random key in table.
func NewTestRecordID(table string) *surrealmodels.RecordID {
	id := surrealmodels.NewRecordID(table, uuid.NewString())
	return &id
}

// NewTestDateTime wraps t the way the driver decodes datetimes.
func NewTestDateTime(t time.Time) *surrealmodels.CustomDateTime {
	return &surrealmodels.CustomDateTime{Time: t}
}
