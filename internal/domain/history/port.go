package history

import (
	"context"
	"time"
)

// Repository port for persisting and querying scan records
type Repository interface {
	Insert(ctx context.Context, r *Record) error
	// List returns all records for a site, newest first.
	List(ctx context.Context, site string) ([]*Record, error)
	// Delete removes the given records and returns the report filenames of
	// those that were actually deleted, so artifacts can be purged.
	Delete(ctx context.Context, site string, ids []RecordID) ([]string, error)
	// OlderThan returns ids and report filenames of records before cutoff.
	OlderThan(ctx context.Context, site string, cutoff time.Time) ([]RecordID, error)
	// BeyondCap returns ids of records past the newest keep, oldest last.
	BeyondCap(ctx context.Context, site string, keep int) ([]RecordID, error)
}
