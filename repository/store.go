package repository

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document was modified concurrently")
	ErrDuplicate       = errors.New("document already exists")
)

// AnyVersion skips the version check on Patch. Use it only for counters and
// appends that do not depend on what was read.
const AnyVersion int64 = -1

// VersionField is bumped by every successful Patch.
const VersionField = "version"

const (
	CollectionTrucks        = "trucks"
	CollectionApprovals     = "approval_requests"
	CollectionWeightRecords = "weight_records"
	CollectionSettings      = "settings"
	CollectionUsers         = "app_user"
)

// UniqueIndexes lists the compound unique keys per collection. Every store
// enforces them on Create with ErrDuplicate.
var UniqueIndexes = map[string][][]string{
	CollectionWeightRecords: {{"truckId", "weightNumber"}},
	CollectionUsers:         {{"email"}},
}

// DocumentStore is the persistence contract shared by the Mongo, Postgres and
// in-memory backends. Field paths are dotted, using the documents' json/bson names.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string, out any) error
	Create(ctx context.Context, collection, id string, doc any) error
	Patch(ctx context.Context, collection, id string, expectedVersion int64, p Patch) error
	Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, out any) error
}
