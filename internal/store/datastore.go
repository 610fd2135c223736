package store

// DataStore is the write surface the indexer needs. Both Store (direct
// SQLite) and Batch (in-memory buffering for parallel parsing) implement it.
type DataStore interface {
	InsertDeclaration(d *Declaration) (int64, error)
	InsertSupertype(st *Supertype) (int64, error)
	InsertAnnotation(ann *Annotation) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
