package store

import "sync"

// Batch buffers one file's extraction output in memory using fake (negative)
// IDs so parsers can run in parallel and commit serially.
type Batch struct {
	mu sync.Mutex

	Declarations []Declaration
	Supertypes   []Supertype
	Annotations  []Annotation

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *Batch satisfies DataStore.
var _ DataStore = (*Batch)(nil)

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{nextFakeID: -1}
}

func (b *Batch) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *Batch) InsertDeclaration(d *Declaration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Declarations = append(b.Declarations, *d)
	return fakeID, nil
}

func (b *Batch) InsertSupertype(st *Supertype) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	st.ID = fakeID
	b.Supertypes = append(b.Supertypes, *st)
	return fakeID, nil
}

func (b *Batch) InsertAnnotation(ann *Annotation) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ann.ID = fakeID
	b.Annotations = append(b.Annotations, *ann)
	return fakeID, nil
}

// Len reports how many rows the batch holds.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Declarations) + len(b.Supertypes) + len(b.Annotations)
}
