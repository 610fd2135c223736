package store

import "fmt"

// CommitBatch inserts all buffered rows of a Batch into SQLite within a
// single transaction. Fake (negative) IDs are remapped to real IDs and every
// reference inside the batch is rewritten through the fakeToReal mapping.
//
// Declarations are inserted in buffer order, which the extractor guarantees
// is owner-before-member, so owner IDs are always mapped by the time a
// member needs them.
func (s *Store) CommitBatch(batch *Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		mapped, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("unmapped batch id %d", id)
		}
		return mapped, nil
	}

	for _, d := range batch.Declarations {
		fakeID := d.ID
		if d.OwnerID != nil {
			owner, err := remap(*d.OwnerID)
			if err != nil {
				return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
			}
			d.OwnerID = &owner
		}
		realID, err := insertDeclaration(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		fakeToReal[fakeID] = realID
	}

	for _, st := range batch.Supertypes {
		classID, err := remap(st.ClassID)
		if err != nil {
			return fmt.Errorf("commit batch: supertype %q: %w", st.Name, err)
		}
		st.ClassID = classID
		if _, err := insertSupertype(tx, &st); err != nil {
			return fmt.Errorf("commit batch: supertype %q: %w", st.Name, err)
		}
	}

	for _, ann := range batch.Annotations {
		targetID, err := remap(ann.TargetID)
		if err != nil {
			return fmt.Errorf("commit batch: annotation %q: %w", ann.Name, err)
		}
		ann.TargetID = targetID
		if _, err := insertAnnotation(tx, &ann); err != nil {
			return fmt.Errorf("commit batch: annotation %q: %w", ann.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}
