package store

import (
	"database/sql"
	"fmt"
)

// SaveRun persists a finished run with its frozen annotation view and
// diagnostics in one transaction.
func (s *Store) SaveRun(run *Run, effective []EffectiveAnnotation, diags []DiagnosticRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO runs (id, started_at, finished_at, failed) VALUES (?, ?, ?, ?)",
		run.ID, run.StartedAt, run.FinishedAt, run.Failed,
	); err != nil {
		return fmt.Errorf("save run: insert run: %w", err)
	}

	for _, ea := range effective {
		attrs, err := marshalAttributes(ea.Attributes)
		if err != nil {
			return fmt.Errorf("save run: %s attributes: %w", ea.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO effective_annotations (run_id, target_name, target_kind, name, attributes, ordinal)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, ea.TargetName, ea.TargetKind, ea.Name, attrs, ea.Ordinal,
		); err != nil {
			return fmt.Errorf("save run: effective annotation: %w", err)
		}
	}

	for _, d := range diags {
		if _, err := tx.Exec(
			`INSERT INTO diagnostics (run_id, severity, phase, callback, target, message)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, d.Severity, d.Phase, d.Callback, d.Target, d.Message,
		); err != nil {
			return fmt.Errorf("save run: diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// LatestRun returns the most recently finished run, or nil when none exist.
func (s *Store) LatestRun() (*Run, error) {
	r := &Run{}
	err := s.db.QueryRow(
		"SELECT id, started_at, finished_at, failed FROM runs ORDER BY finished_at DESC LIMIT 1",
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// EffectiveAnnotations returns the frozen annotations a run recorded for a
// target, in their effective order.
func (s *Store) EffectiveAnnotations(runID, targetName string) ([]*EffectiveAnnotation, error) {
	rows, err := s.db.Query(
		`SELECT run_id, target_name, target_kind, name, attributes, ordinal
		 FROM effective_annotations WHERE run_id = ? AND target_name = ? ORDER BY ordinal, id`,
		runID, targetName,
	)
	if err != nil {
		return nil, fmt.Errorf("effective annotations: %w", err)
	}
	defer rows.Close()
	out := []*EffectiveAnnotation{}
	for rows.Next() {
		ea := &EffectiveAnnotation{}
		var attrs sql.NullString
		if err := rows.Scan(&ea.RunID, &ea.TargetName, &ea.TargetKind, &ea.Name, &attrs, &ea.Ordinal); err != nil {
			return nil, fmt.Errorf("scan effective annotation: %w", err)
		}
		ea.Attributes, err = unmarshalAttributes(attrs.String)
		if err != nil {
			return nil, fmt.Errorf("effective annotation %s attributes: %w", ea.Name, err)
		}
		out = append(out, ea)
	}
	return out, rows.Err()
}

// DiagnosticsByRun returns the diagnostics a run recorded, in emission order.
func (s *Store) DiagnosticsByRun(runID string) ([]*DiagnosticRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, severity, phase, callback, target, message
		 FROM diagnostics WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by run: %w", err)
	}
	defer rows.Close()
	out := []*DiagnosticRecord{}
	for rows.Next() {
		d := &DiagnosticRecord{}
		var phase, callback, target sql.NullString
		if err := rows.Scan(&d.RunID, &d.Severity, &phase, &callback, &target, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Phase, d.Callback, d.Target = phase.String, callback.String, target.String
		out = append(out, d)
	}
	return out, rows.Err()
}
