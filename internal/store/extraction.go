package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx so inserts can be shared
// between direct writes and batch commits.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, archived, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.Archived, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, archived, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.Archived, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, hash, archived, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.Archived, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Declaration operations ---

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	return insertDeclaration(s.db, d)
}

func insertDeclaration(ex execer, d *Declaration) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO declarations (file_id, kind, name, simple_name, package, owner_id,
			class_kind, type_expr, params, modifiers, archived, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Kind, d.Name, d.SimpleName, d.Package, d.OwnerID,
		d.ClassKind, d.TypeExpr, marshalStrings(d.Params), marshalStrings(d.Modifiers), d.Archived, d.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert declaration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

const declarationColumns = `id, file_id, kind, name, simple_name, package, owner_id,
	class_kind, type_expr, params, modifiers, archived, line`

func scanDeclaration(row interface{ Scan(...any) error }) (*Declaration, error) {
	d := &Declaration{}
	var fileID, ownerID sql.NullInt64
	var simpleName, pkg, classKind, typeExpr, params, mods sql.NullString
	var line sql.NullInt64
	if err := row.Scan(&d.ID, &fileID, &d.Kind, &d.Name, &simpleName, &pkg, &ownerID,
		&classKind, &typeExpr, &params, &mods, &d.Archived, &line); err != nil {
		return nil, err
	}
	if fileID.Valid {
		d.FileID = &fileID.Int64
	}
	if ownerID.Valid {
		d.OwnerID = &ownerID.Int64
	}
	d.SimpleName = simpleName.String
	d.Package = pkg.String
	d.ClassKind = classKind.String
	d.TypeExpr = typeExpr.String
	d.Params = unmarshalStrings(params.String)
	d.Modifiers = unmarshalStrings(mods.String)
	d.Line = int(line.Int64)
	return d, nil
}

// Declarations returns every declaration ordered by ID.
func (s *Store) Declarations() ([]*Declaration, error) {
	rows, err := s.db.Query("SELECT " + declarationColumns + " FROM declarations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("declarations: %w", err)
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

// DeclarationByName resolves a declaration by kind and qualified name.
// Returns nil with no error when it does not exist.
func (s *Store) DeclarationByName(kind, name string) (*Declaration, error) {
	d, err := scanDeclaration(s.db.QueryRow(
		"SELECT "+declarationColumns+" FROM declarations WHERE kind = ? AND name = ?", kind, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declaration by name: %w", err)
	}
	return d, nil
}

// DeclarationsByFile returns the declarations extracted from one file.
func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	rows, err := s.db.Query("SELECT "+declarationColumns+" FROM declarations WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("declarations by file: %w", err)
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

// --- Supertype operations ---

func (s *Store) InsertSupertype(st *Supertype) (int64, error) {
	return insertSupertype(s.db, st)
}

func insertSupertype(ex execer, st *Supertype) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO supertypes (class_id, name, relation, ordinal) VALUES (?, ?, ?, ?)",
		st.ClassID, st.Name, st.Relation, st.Ordinal,
	)
	if err != nil {
		return 0, fmt.Errorf("insert supertype: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	st.ID = id
	return id, nil
}

// Supertypes returns all supertype edges ordered by class then ordinal.
func (s *Store) Supertypes() ([]*Supertype, error) {
	rows, err := s.db.Query("SELECT id, class_id, name, relation, ordinal FROM supertypes ORDER BY class_id, ordinal, id")
	if err != nil {
		return nil, fmt.Errorf("supertypes: %w", err)
	}
	defer rows.Close()
	var out []*Supertype
	for rows.Next() {
		st := &Supertype{}
		if err := rows.Scan(&st.ID, &st.ClassID, &st.Name, &st.Relation, &st.Ordinal); err != nil {
			return nil, fmt.Errorf("scan supertype: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// --- Annotation operations ---

func (s *Store) InsertAnnotation(ann *Annotation) (int64, error) {
	return insertAnnotation(s.db, ann)
}

func insertAnnotation(ex execer, ann *Annotation) (int64, error) {
	attrs, err := marshalAttributes(ann.Attributes)
	if err != nil {
		return 0, fmt.Errorf("insert annotation: attributes: %w", err)
	}
	res, err := ex.Exec(
		"INSERT INTO annotations (target_id, name, attributes, ordinal) VALUES (?, ?, ?, ?)",
		ann.TargetID, ann.Name, attrs, ann.Ordinal,
	)
	if err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ann.ID = id
	return id, nil
}

// Annotations returns all native annotations ordered by target then ordinal.
func (s *Store) Annotations() ([]*Annotation, error) {
	rows, err := s.db.Query("SELECT id, target_id, name, attributes, ordinal FROM annotations ORDER BY target_id, ordinal, id")
	if err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}
	defer rows.Close()
	var out []*Annotation
	for rows.Next() {
		a := &Annotation{}
		var attrs sql.NullString
		if err := rows.Scan(&a.ID, &a.TargetID, &a.Name, &attrs, &a.Ordinal); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Attributes, err = unmarshalAttributes(attrs.String)
		if err != nil {
			return nil, fmt.Errorf("annotation %s attributes: %w", a.Name, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
