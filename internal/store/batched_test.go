package store

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_AssignsNegativeIDs(t *testing.T) {
	t.Parallel()
	batch := NewBatch()

	id1, err := batch.InsertDeclaration(&Declaration{Kind: KindClass, Name: "a.A"})
	require.NoError(t, err)
	id2, err := batch.InsertDeclaration(&Declaration{Kind: KindClass, Name: "a.B"})
	require.NoError(t, err)

	assert.Equal(t, int64(-1), id1)
	assert.Equal(t, int64(-2), id2)
	assert.Equal(t, 2, batch.Len())
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/A.java")

	batch := NewBatch()
	classID, err := batch.InsertDeclaration(&Declaration{FileID: &f.ID, Kind: KindClass, Name: "a.A", Archived: true})
	require.NoError(t, err)
	_, err = batch.InsertDeclaration(&Declaration{FileID: &f.ID, Kind: KindMethod, Name: "a.A#run()", OwnerID: ptr(classID)})
	require.NoError(t, err)
	_, err = batch.InsertSupertype(&Supertype{ClassID: classID, Name: "a.Base", Relation: RelationExtends})
	require.NoError(t, err)
	_, err = batch.InsertAnnotation(&Annotation{TargetID: classID, Name: "a.Marker"})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	class, err := s.DeclarationByName(KindClass, "a.A")
	require.NoError(t, err)
	require.NotNil(t, class)
	assert.Positive(t, class.ID)

	method, err := s.DeclarationByName(KindMethod, "a.A#run()")
	require.NoError(t, err)
	require.NotNil(t, method)
	require.NotNil(t, method.OwnerID)
	assert.Equal(t, class.ID, *method.OwnerID)

	sts, err := s.Supertypes()
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, class.ID, sts[0].ClassID)

	anns, err := s.Annotations()
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, class.ID, anns[0].TargetID)
}

func TestCommitBatch_UnmappedOwnerRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatch()
	_, err := batch.InsertDeclaration(&Declaration{Kind: KindClass, Name: "a.A"})
	require.NoError(t, err)
	_, err = batch.InsertDeclaration(&Declaration{Kind: KindField, Name: "a.A#x", OwnerID: ptr(int64(-42))})
	require.NoError(t, err)

	err = s.CommitBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmapped batch id -42")

	decls, err := s.Declarations()
	require.NoError(t, err)
	assert.Empty(t, decls, "failed commit must not leave partial rows")
}

func TestCommitBatch_BeginFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewStoreFromDB(db)
	t.Cleanup(func() { s.Close() })

	mock.ExpectBegin().WillReturnError(errors.New("disk full"))

	err = s.CommitBatch(NewBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit batch: begin")
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_InsertFailureRollsBack(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewStoreFromDB(db)
	t.Cleanup(func() { s.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err = s.SaveRun(&Run{ID: "r"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save run: insert run")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMetadata_QueryFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewStoreFromDB(db)
	t.Cleanup(func() { s.Close() })

	mock.ExpectQuery("SELECT value FROM metadata").WithArgs("k").WillReturnError(errors.New("boom"))

	_, err = s.GetMetadata("k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get metadata k")
	require.NoError(t, mock.ExpectationsWereMet())
}
