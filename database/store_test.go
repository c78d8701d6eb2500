package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbolis/caps-forms/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "store.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func draft(id string) model.Draft {
	return model.Draft{
		SchemaID: id,
		Title:    "CAPS",
		Revision: 1,
		Version:  1,
		Sections: []model.Section{{
			ID:    "details",
			Title: "Details",
			Fields: []model.Field{
				{ID: "MaternalAge", Label: "Maternal age", Type: model.TypeText, Required: true},
			},
		}},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedBy: "coordinator",
	}
}

func publish(t *testing.T, s *Store, d model.Draft) model.Draft {
	t.Helper()
	next, err := s.Publish(context.Background(), d, model.FormSchema{
		ID:          d.SchemaID,
		Title:       d.Title,
		Revision:    d.Revision,
		Sections:    d.Sections,
		PublishedAt: d.UpdatedAt.Add(time.Hour),
		PublishedBy: "coordinator",
	})
	require.NoError(t, err)
	return next
}

func TestDraftRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d := draft("s1")
	require.NoError(t, s.CreateSchema(ctx, d))

	got, err := s.LoadDraft(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, d.Sections, got.Sections)
	assert.Equal(t, 1, got.Version)
	assert.True(t, d.UpdatedAt.Equal(got.UpdatedAt))

	got.Title = "CAPS intake"
	saved, err := s.SaveDraft(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)

	_, err = s.LoadDraft(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStaleSaveIsAConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d := draft("s1")
	require.NoError(t, s.CreateSchema(ctx, d))
	_, err := s.SaveDraft(ctx, d)
	require.NoError(t, err)

	_, err = s.SaveDraft(ctx, d)
	var conflict *model.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "s1", conflict.SchemaID)

	_, err = s.Publish(ctx, d, model.FormSchema{ID: "s1", Revision: 1, Sections: d.Sections})
	assert.ErrorIs(t, err, model.ErrConflict)

	gone := draft("missing")
	_, err = s.SaveDraft(ctx, gone)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPublishAdvancesTheDraft(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d := draft("s1")
	require.NoError(t, s.CreateSchema(ctx, d))

	_, err := s.Revision(ctx, "s1", 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	d = publish(t, s, d)
	assert.Equal(t, 2, d.Revision)
	d = publish(t, s, d)
	assert.Equal(t, 3, d.Revision)

	stored, err := s.LoadDraft(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, d.Revision, stored.Revision)
	assert.Equal(t, d.Version, stored.Version)

	latest, err := s.Revision(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)
	assert.Equal(t, "coordinator", latest.PublishedBy)

	first, err := s.Revision(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, d.Sections, first.Sections)

	_, err = s.Revision(ctx, "s1", 3)
	assert.EqualError(t, err, `revision "3" not found`)
	_, err = s.Revision(ctx, "missing", 1)
	assert.EqualError(t, err, `schema "missing" not found`)

	revisions, err := s.Revisions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, 1, revisions[0].Revision)
	assert.Equal(t, 2, revisions[1].Revision)

	summaries, err := s.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].LatestRevision)
}

func TestResponsesAreAppendOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d := draft("s1")
	require.NoError(t, s.CreateSchema(ctx, d))
	publish(t, s, d)

	r := model.Response{
		ID:             "r1",
		SchemaID:       "s1",
		SchemaRevision: 1,
		Respondent:     "ward-7",
		SubmittedAt:    time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC),
		Answers: map[string]model.Answer{
			"MaternalAge": model.TextAnswer("34"),
			"Smoking":     model.UnknownAnswer(model.TypeSingleChoice),
		},
	}
	require.NoError(t, s.InsertResponse(ctx, r))

	got, err := s.Response(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Answers, got.Answers)
	assert.Equal(t, "ward-7", got.Respondent)

	_, err = s.db.ExecContext(ctx, `UPDATE response SET respondent = 'someone' WHERE id = 'r1'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.db.ExecContext(ctx, `UPDATE response_answer SET value = '"35"' WHERE response_id = 'r1'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.db.ExecContext(ctx, `UPDATE schema_revision SET title = 'changed'`)
	assert.ErrorContains(t, err, "immutable")

	r.ID = "r2"
	r.SchemaRevision = 5
	assert.Error(t, s.InsertResponse(ctx, r), "responses must point at a published revision")

	_, err = s.Response(ctx, "r2")
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := s.Responses(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.Answers, list[0].Answers)

	_, err = s.Responses(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
