package forms_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mbolis/caps-forms/identity"
	"github.com/mbolis/caps-forms/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	svc := newServices(t)
	ctx := identity.With(context.Background(), identity.Identity{User: "midwife.lead"})

	draft, err := svc.editor.CreateSchema(ctx, "  CAPS-intake ")
	require.NoError(t, err)
	assert.NotEmpty(t, draft.SchemaID)
	assert.Equal(t, "CAPS-intake", draft.Title)
	assert.Equal(t, 1, draft.Revision)
	assert.Empty(t, draft.Sections)
	assert.Equal(t, "midwife.lead", draft.UpdatedBy)

	loaded, err := svc.editor.Draft(ctx, draft.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, draft.Title, loaded.Title)
	assert.Equal(t, draft.Version, loaded.Version)

	_, err = svc.editor.CreateSchema(ctx, " ")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.editor.Draft(ctx, "no-such-schema")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEditSections(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "CAPS")
	require.NoError(t, err)
	id := draft.SchemaID

	details, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Woman's details"})
	require.NoError(t, err)
	assert.Equal(t, "woman_s_details", details.ID)

	history, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Previous obstetric history"})
	require.NoError(t, err)

	again, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Woman's details"})
	require.NoError(t, err)
	assert.Equal(t, "woman_s_details__1", again.ID)

	updated, err := svc.editor.UpdateSection(ctx, id, again.ID, 0, model.SectionSpec{Title: "Medical history", Description: "Section 3"})
	require.NoError(t, err)
	assert.Equal(t, again.ID, updated.ID)
	assert.Equal(t, "Section 3", updated.Description)

	require.NoError(t, svc.editor.ReorderSections(ctx, id, []string{history.ID, again.ID, details.ID}))
	require.NoError(t, svc.editor.RemoveSection(ctx, id, again.ID))

	d, err := svc.editor.Draft(ctx, id)
	require.NoError(t, err)
	require.Len(t, d.Sections, 2)
	assert.Equal(t, history.ID, d.Sections[0].ID)
	assert.Equal(t, details.ID, d.Sections[1].ID)

	assert.ErrorIs(t, svc.editor.RemoveSection(ctx, id, again.ID), model.ErrNotFound)
	assert.ErrorIs(t, svc.editor.ReorderSections(ctx, id, []string{details.ID}), model.ErrNotFound)
	_, err = svc.editor.AddSection(ctx, id, model.SectionSpec{})
	assert.ErrorIs(t, err, model.ErrValidation)
	symbols, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "???"})
	require.NoError(t, err)
	assert.Equal(t, "section", symbols.ID)
	_, err = svc.editor.AddSection(ctx, "missing", model.SectionSpec{Title: "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEditFields(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "CAPS")
	require.NoError(t, err)
	id := draft.SchemaID
	sec, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Details"})
	require.NoError(t, err)
	other, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "History"})
	require.NoError(t, err)

	t.Run("choice field without choices is rejected", func(t *testing.T) {
		_, err := svc.editor.AddField(ctx, id, sec.ID, model.FieldSpec{Label: "Outcome", Type: model.TypeSingleChoice})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("ids derive from labels", func(t *testing.T) {
		f, err := svc.editor.AddField(ctx, id, sec.ID, model.FieldSpec{Label: "Smoking status", Type: model.TypeText})
		require.NoError(t, err)
		assert.Equal(t, "smoking_status", f.ID)

		f, err = svc.editor.AddField(ctx, id, other.ID, model.FieldSpec{Label: "Smoking status", Type: model.TypeText})
		require.NoError(t, err)
		assert.Equal(t, "smoking_status__1", f.ID)
	})

	t.Run("explicit ids are unique across sections", func(t *testing.T) {
		_, err := svc.editor.AddField(ctx, id, sec.ID, model.FieldSpec{ID: "Height", Label: "Height", Type: model.TypeNumber})
		require.NoError(t, err)
		_, err = svc.editor.AddField(ctx, id, other.ID, model.FieldSpec{ID: "Height", Label: "Height again", Type: model.TypeNumber})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("update keeps the id", func(t *testing.T) {
		f, err := svc.editor.UpdateField(ctx, id, sec.ID, "Height", 0, model.FieldSpec{
			Label: "Height at booking (cm)", Type: model.TypeNumber, Required: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "Height", f.ID)
		assert.True(t, f.Required)

		_, err = svc.editor.UpdateField(ctx, id, sec.ID, "Height", 0, model.FieldSpec{ID: "Tall", Label: "x", Type: model.TypeText})
		assert.ErrorIs(t, err, model.ErrValidation)
		_, err = svc.editor.UpdateField(ctx, id, other.ID, "Height", 0, model.FieldSpec{Label: "x", Type: model.TypeText})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, svc.editor.RemoveField(ctx, id, other.ID, "smoking_status__1"))
		assert.ErrorIs(t, svc.editor.RemoveField(ctx, id, other.ID, "smoking_status__1"), model.ErrNotFound)
	})

	d, err := svc.editor.Draft(ctx, id)
	require.NoError(t, err)
	require.Len(t, d.Sections[0].Fields, 2)
	assert.Equal(t, "smoking_status", d.Sections[0].Fields[0].ID)
	assert.Equal(t, "Height at booking (cm)", d.Sections[0].Fields[1].Label)
	assert.Empty(t, d.Sections[1].Fields)
}

func sectionWithFields(t *testing.T, svc services, n int) (schemaID, sectionID string, ids []string) {
	t.Helper()
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "reorder")
	require.NoError(t, err)
	sec, err := svc.editor.AddSection(ctx, draft.SchemaID, model.SectionSpec{Title: "Only"})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		f, err := svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{Label: "Question", Type: model.TypeText})
		require.NoError(t, err)
		ids = append(ids, f.ID)
	}
	return draft.SchemaID, sec.ID, ids
}

func TestReorderFields(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	schemaID, sectionID, ids := sectionWithFields(t, svc, 3)

	require.NoError(t, svc.editor.ReorderFields(ctx, schemaID, sectionID, []string{ids[2], ids[0], ids[1]}))
	d, err := svc.editor.Draft(ctx, schemaID)
	require.NoError(t, err)
	var got []string
	for _, f := range d.Sections[0].Fields {
		got = append(got, f.ID)
	}
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, got)

	for name, order := range map[string][]string{
		"dropped":    {ids[0], ids[1]},
		"duplicated": {ids[0], ids[1], ids[1]},
		"foreign":    {ids[0], ids[1], "stranger"},
		"extra":      {ids[0], ids[1], ids[2], "stranger"},
		"empty":      {},
	} {
		t.Run(name, func(t *testing.T) {
			err := svc.editor.ReorderFields(ctx, schemaID, sectionID, order)
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}

	assert.ErrorIs(t, svc.editor.ReorderFields(ctx, schemaID, "nowhere", ids), model.ErrNotFound)
}

func TestProperty_ReorderFields(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	schemaID, sectionID, ids := sectionWithFields(t, svc, 6)

	fieldIDs := func() []string {
		d, err := svc.editor.Draft(ctx, schemaID)
		if err != nil {
			return nil
		}
		var out []string
		for _, f := range d.Sections[0].Fields {
			out = append(out, f.ID)
		}
		return out
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("a permutation is applied as given", prop.ForAll(
		func(seed int64) bool {
			order := append([]string(nil), ids...)
			rand.New(rand.NewSource(seed)).Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

			if err := svc.editor.ReorderFields(ctx, schemaID, sectionID, order); err != nil {
				return false
			}
			got := fieldIDs()
			if len(got) != len(order) {
				return false
			}
			for i := range order {
				if got[i] != order[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("anything but a permutation fails and changes nothing", prop.ForAll(
		func(picks []int, stranger bool) bool {
			order := make([]string, 0, len(picks)+1)
			for _, p := range picks {
				order = append(order, ids[p%len(ids)])
			}
			if stranger {
				order = append(order, "stranger")
			}
			if isPermutation(order, ids) {
				return true
			}

			before := fieldIDs()
			err := svc.editor.ReorderFields(ctx, schemaID, sectionID, order)
			after := fieldIDs()
			return assert.ObjectsAreEqual(before, after) && errors.Is(err, model.ErrNotFound)
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func isPermutation(order, ids []string) bool {
	if len(order) != len(ids) {
		return false
	}
	count := map[string]int{}
	for _, id := range ids {
		count[id]++
	}
	for _, id := range order {
		count[id]--
		if count[id] < 0 {
			return false
		}
	}
	return true
}

func TestPublishRevision(t *testing.T) {
	svc := newServices(t)
	ctx := identity.With(context.Background(), identity.Identity{User: "coordinator"})
	schema := capsIntake(t, svc)

	assert.Equal(t, 1, schema.Revision)
	require.Len(t, schema.Sections, 1)
	require.Len(t, schema.Sections[0].Fields, 2)

	d, err := svc.editor.Draft(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Revision)

	// edits after publishing stay in the draft
	_, err = svc.editor.AddField(ctx, schema.ID, schema.Sections[0].ID, model.FieldSpec{ID: "Height", Label: "Height", Type: model.TypeNumber})
	require.NoError(t, err)

	published, err := svc.renderer.Render(ctx, schema.ID, 1)
	require.NoError(t, err)
	assert.Len(t, published.Sections[0].Fields, 2)
	_, err = svc.renderer.Render(ctx, schema.ID, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)

	second, err := svc.editor.PublishRevision(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Revision)
	assert.Equal(t, "coordinator", second.PublishedBy)

	latest, err := svc.renderer.Render(ctx, schema.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Revision)
	assert.Len(t, latest.Sections[0].Fields, 3)

	revisions, err := svc.editor.Revisions(ctx, schema.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, 1, revisions[0].Revision)
	assert.Equal(t, 2, revisions[1].Revision)

	summaries, err := svc.editor.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].LatestRevision)

	_, err = svc.editor.PublishRevision(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestProperty_RevisionsHaveNoGaps(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("published revisions count up from 1", prop.ForAll(
		func(edits []bool) bool {
			draft, err := svc.editor.CreateSchema(ctx, "gapless")
			if err != nil {
				return false
			}
			sec, err := svc.editor.AddSection(ctx, draft.SchemaID, model.SectionSpec{Title: "S"})
			if err != nil {
				return false
			}

			published := 0
			for _, publish := range edits {
				if publish {
					rev, err := svc.editor.PublishRevision(ctx, draft.SchemaID)
					if err != nil || rev.Revision != published+1 {
						return false
					}
					published++
					continue
				}
				if _, err := svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{Label: "Q", Type: model.TypeText}); err != nil {
					return false
				}
			}

			revisions, err := svc.editor.Revisions(ctx, draft.SchemaID)
			if err != nil || len(revisions) != published {
				return false
			}
			for i, rev := range revisions {
				if rev.Revision != i+1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestConcurrentEditsAreSerialized(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "busy")
	require.NoError(t, err)
	sec, err := svc.editor.AddSection(ctx, draft.SchemaID, model.SectionSpec{Title: "S"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{Label: "Q", Type: model.TypeText})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	d, err := svc.editor.Draft(ctx, draft.SchemaID)
	require.NoError(t, err)
	assert.Len(t, d.Sections[0].Fields, n)
}

func TestStaleDraftIsAConflict(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "stale")
	require.NoError(t, err)

	// a second process saved first
	stale, err := svc.store.LoadDraft(ctx, draft.SchemaID)
	require.NoError(t, err)
	_, err = svc.editor.RenameSchema(ctx, draft.SchemaID, 0, "fresh")
	require.NoError(t, err)

	stale.Title = "overwritten"
	_, err = svc.store.SaveDraft(ctx, stale)
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = svc.store.Publish(ctx, stale, model.FormSchema{ID: stale.SchemaID, Revision: stale.Revision, Title: stale.Title})
	assert.ErrorIs(t, err, model.ErrConflict)

	d, err := svc.editor.Draft(ctx, draft.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", d.Title)
}

func TestConditionalFields(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "CAPS")
	require.NoError(t, err)
	id := draft.SchemaID
	sec, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Details"})
	require.NoError(t, err)
	work, err := svc.editor.AddSection(ctx, id, model.SectionSpec{Title: "Work"})
	require.NoError(t, err)

	employed := model.FieldSpec{ID: "Employed", Label: "Employed", Type: model.TypeSingleChoice, Choices: []string{"Yes", "No"}}
	occupation := model.FieldSpec{ID: "Occupation", Label: "Occupation", Type: model.TypeText,
		RequiredWhen: &model.Condition{Field: "Employed", Equals: "Yes"}}

	_, err = svc.editor.AddField(ctx, id, work.ID, occupation)
	assert.ErrorIs(t, err, model.ErrValidation, "the condition field must exist first")

	_, err = svc.editor.AddField(ctx, id, sec.ID, employed)
	require.NoError(t, err)
	f, err := svc.editor.AddField(ctx, id, work.ID, occupation)
	require.NoError(t, err)
	assert.Equal(t, occupation.RequiredWhen, f.RequiredWhen)

	_, err = svc.editor.UpdateField(ctx, id, sec.ID, "Employed", 0, model.FieldSpec{Label: "Employed", Type: model.TypeText})
	assert.ErrorIs(t, err, model.ErrValidation, "a condition field must stay a choice field")
	_, err = svc.editor.UpdateField(ctx, id, sec.ID, "Employed", 0, model.FieldSpec{Label: "Employed", Type: model.TypeSingleChoice, Choices: []string{"No"}})
	assert.ErrorIs(t, err, model.ErrValidation, "the condition value must stay a choice")
	assert.ErrorIs(t, svc.editor.RemoveField(ctx, id, sec.ID, "Employed"), model.ErrValidation)
	assert.ErrorIs(t, svc.editor.RemoveSection(ctx, id, sec.ID), model.ErrValidation)

	require.NoError(t, svc.editor.RemoveSection(ctx, id, work.ID))
	require.NoError(t, svc.editor.RemoveField(ctx, id, sec.ID, "Employed"))
}

func TestEditsWithAStaleVersionConflict(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "CAPS")
	require.NoError(t, err)
	sec, err := svc.editor.AddSection(ctx, draft.SchemaID, model.SectionSpec{Title: "Details"})
	require.NoError(t, err)
	_, err = svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{ID: "Age", Label: "Age", Type: model.TypeText})
	require.NoError(t, err)

	seen, err := svc.editor.Draft(ctx, draft.SchemaID)
	require.NoError(t, err)

	renamed, err := svc.editor.RenameSchema(ctx, draft.SchemaID, seen.Version, "CAPS intake")
	require.NoError(t, err)
	assert.Equal(t, seen.Version+1, renamed.Version)

	_, err = svc.editor.RenameSchema(ctx, draft.SchemaID, seen.Version, "CAPS (old view)")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = svc.editor.UpdateSection(ctx, draft.SchemaID, sec.ID, seen.Version, model.SectionSpec{Title: "Woman"})
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = svc.editor.UpdateField(ctx, draft.SchemaID, sec.ID, "Age", seen.Version, model.FieldSpec{Label: "Maternal age", Type: model.TypeText})
	assert.ErrorIs(t, err, model.ErrConflict)

	d, err := svc.editor.Draft(ctx, draft.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, "CAPS intake", d.Title)
	assert.Equal(t, "Details", d.Sections[0].Title)
	assert.Equal(t, "Age", d.Sections[0].Fields[0].Label)

	_, err = svc.editor.UpdateField(ctx, draft.SchemaID, sec.ID, "Age", d.Version, model.FieldSpec{Label: "Maternal age", Type: model.TypeText})
	assert.NoError(t, err)
}
