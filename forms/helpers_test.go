package forms_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mbolis/caps-forms/database"
	"github.com/mbolis/caps-forms/forms"
	"github.com/mbolis/caps-forms/model"
	"github.com/stretchr/testify/require"
)

type services struct {
	store     *database.Store
	editor    *forms.Editor
	renderer  *forms.Renderer
	responses *forms.ResponseStore
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "forms.sqlite"))
	require.NoError(t, err)
	return db
}

func wire(db *sql.DB) services {
	store := database.NewStore(db)
	renderer := forms.NewRenderer(store)
	return services{
		store:     store,
		editor:    forms.NewEditor(store),
		renderer:  renderer,
		responses: forms.NewResponseStore(renderer, store),
	}
}

func newServices(t *testing.T) services {
	t.Helper()
	db := openDB(t)
	t.Cleanup(func() { db.Close() })
	return wire(db)
}

// capsIntake publishes the two-field intake form: MaternalAge is a required
// text field, OutcomeKnown an optional Yes/No choice.
func capsIntake(t *testing.T, svc services) model.FormSchema {
	t.Helper()
	ctx := context.Background()

	draft, err := svc.editor.CreateSchema(ctx, "CAPS-intake")
	require.NoError(t, err)
	sec, err := svc.editor.AddSection(ctx, draft.SchemaID, model.SectionSpec{Title: "Woman's details"})
	require.NoError(t, err)

	_, err = svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{
		ID: "MaternalAge", Label: "Maternal age", Type: model.TypeText, Required: true,
	})
	require.NoError(t, err)
	_, err = svc.editor.AddField(ctx, draft.SchemaID, sec.ID, model.FieldSpec{
		ID: "OutcomeKnown", Label: "Outcome known", Type: model.TypeSingleChoice, Choices: []string{"Yes", "No"},
	})
	require.NoError(t, err)

	schema, err := svc.editor.PublishRevision(ctx, draft.SchemaID)
	require.NoError(t, err)
	return schema
}
