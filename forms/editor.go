package forms

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mbolis/caps-forms/identity"
	"github.com/mbolis/caps-forms/model"
)

// SchemaRepository persists schemas, their drafts and published revisions.
//
// SaveDraft and Publish must only succeed when the stored draft still has
// the version of the draft passed in, and return a *model.ConflictError
// otherwise. Revision with revision 0 returns the latest published one.
type SchemaRepository interface {
	CreateSchema(ctx context.Context, d model.Draft) error
	ListSchemas(ctx context.Context) ([]model.SchemaSummary, error)
	LoadDraft(ctx context.Context, schemaID string) (model.Draft, error)
	SaveDraft(ctx context.Context, d model.Draft) (model.Draft, error)
	Publish(ctx context.Context, d model.Draft, rev model.FormSchema) (model.Draft, error)
	Revision(ctx context.Context, schemaID string, revision int) (model.FormSchema, error)
	Revisions(ctx context.Context, schemaID string) ([]model.FormSchema, error)
}

// Editor changes schema drafts and publishes them as revisions.
type Editor struct {
	repo  SchemaRepository
	locks *schemaLocks
	now   func() time.Time
}

func NewEditor(repo SchemaRepository) *Editor {
	return &Editor{
		repo:  repo,
		locks: newSchemaLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (e *Editor) CreateSchema(ctx context.Context, title string) (model.Draft, error) {
	d, err := e.newDraft(ctx, title)
	if err != nil {
		return model.Draft{}, err
	}
	if err := e.repo.CreateSchema(ctx, d); err != nil {
		return model.Draft{}, err
	}
	return d, nil
}

// newDraft builds the first draft of a schema without storing it.
func (e *Editor) newDraft(ctx context.Context, title string) (model.Draft, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Draft{}, model.Invalid("schema title is required")
	}
	return model.Draft{
		SchemaID:  uuid.NewString(),
		Title:     title,
		Revision:  1,
		Version:   1,
		Sections:  []model.Section{},
		UpdatedAt: e.now(),
		UpdatedBy: identity.User(ctx),
	}, nil
}

func (e *Editor) ListSchemas(ctx context.Context) ([]model.SchemaSummary, error) {
	return e.repo.ListSchemas(ctx)
}

func (e *Editor) Draft(ctx context.Context, schemaID string) (model.Draft, error) {
	return e.repo.LoadDraft(ctx, schemaID)
}

func (e *Editor) Revisions(ctx context.Context, schemaID string) ([]model.FormSchema, error) {
	if _, err := e.repo.LoadDraft(ctx, schemaID); err != nil {
		return nil, err
	}
	return e.repo.Revisions(ctx, schemaID)
}

// edit runs fn on the current draft under the schema lock and stores the
// result. A non-zero ifVersion must match the stored draft version.
func (e *Editor) edit(ctx context.Context, schemaID string, ifVersion int, fn func(d *model.Draft) error) (model.Draft, error) {
	unlock := e.locks.lock(schemaID)
	defer unlock()

	d, err := e.repo.LoadDraft(ctx, schemaID)
	if err != nil {
		return model.Draft{}, err
	}
	if ifVersion != 0 && ifVersion != d.Version {
		return model.Draft{}, &model.ConflictError{SchemaID: schemaID, Version: ifVersion}
	}
	if err := fn(&d); err != nil {
		return model.Draft{}, err
	}
	d.UpdatedAt = e.now()
	d.UpdatedBy = identity.User(ctx)
	return e.repo.SaveDraft(ctx, d)
}

// RenameSchema changes the draft title. ifVersion, when not 0, is the draft
// version the caller last saw.
func (e *Editor) RenameSchema(ctx context.Context, schemaID string, ifVersion int, title string) (model.Draft, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Draft{}, model.Invalid("schema title is required")
	}
	return e.edit(ctx, schemaID, ifVersion, func(d *model.Draft) error {
		d.Title = title
		return nil
	})
}

func (e *Editor) AddSection(ctx context.Context, schemaID string, spec model.SectionSpec) (model.Section, error) {
	var added model.Section
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) (err error) {
		added, err = addSection(d, spec)
		return err
	})
	return added, err
}

func (e *Editor) UpdateSection(ctx context.Context, schemaID, sectionID string, ifVersion int, spec model.SectionSpec) (model.Section, error) {
	title := strings.TrimSpace(spec.Title)
	if title == "" {
		return model.Section{}, model.Invalid("section title is required")
	}

	var updated model.Section
	_, err := e.edit(ctx, schemaID, ifVersion, func(d *model.Draft) error {
		sec, err := findSection(d, sectionID)
		if err != nil {
			return err
		}
		sec.Title = title
		sec.Description = spec.Description
		updated = *sec
		return nil
	})
	return updated, err
}

func (e *Editor) RemoveSection(ctx context.Context, schemaID, sectionID string) error {
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) error {
		i := sectionIndex(d, sectionID)
		if i < 0 {
			return model.NotFound("section", sectionID)
		}
		d.Sections = slices.Delete(d.Sections, i, i+1)
		return model.CheckConditions(d.Sections)
	})
	return err
}

func (e *Editor) ReorderSections(ctx context.Context, schemaID string, newOrder []string) error {
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) error {
		sections, err := reorder(d.Sections, func(s model.Section) string { return s.ID }, newOrder, "section")
		if err != nil {
			return err
		}
		d.Sections = sections
		return nil
	})
	return err
}

func (e *Editor) AddField(ctx context.Context, schemaID, sectionID string, spec model.FieldSpec) (model.Field, error) {
	var added model.Field
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) (err error) {
		added, err = addField(d, sectionID, spec)
		return err
	})
	return added, err
}

// UpdateField replaces a field's definition and keeps its ID. Changing the
// type of a field is allowed: earlier revisions keep the old definition.
func (e *Editor) UpdateField(ctx context.Context, schemaID, sectionID, fieldID string, ifVersion int, spec model.FieldSpec) (model.Field, error) {
	if err := spec.Validate(); err != nil {
		return model.Field{}, err
	}
	if spec.ID != "" && spec.ID != fieldID {
		return model.Field{}, model.Invalid("field id cannot be changed")
	}

	var updated model.Field
	_, err := e.edit(ctx, schemaID, ifVersion, func(d *model.Draft) error {
		sec, err := findSection(d, sectionID)
		if err != nil {
			return err
		}
		i := fieldIndex(sec, fieldID)
		if i < 0 {
			return model.NotFound("field", fieldID)
		}
		updated = spec.Field(fieldID)
		sec.Fields[i] = updated
		return model.CheckConditions(d.Sections)
	})
	return updated, err
}

func (e *Editor) RemoveField(ctx context.Context, schemaID, sectionID, fieldID string) error {
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) error {
		sec, err := findSection(d, sectionID)
		if err != nil {
			return err
		}
		i := fieldIndex(sec, fieldID)
		if i < 0 {
			return model.NotFound("field", fieldID)
		}
		sec.Fields = slices.Delete(sec.Fields, i, i+1)
		return model.CheckConditions(d.Sections)
	})
	return err
}

// ReorderFields puts the fields of a section in the given order. newOrder
// must be a permutation of the section's field IDs.
func (e *Editor) ReorderFields(ctx context.Context, schemaID, sectionID string, newOrder []string) error {
	_, err := e.edit(ctx, schemaID, 0, func(d *model.Draft) error {
		sec, err := findSection(d, sectionID)
		if err != nil {
			return err
		}
		fields, err := reorder(sec.Fields, func(f model.Field) string { return f.ID }, newOrder, "field")
		if err != nil {
			return err
		}
		sec.Fields = fields
		return nil
	})
	return err
}

// PublishRevision snapshots the draft as the next revision.
func (e *Editor) PublishRevision(ctx context.Context, schemaID string) (model.FormSchema, error) {
	unlock := e.locks.lock(schemaID)
	defer unlock()

	d, err := e.repo.LoadDraft(ctx, schemaID)
	if err != nil {
		return model.FormSchema{}, err
	}

	rev := model.FormSchema{
		ID:          d.SchemaID,
		Title:       d.Title,
		Revision:    d.Revision,
		Sections:    d.Sections,
		PublishedAt: e.now(),
		PublishedBy: identity.User(ctx),
	}
	if _, err := e.repo.Publish(ctx, d, rev); err != nil {
		return model.FormSchema{}, err
	}
	return rev, nil
}

func addSection(d *model.Draft, spec model.SectionSpec) (model.Section, error) {
	title := strings.TrimSpace(spec.Title)
	if title == "" {
		return model.Section{}, model.Invalid("section title is required")
	}
	sec := model.Section{
		ID:          model.Ident(title, "section", func(id string) bool { return sectionIndex(d, id) >= 0 }),
		Title:       title,
		Description: spec.Description,
		Fields:      []model.Field{},
	}
	d.Sections = append(d.Sections, sec)
	return sec, nil
}

// addField assigns the field ID and appends the field to a section. A
// requiredWhen may only point at a field that is already in the draft.
func addField(d *model.Draft, sectionID string, spec model.FieldSpec) (model.Field, error) {
	if err := spec.Validate(); err != nil {
		return model.Field{}, err
	}
	sec, err := findSection(d, sectionID)
	if err != nil {
		return model.Field{}, err
	}

	id := spec.ID
	if id == "" {
		id = model.Ident(spec.Label, "field", func(id string) bool { return fieldTaken(d, id) })
	} else if fieldTaken(d, id) {
		return model.Field{}, model.Invalid("field id %q is already used in this schema", id)
	}

	f := spec.Field(id)
	sec.Fields = append(sec.Fields, f)
	if err := model.CheckConditions(d.Sections); err != nil {
		return model.Field{}, err
	}
	return f, nil
}

func sectionIndex(d *model.Draft, sectionID string) int {
	return slices.IndexFunc(d.Sections, func(s model.Section) bool { return s.ID == sectionID })
}

func findSection(d *model.Draft, sectionID string) (*model.Section, error) {
	i := sectionIndex(d, sectionID)
	if i < 0 {
		return nil, model.NotFound("section", sectionID)
	}
	return &d.Sections[i], nil
}

func fieldIndex(sec *model.Section, fieldID string) int {
	return slices.IndexFunc(sec.Fields, func(f model.Field) bool { return f.ID == fieldID })
}

// field IDs are unique across the schema since answers are keyed by them
func fieldTaken(d *model.Draft, fieldID string) bool {
	for i := range d.Sections {
		if fieldIndex(&d.Sections[i], fieldID) >= 0 {
			return true
		}
	}
	return false
}

func reorder[T any](items []T, idOf func(T) string, order []string, kind string) ([]T, error) {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}

	placed := make(map[string]bool, len(order))
	out := make([]T, 0, len(items))
	for _, id := range order {
		it, ok := byID[id]
		if !ok || placed[id] {
			return nil, model.NotFound(kind, id)
		}
		placed[id] = true
		out = append(out, it)
	}
	for _, it := range items {
		if id := idOf(it); !placed[id] {
			return nil, model.NotFound(kind, id)
		}
	}
	return out, nil
}
