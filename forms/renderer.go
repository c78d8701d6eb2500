package forms

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mbolis/caps-forms/model"
)

type RevisionSource interface {
	Revision(ctx context.Context, schemaID string, revision int) (model.FormSchema, error)
}

// Renderer serves published revisions for data entry and checks
// submissions against them.
type Renderer struct {
	revisions RevisionSource
}

func NewRenderer(revisions RevisionSource) *Renderer {
	return &Renderer{revisions: revisions}
}

// Render returns a published revision; revision 0 selects the latest.
func (r *Renderer) Render(ctx context.Context, schemaID string, revision int) (model.FormSchema, error) {
	if revision < 0 {
		return model.FormSchema{}, model.NotFound("revision", revision)
	}
	return r.revisions.Revision(ctx, schemaID, revision)
}

func (r *Renderer) ValidateSubmission(ctx context.Context, schemaID string, revision int, raw map[string]json.RawMessage) (map[string]model.Answer, error) {
	schema, err := r.Render(ctx, schemaID, revision)
	if err != nil {
		return nil, err
	}
	return Validate(schema, raw)
}

// Validate decodes raw answers against a revision. Every problem is
// reported in a single *model.ValidationError, in form order, followed by
// keys that are not fields of the revision. A null value counts as
// unanswered, also for keys that are not fields. A field with requiredWhen
// is required while its condition holds.
func Validate(schema model.FormSchema, raw map[string]json.RawMessage) (map[string]model.Answer, error) {
	answers := make(map[string]model.Answer, len(raw))
	var problems []model.FieldError

	for _, sec := range schema.Sections {
		for _, f := range sec.Fields {
			value, present := raw[f.ID]
			if !present || model.IsNull(value) {
				if f.Required || conditionHolds(schema, f.RequiredWhen, raw) {
					problems = append(problems, model.FieldError{FieldID: f.ID, Reason: model.ReasonMissingRequired})
				}
				continue
			}

			a, err := model.DecodeAnswer(f.Type, value)
			if err != nil {
				problems = append(problems, model.FieldError{FieldID: f.ID, Reason: model.ReasonTypeMismatch})
				continue
			}
			if reason := f.Check(a); reason != "" {
				problems = append(problems, model.FieldError{FieldID: f.ID, Reason: reason})
				continue
			}
			answers[f.ID] = a
		}
	}

	var stray []string
	for id := range raw {
		if _, ok := schema.Field(id); !ok && !model.IsNull(raw[id]) {
			stray = append(stray, id)
		}
	}
	sort.Strings(stray)
	for _, id := range stray {
		problems = append(problems, model.FieldError{FieldID: id, Reason: model.ReasonUnknownField})
	}

	if len(problems) > 0 {
		return nil, &model.ValidationError{Message: "submission rejected", Fields: problems}
	}
	return answers, nil
}

// conditionHolds decodes the answer to the condition's field on its own,
// so a broken answer there never makes the dependent field required.
func conditionHolds(schema model.FormSchema, c *model.Condition, raw map[string]json.RawMessage) bool {
	if c == nil {
		return false
	}
	ref, ok := schema.Field(c.Field)
	if !ok {
		return false
	}
	value, present := raw[c.Field]
	if !present || model.IsNull(value) {
		return false
	}
	a, err := model.DecodeAnswer(ref.Type, value)
	if err != nil || ref.Check(a) != "" {
		return false
	}
	return c.Holds(a)
}
