package forms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mbolis/caps-forms/identity"
	"github.com/mbolis/caps-forms/model"
)

// ResponseRepository is append-only: a response and all of its answers are
// written in one transaction and never changed afterwards.
type ResponseRepository interface {
	InsertResponse(ctx context.Context, r model.Response) error
	Response(ctx context.Context, responseID string) (model.Response, error)
	Responses(ctx context.Context, schemaID string) ([]model.Response, error)
}

type ResponseStore struct {
	renderer *Renderer
	repo     ResponseRepository
	now      func() time.Time
}

func NewResponseStore(renderer *Renderer, repo ResponseRepository) *ResponseStore {
	return &ResponseStore{
		renderer: renderer,
		repo:     repo,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates answers against a published revision (0 for the latest)
// and stores them as a new response.
func (s *ResponseStore) Submit(ctx context.Context, schemaID string, revision int, raw map[string]json.RawMessage) (model.Response, error) {
	schema, err := s.renderer.Render(ctx, schemaID, revision)
	if err != nil {
		return model.Response{}, err
	}
	answers, err := Validate(schema, raw)
	if err != nil {
		return model.Response{}, err
	}

	resp := model.Response{
		ID:             uuid.NewString(),
		SchemaID:       schema.ID,
		SchemaRevision: schema.Revision,
		Respondent:     identity.User(ctx),
		SubmittedAt:    s.now(),
		Answers:        answers,
	}
	if err := s.repo.InsertResponse(ctx, resp); err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

func (s *ResponseStore) Get(ctx context.Context, responseID string) (model.Response, error) {
	return s.repo.Response(ctx, responseID)
}

func (s *ResponseStore) List(ctx context.Context, schemaID string) ([]model.Response, error) {
	return s.repo.Responses(ctx, schemaID)
}
