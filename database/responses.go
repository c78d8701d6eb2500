package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mbolis/caps-forms/model"
)

func (s *Store) InsertResponse(ctx context.Context, r model.Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.begin_tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO response (id, schema_id, schema_revision, respondent, submitted_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID,
		r.SchemaID,
		r.SchemaRevision,
		r.Respondent,
		r.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("db.insert_response: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO response_answer (response_id, field_id, type, value)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("db.insert_response.answers.prepare: %w", err)
	}
	defer stmt.Close()

	for fieldID, a := range r.Answers {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("db.insert_response.answers.encode_value: %w", err)
		}
		_, err = stmt.ExecContext(ctx, r.ID, fieldID, string(a.Type), string(value))
		if err != nil {
			return fmt.Errorf("db.insert_response.answers.insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db.insert_response.commit: %w", err)
	}
	return nil
}

func (s *Store) Response(ctx context.Context, responseID string) (model.Response, error) {
	r := model.Response{ID: responseID}
	err := s.db.QueryRowContext(ctx, `
		SELECT schema_id, schema_revision, respondent, submitted_at
		FROM response
		WHERE id = ?`,
		responseID,
	).Scan(&r.SchemaID, &r.SchemaRevision, &r.Respondent, &r.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Response{}, model.NotFound("response", responseID)
	}
	if err != nil {
		return model.Response{}, fmt.Errorf("db.get_response: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT response_id, field_id, type, value
		FROM response_answer
		WHERE response_id = ?`,
		responseID,
	)
	if err != nil {
		return model.Response{}, fmt.Errorf("db.get_response.answers: %w", err)
	}
	defer rows.Close()

	r.Answers = map[string]model.Answer{}
	err = scanAnswers(rows, func(string) map[string]model.Answer { return r.Answers })
	if err != nil {
		return model.Response{}, fmt.Errorf("db.get_response.answers: %w", err)
	}
	return r, nil
}

// Responses lists the responses captured for a schema, oldest first.
func (s *Store) Responses(ctx context.Context, schemaID string) ([]model.Response, error) {
	if err := s.schemaExists(ctx, schemaID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schema_revision, respondent, submitted_at
		FROM response
		WHERE schema_id = ?
		ORDER BY submitted_at, id`,
		schemaID,
	)
	if err != nil {
		return nil, fmt.Errorf("db.get_responses: %w", err)
	}
	defer rows.Close()

	responses := []model.Response{}
	byID := map[string]int{}
	for rows.Next() {
		r := model.Response{SchemaID: schemaID, Answers: map[string]model.Answer{}}
		err = rows.Scan(&r.ID, &r.SchemaRevision, &r.Respondent, &r.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("db.get_responses.scan: %w", err)
		}
		byID[r.ID] = len(responses)
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_responses: %w", err)
	}
	rows.Close()

	answerRows, err := s.db.QueryContext(ctx, `
		SELECT a.response_id, a.field_id, a.type, a.value
		FROM response_answer a
		INNER JOIN response r ON (r.id = a.response_id)
		WHERE r.schema_id = ?`,
		schemaID,
	)
	if err != nil {
		return nil, fmt.Errorf("db.get_responses.answers: %w", err)
	}
	defer answerRows.Close()

	err = scanAnswers(answerRows, func(responseID string) map[string]model.Answer {
		if i, ok := byID[responseID]; ok {
			return responses[i].Answers
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db.get_responses.answers: %w", err)
	}
	return responses, nil
}

func scanAnswers(rows *sql.Rows, target func(responseID string) map[string]model.Answer) error {
	for rows.Next() {
		var responseID, fieldID, fieldType, value string
		if err := rows.Scan(&responseID, &fieldID, &fieldType, &value); err != nil {
			return err
		}
		a, err := model.DecodeAnswer(model.FieldType(fieldType), json.RawMessage(value))
		if err != nil {
			return fmt.Errorf("parse value of %s/%s: %w", responseID, fieldID, err)
		}
		if answers := target(responseID); answers != nil {
			answers[fieldID] = a
		}
	}
	return rows.Err()
}
