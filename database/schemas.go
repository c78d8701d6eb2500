package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mbolis/caps-forms/model"
)

// Store keeps schemas, revisions and responses in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateSchema(ctx context.Context, d model.Draft) error {
	sections, err := json.Marshal(d.Sections)
	if err != nil {
		return fmt.Errorf("db.insert_schema.encode_draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_schema (id, title, draft, draft_revision, version, created_at, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SchemaID,
		d.Title,
		string(sections),
		d.Revision,
		d.Version,
		d.UpdatedAt,
		d.UpdatedAt,
		d.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("db.insert_schema: %w", err)
	}
	return nil
}

func (s *Store) ListSchemas(ctx context.Context) ([]model.SchemaSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.updated_at, COALESCE(MAX(r.revision), 0)
		FROM form_schema s
		LEFT OUTER JOIN schema_revision r ON (s.id = r.schema_id)
		GROUP BY s.id
		ORDER BY s.created_at, s.id`)
	if err != nil {
		return nil, fmt.Errorf("db.get_schemas: %w", err)
	}
	defer rows.Close()

	schemas := []model.SchemaSummary{}
	for rows.Next() {
		var sum model.SchemaSummary
		err = rows.Scan(&sum.ID, &sum.Title, &sum.UpdatedAt, &sum.LatestRevision)
		if err != nil {
			return nil, fmt.Errorf("db.get_schemas.scan: %w", err)
		}
		schemas = append(schemas, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_schemas: %w", err)
	}
	return schemas, nil
}

func (s *Store) LoadDraft(ctx context.Context, schemaID string) (model.Draft, error) {
	d := model.Draft{SchemaID: schemaID}
	var sections string
	err := s.db.QueryRowContext(ctx, `
		SELECT title, draft, draft_revision, version, updated_at, updated_by
		FROM form_schema
		WHERE id = ?`,
		schemaID,
	).Scan(&d.Title, &sections, &d.Revision, &d.Version, &d.UpdatedAt, &d.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Draft{}, model.NotFound("schema", schemaID)
	}
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.get_draft: %w", err)
	}

	d.Sections, err = decodeSections(sections)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.get_draft.parse_sections: %w", err)
	}
	return d, nil
}

// SaveDraft stores d if nobody else changed the draft since d was loaded.
func (s *Store) SaveDraft(ctx context.Context, d model.Draft) (model.Draft, error) {
	sections, err := json.Marshal(d.Sections)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.update_draft.encode_sections: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE form_schema
		SET
			title = ?,
			draft = ?,
			version = version+1,
			updated_at = ?,
			updated_by = ?
		WHERE id = ?
			AND version = ?`,
		d.Title,
		string(sections),
		d.UpdatedAt,
		d.UpdatedBy,
		d.SchemaID,
		d.Version,
	)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.update_draft: %w", err)
	}
	// optimistic lock
	n, err := res.RowsAffected()
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.update_draft.verify: %w", err)
	}
	if n < 1 {
		return model.Draft{}, s.lostUpdate(ctx, s.db, d)
	}

	d.Version++
	return d, nil
}

// Publish writes rev and advances the draft to the next revision number in
// one transaction.
func (s *Store) Publish(ctx context.Context, d model.Draft, rev model.FormSchema) (model.Draft, error) {
	sections, err := json.Marshal(rev.Sections)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.publish.encode_sections: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.begin_tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE form_schema
		SET
			draft_revision = draft_revision+1,
			version = version+1,
			updated_at = ?,
			updated_by = ?
		WHERE id = ?
			AND version = ?
			AND draft_revision = ?`,
		rev.PublishedAt,
		rev.PublishedBy,
		d.SchemaID,
		d.Version,
		rev.Revision,
	)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.publish.advance_draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.publish.verify: %w", err)
	}
	if n < 1 {
		return model.Draft{}, s.lostUpdate(ctx, tx, d)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schema_revision (schema_id, revision, title, sections, published_at, published_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID,
		rev.Revision,
		rev.Title,
		string(sections),
		rev.PublishedAt,
		rev.PublishedBy,
	)
	if err != nil {
		return model.Draft{}, fmt.Errorf("db.publish.insert_revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Draft{}, fmt.Errorf("db.publish.commit: %w", err)
	}

	d.Revision++
	d.Version++
	d.UpdatedAt = rev.PublishedAt
	d.UpdatedBy = rev.PublishedBy
	return d, nil
}

// lostUpdate tells a deleted schema apart from a concurrent edit.
func (s *Store) lostUpdate(ctx context.Context, q queryer, d model.Draft) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT 1 FROM form_schema WHERE id = ?`, d.SchemaID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("schema", d.SchemaID)
	}
	if err != nil {
		return fmt.Errorf("db.get_schema: %w", err)
	}
	return &model.ConflictError{SchemaID: d.SchemaID, Version: d.Version}
}

func (s *Store) schemaExists(ctx context.Context, schemaID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM form_schema WHERE id = ?`, schemaID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("schema", schemaID)
	}
	if err != nil {
		return fmt.Errorf("db.get_schema: %w", err)
	}
	return nil
}

func (s *Store) Revision(ctx context.Context, schemaID string, revision int) (model.FormSchema, error) {
	query := `
		SELECT revision, title, sections, published_at, published_by
		FROM schema_revision
		WHERE schema_id = ?
			AND revision = ?`
	args := []any{schemaID, revision}
	if revision == 0 {
		query = `
		SELECT revision, title, sections, published_at, published_by
		FROM schema_revision
		WHERE schema_id = ?
		ORDER BY revision DESC
		LIMIT 1`
		args = args[:1]
	}

	rev := model.FormSchema{ID: schemaID}
	var sections string
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&rev.Revision, &rev.Title, &sections, &rev.PublishedAt, &rev.PublishedBy)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.schemaExists(ctx, schemaID); err != nil {
			return model.FormSchema{}, err
		}
		if revision == 0 {
			return model.FormSchema{}, model.NotFound("revision", "latest")
		}
		return model.FormSchema{}, model.NotFound("revision", revision)
	}
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("db.get_revision: %w", err)
	}

	rev.Sections, err = decodeSections(sections)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("db.get_revision.parse_sections: %w", err)
	}
	return rev, nil
}

func (s *Store) Revisions(ctx context.Context, schemaID string) ([]model.FormSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, title, sections, published_at, published_by
		FROM schema_revision
		WHERE schema_id = ?
		ORDER BY revision`,
		schemaID,
	)
	if err != nil {
		return nil, fmt.Errorf("db.get_revisions: %w", err)
	}
	defer rows.Close()

	revisions := []model.FormSchema{}
	for rows.Next() {
		rev := model.FormSchema{ID: schemaID}
		var sections string
		err = rows.Scan(&rev.Revision, &rev.Title, &sections, &rev.PublishedAt, &rev.PublishedBy)
		if err != nil {
			return nil, fmt.Errorf("db.get_revisions.scan: %w", err)
		}
		rev.Sections, err = decodeSections(sections)
		if err != nil {
			return nil, fmt.Errorf("db.get_revisions.parse_sections: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_revisions: %w", err)
	}
	return revisions, nil
}

func decodeSections(doc string) ([]model.Section, error) {
	sections := []model.Section{}
	if err := json.Unmarshal([]byte(doc), &sections); err != nil {
		return nil, err
	}
	if sections == nil {
		sections = []model.Section{}
	}
	return sections, nil
}
