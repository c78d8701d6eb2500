package forms

import (
	"context"
	"fmt"
	"io"

	"github.com/mbolis/caps-forms/model"
	"gopkg.in/yaml.v3"
)

// Definition is a whole form written out as a YAML document, used to seed
// a schema without going through the HTTP API.
type Definition struct {
	Title    string              `yaml:"title"`
	Sections []SectionDefinition `yaml:"sections"`
}

type SectionDefinition struct {
	model.SectionSpec `yaml:",inline"`
	Fields            []model.FieldSpec `yaml:"fields"`
}

func LoadDefinition(r io.Reader) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode form definition: %w", err)
	}
	return def, nil
}

// Apply builds a draft from def and stores it as a new schema. Nothing is
// stored when any part of def is invalid. The draft is left unpublished.
func (e *Editor) Apply(ctx context.Context, def Definition) (model.Draft, error) {
	d, err := e.newDraft(ctx, def.Title)
	if err != nil {
		return model.Draft{}, err
	}

	for _, sd := range def.Sections {
		sec, err := addSection(&d, sd.SectionSpec)
		if err != nil {
			return model.Draft{}, fmt.Errorf("section %q: %w", sd.Title, err)
		}
		for _, fs := range sd.Fields {
			if _, err := addField(&d, sec.ID, fs); err != nil {
				return model.Draft{}, fmt.Errorf("section %q, field %q: %w", sd.Title, fs.Label, err)
			}
		}
	}

	if err := e.repo.CreateSchema(ctx, d); err != nil {
		return model.Draft{}, err
	}
	return d, nil
}
