package model

import "time"

type FieldType string

const (
	TypeText         FieldType = "text"
	TypeNumber       FieldType = "number"
	TypeSingleChoice FieldType = "single-choice"
	TypeMultiChoice  FieldType = "multi-choice"
	TypeDate         FieldType = "date"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeSingleChoice, TypeMultiChoice, TypeDate:
		return true
	}
	return false
}

func (t FieldType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeMultiChoice
}

// FormSchema is a published, immutable revision of a form.
type FormSchema struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Revision    int       `json:"revision"`
	Sections    []Section `json:"sections"`
	PublishedAt time.Time `json:"publishedAt"`
	PublishedBy string    `json:"publishedBy,omitempty"`
}

// Field looks a field up across all sections.
func (s FormSchema) Field(id string) (Field, bool) {
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Draft is the mutable state of a schema between revisions.
// Revision is the number the draft will be published as; Version counts
// edits and backs the optimistic lock.
type Draft struct {
	SchemaID  string    `json:"schemaId"`
	Title     string    `json:"title"`
	Revision  int       `json:"revision"`
	Version   int       `json:"version"`
	Sections  []Section `json:"sections"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

type SchemaSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	LatestRevision int       `json:"latestRevision"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Section struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

type Field struct {
	ID           string     `json:"id"`
	Label        string     `json:"label"`
	HelpText     string     `json:"helpText,omitempty"`
	Type         FieldType  `json:"type"`
	Required     bool       `json:"required"`
	AllowUnknown bool       `json:"allowUnknown,omitempty"`
	Choices      []string   `json:"choices,omitempty"`
	Min          *float64   `json:"min,omitempty"`
	Max          *float64   `json:"max,omitempty"`
	RequiredWhen *Condition `json:"requiredWhen,omitempty"`
}

// Condition holds when the choice field Field was answered with Equals
// (or, for a multi-choice field, with a set containing Equals).
type Condition struct {
	Field  string `json:"field" yaml:"field"`
	Equals string `json:"equals" yaml:"equals"`
}

type SectionSpec struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// FieldSpec describes a field to add or replace. ID is optional on add;
// when empty one is derived from Label.
type FieldSpec struct {
	ID           string     `json:"id" yaml:"id"`
	Label        string     `json:"label" yaml:"label"`
	HelpText     string     `json:"helpText" yaml:"helpText"`
	Type         FieldType  `json:"type" yaml:"type"`
	Required     bool       `json:"required" yaml:"required"`
	AllowUnknown bool       `json:"allowUnknown" yaml:"allowUnknown"`
	Choices      []string   `json:"choices" yaml:"choices"`
	Min          *float64   `json:"min" yaml:"min"`
	Max          *float64   `json:"max" yaml:"max"`
	RequiredWhen *Condition `json:"requiredWhen" yaml:"requiredWhen"`
}

type Response struct {
	ID             string            `json:"id"`
	SchemaID       string            `json:"schemaId"`
	SchemaRevision int               `json:"schemaRevision"`
	Respondent     string            `json:"respondent,omitempty"`
	SubmittedAt    time.Time         `json:"submittedAt"`
	Answers        map[string]Answer `json:"answers"`
}
