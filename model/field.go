package model

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

var reNoIdent = regexp.MustCompile(`\W+`)

// Ident turns a label into an identifier: lower case, non-word runs
// collapsed to "_", fallback when nothing is left. A "__n" suffix is added
// while taken reports a clash.
func Ident(label, fallback string, taken func(string) bool) string {
	name := strings.ToLower(label)
	name = reNoIdent.ReplaceAllLiteralString(name, " ")
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		name = fallback
	}

	candidate := name
	for n := 1; taken(candidate); n++ {
		candidate = fmt.Sprintf("%s__%d", name, n)
	}
	return candidate
}

// Validate checks a field spec on its own. Uniqueness of the ID within a
// schema is the editor's concern.
func (spec FieldSpec) Validate() error {
	if strings.TrimSpace(spec.Label) == "" {
		return Invalid("field label is required")
	}
	if !spec.Type.Valid() {
		return Invalid("unsupported field type %q", spec.Type)
	}
	if spec.ID != "" && reNoIdent.MatchString(spec.ID) {
		return Invalid("field id %q may only contain letters, digits and _", spec.ID)
	}

	if spec.Type.IsChoice() {
		if len(spec.Choices) == 0 {
			return Invalid("%s field %q needs at least one choice", spec.Type, spec.Label)
		}
		seen := make(map[string]bool, len(spec.Choices))
		for _, c := range spec.Choices {
			if strings.TrimSpace(c) == "" {
				return Invalid("field %q has an empty choice", spec.Label)
			}
			if seen[c] {
				return Invalid("field %q lists choice %q twice", spec.Label, c)
			}
			seen[c] = true
		}
	} else if len(spec.Choices) > 0 {
		return Invalid("%s field %q cannot have choices", spec.Type, spec.Label)
	}

	if spec.Min != nil || spec.Max != nil {
		if spec.Type != TypeNumber {
			return Invalid("only number fields can have bounds")
		}
		for _, bound := range []*float64{spec.Min, spec.Max} {
			if bound != nil && (math.IsNaN(*bound) || math.IsInf(*bound, 0)) {
				return Invalid("field %q has a bound that is not a finite number", spec.Label)
			}
		}
		if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
			return Invalid("field %q has min greater than max", spec.Label)
		}
	}

	if c := spec.RequiredWhen; c != nil {
		if c.Field == "" || c.Equals == "" {
			return Invalid("field %q: requiredWhen needs both field and equals", spec.Label)
		}
		if spec.ID != "" && c.Field == spec.ID {
			return Invalid("field %q cannot depend on itself", spec.Label)
		}
	}
	return nil
}

// CheckConditions verifies that every requiredWhen in sections points at
// another choice field of the same schema, and at one of its choices.
func CheckConditions(sections []Section) error {
	byID := make(map[string]Field)
	for _, sec := range sections {
		for _, f := range sec.Fields {
			byID[f.ID] = f
		}
	}

	for _, sec := range sections {
		for _, f := range sec.Fields {
			c := f.RequiredWhen
			if c == nil {
				continue
			}
			ref, ok := byID[c.Field]
			switch {
			case !ok:
				return Invalid("field %q depends on missing field %q", f.ID, c.Field)
			case ref.ID == f.ID:
				return Invalid("field %q cannot depend on itself", f.ID)
			case !ref.Type.IsChoice():
				return Invalid("field %q depends on %q, which is not a choice field", f.ID, c.Field)
			case !slices.Contains(ref.Choices, c.Equals):
				return Invalid("field %q depends on %q being %q, which is not one of its choices", f.ID, c.Field, c.Equals)
			}
		}
	}
	return nil
}

// Holds reports whether a, the answer given to the condition's field, makes
// the condition true. Unknown answers never do.
func (c Condition) Holds(a Answer) bool {
	if a.IsUnknown() {
		return false
	}
	switch a.Type {
	case TypeSingleChoice:
		return a.Choice == c.Equals
	case TypeMultiChoice:
		return slices.Contains(a.Choices, c.Equals)
	}
	return false
}

// Field builds the field for a validated spec under the given ID.
func (spec FieldSpec) Field(id string) Field {
	return Field{
		ID:           id,
		Label:        strings.TrimSpace(spec.Label),
		HelpText:     spec.HelpText,
		Type:         spec.Type,
		Required:     spec.Required,
		AllowUnknown: spec.AllowUnknown,
		Choices:      slices.Clone(spec.Choices),
		Min:          spec.Min,
		Max:          spec.Max,
		RequiredWhen: cloneCondition(spec.RequiredWhen),
	}
}

func cloneCondition(c *Condition) *Condition {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

// Check tells why an answer is not acceptable for f, or returns "" when it is.
func (f Field) Check(a Answer) Reason {
	if a.Type != f.Type {
		return ReasonTypeMismatch
	}
	if a.IsUnknown() {
		if !f.AllowUnknown {
			return ReasonUnknownNotAllowed
		}
		return ""
	}

	switch f.Type {
	case TypeSingleChoice:
		if !slices.Contains(f.Choices, a.Choice) {
			return ReasonTypeMismatch
		}
	case TypeMultiChoice:
		seen := make(map[string]bool, len(a.Choices))
		for _, c := range a.Choices {
			if seen[c] || !slices.Contains(f.Choices, c) {
				return ReasonTypeMismatch
			}
			seen[c] = true
		}
	case TypeNumber:
		if (f.Min != nil && a.Number < *f.Min) || (f.Max != nil && a.Number > *f.Max) {
			return ReasonOutOfRange
		}
	}
	return ""
}
