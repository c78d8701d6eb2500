package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type AnswerState string

const (
	StateAnswered AnswerState = "answered"
	// StateUnknown is an explicit "unknown" from the respondent. It is not
	// the same as leaving the field out, which means unanswered.
	StateUnknown AnswerState = "unknown"
)

// Answer holds one value for a field. Only the member matching Type is set,
// and none are set when State is StateUnknown.
type Answer struct {
	Type    FieldType
	State   AnswerState
	Text    string
	Number  float64
	Choice  string
	Choices []string
	Date    time.Time
}

func TextAnswer(s string) Answer {
	return Answer{Type: TypeText, State: StateAnswered, Text: s}
}

func NumberAnswer(n float64) Answer {
	return Answer{Type: TypeNumber, State: StateAnswered, Number: n}
}

func ChoiceAnswer(c string) Answer {
	return Answer{Type: TypeSingleChoice, State: StateAnswered, Choice: c}
}

func ChoicesAnswer(cs ...string) Answer {
	if cs == nil {
		cs = []string{}
	}
	return Answer{Type: TypeMultiChoice, State: StateAnswered, Choices: cs}
}

func DateAnswer(t time.Time) Answer {
	y, m, d := t.Date()
	return Answer{Type: TypeDate, State: StateAnswered, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func UnknownAnswer(t FieldType) Answer {
	return Answer{Type: t, State: StateUnknown}
}

func (a Answer) IsUnknown() bool {
	return a.State == StateUnknown
}

var unknownMarker = []byte(`{"unknown":true}`)

// MarshalJSON writes the bare value for the answer's type, or the unknown
// marker object.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsUnknown() {
		return unknownMarker, nil
	}
	switch a.Type {
	case TypeText:
		return json.Marshal(a.Text)
	case TypeNumber:
		return json.Marshal(a.Number)
	case TypeSingleChoice:
		return json.Marshal(a.Choice)
	case TypeMultiChoice:
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	case TypeDate:
		return json.Marshal(a.Date.Format(DateLayout))
	}
	return nil, errors.New("answer: unsupported type " + strconv.Quote(string(a.Type)))
}

var ErrTypeMismatch = errors.New("answer does not match field type")

// IsNull reports whether raw is absent or JSON null; both mean unanswered.
func IsNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeAnswer parses a raw JSON value as an answer to a field of type t.
// Only the shape is checked here; choice membership and bounds are checked
// by Field.Check.
func DecodeAnswer(t FieldType, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var marker struct {
			Unknown bool `json:"unknown"`
		}
		if err := json.Unmarshal(raw, &marker); err != nil || !marker.Unknown {
			return Answer{}, ErrTypeMismatch
		}
		return UnknownAnswer(t), nil
	}

	switch t {
	case TypeText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Answer{}, ErrTypeMismatch
		}
		return TextAnswer(s), nil

	case TypeNumber:
		n, err := decodeNumber(raw)
		if err != nil {
			return Answer{}, err
		}
		return NumberAnswer(n), nil

	case TypeSingleChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Answer{}, ErrTypeMismatch
		}
		return ChoiceAnswer(s), nil

	case TypeMultiChoice:
		var cs []string
		if err := json.Unmarshal(raw, &cs); err != nil || cs == nil {
			return Answer{}, ErrTypeMismatch
		}
		return ChoicesAnswer(cs...), nil

	case TypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Answer{}, ErrTypeMismatch
		}
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return Answer{}, ErrTypeMismatch
		}
		return DateAnswer(d), nil
	}
	return Answer{}, ErrTypeMismatch
}

// numbers may arrive as JSON numbers or as numeric strings from form posts
func decodeNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, ErrTypeMismatch
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, ErrTypeMismatch
	}
	return n, nil
}
