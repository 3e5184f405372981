package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// FieldKind is the input kind of a custom registration form field
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDropdown FieldKind = "dropdown"
	FieldCheckbox FieldKind = "checkbox"
	FieldRadio    FieldKind = "radio"
	FieldFile     FieldKind = "file"
)

// HasChoices reports whether the kind requires a choice list
func (k FieldKind) HasChoices() bool {
	return k == FieldDropdown || k == FieldCheckbox || k == FieldRadio
}

func (k FieldKind) valid() bool {
	switch k {
	case FieldText, FieldNumber, FieldDropdown, FieldCheckbox, FieldRadio, FieldFile:
		return true
	}
	return false
}

// FormField is one entry of a normal event's registration form
type FormField struct {
	Position int       `json:"position"`
	Kind     FieldKind `json:"kind"`
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Choices  []string  `json:"choices,omitempty"`
}

func (f FormField) hasChoice(v string) bool {
	for _, c := range f.Choices {
		if c == v {
			return true
		}
	}
	return false
}

// FormFields is the ordered form definition, stored as JSON
type FormFields []FormField

// Validate enforces unique names and the choice-list rules per kind
func (ff FormFields) Validate() error {
	seen := make(map[string]bool, len(ff))
	for _, f := range ff {
		if strings.TrimSpace(f.Name) == "" {
			return Fail(ErrValidationFailed, "form field at position %d has no name", f.Position)
		}
		if seen[f.Name] {
			return Fail(ErrValidationFailed, "duplicate form field name %q", f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.valid() {
			return Fail(ErrValidationFailed, "form field %q has unknown kind %q", f.Name, f.Kind)
		}
		if f.Kind.HasChoices() && len(f.Choices) == 0 {
			return Fail(ErrValidationFailed, "form field %q requires at least one choice", f.Name)
		}
		if !f.Kind.HasChoices() && len(f.Choices) > 0 {
			return Fail(ErrValidationFailed, "form field %q of kind %s cannot have choices", f.Name, f.Kind)
		}
	}
	return nil
}

// Sorted returns the fields ordered by position
func (ff FormFields) Sorted() FormFields {
	out := make(FormFields, len(ff))
	copy(out, ff)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Value implements driver.Valuer
func (ff FormFields) Value() (driver.Value, error) {
	if ff == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]FormField(ff))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (ff *FormFields) Scan(src interface{}) error {
	return scanJSON(src, (*[]FormField)(ff))
}

// FormValue is a submitted answer, typed by the kind of the field it answers.
// Text carries text, dropdown, radio and file values; Number is nil when a
// number field was left blank; Selected is empty for an unticked checkbox.
type FormValue struct {
	Kind     FieldKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Number   *float64  `json:"number,omitempty"`
	Selected []string  `json:"selected,omitempty"`
}

// FormResponses maps field name to its answer, stored as JSON
type FormResponses map[string]FormValue

// Value implements driver.Valuer
func (r FormResponses) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]FormValue(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *FormResponses) Scan(src interface{}) error {
	return scanJSON(src, (*map[string]FormValue)(r))
}

// ParseResponses validates raw answers against the form definition and
// reshapes them so every field has a value. Missing answers are filled with
// the blank value of the field's kind; unknown names and ill-typed values fail.
func ParseResponses(fields FormFields, raw map[string]json.RawMessage) (FormResponses, error) {
	byName := make(map[string]FormField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	for name := range raw {
		if _, ok := byName[name]; !ok {
			return nil, Fail(ErrValidationFailed, "unknown form field %q", name)
		}
	}

	out := make(FormResponses, len(fields))
	for _, f := range fields {
		v, err := parseValue(f, raw[f.Name])
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func parseValue(f FormField, msg json.RawMessage) (FormValue, error) {
	v := FormValue{Kind: f.Kind}
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return v, nil
	}

	switch f.Kind {
	case FieldText, FieldFile:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return v, Fail(ErrValidationFailed, "field %q expects a string", f.Name)
		}
		v.Text = s

	case FieldNumber:
		var n float64
		if err := json.Unmarshal(msg, &n); err == nil {
			v.Number = &n
			return v, nil
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return v, Fail(ErrValidationFailed, "field %q expects a number", f.Name)
		}
		if strings.TrimSpace(s) == "" {
			return v, nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return v, Fail(ErrValidationFailed, "field %q expects a number", f.Name)
		}
		v.Number = &n

	case FieldDropdown, FieldRadio:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return v, Fail(ErrValidationFailed, "field %q expects one of its choices", f.Name)
		}
		if s != "" && !f.hasChoice(s) {
			return v, Fail(ErrValidationFailed, "%q is not a choice of field %q", s, f.Name)
		}
		v.Text = s

	case FieldCheckbox:
		var b bool
		if err := json.Unmarshal(msg, &b); err == nil {
			if !b {
				return v, nil
			}
			// a lone tick box can only mean its one choice
			if len(f.Choices) != 1 {
				return v, Fail(ErrValidationFailed, "field %q has %d choices; send the selected ones as a list, not true", f.Name, len(f.Choices))
			}
			v.Selected = []string{f.Choices[0]}
			return v, nil
		}
		var selected []string
		if err := json.Unmarshal(msg, &selected); err != nil {
			var single string
			if err := json.Unmarshal(msg, &single); err != nil {
				return v, Fail(ErrValidationFailed, "field %q expects its selected choices", f.Name)
			}
			selected = []string{single}
		}
		for _, s := range selected {
			if !f.hasChoice(s) {
				return v, Fail(ErrValidationFailed, "%q is not a choice of field %q", s, f.Name)
			}
		}
		if len(selected) > 0 {
			v.Selected = selected
		}
	}
	return v, nil
}
