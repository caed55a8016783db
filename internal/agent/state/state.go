// Package state holds the session-state conventions shared by the telco agents.
//
// Every field is an ordered list of strings. Values are only ever appended;
// an existing entry is never overwritten.
package state

import (
	"errors"
	"fmt"

	"google.golang.org/adk/session"
)

// Well-known fields referenced by the default agent prompts.
const (
	FieldPostCode   = "post_code"
	FieldIssueType  = "issue_type"
	FieldDeviceType = "device_type"
	FieldDiagResult = "diag_result"
	FieldDevice     = "device"
)

// wellKnown are the fields the default prompts use.
var wellKnown = map[string]bool{
	FieldPostCode:   true,
	FieldIssueType:  true,
	FieldDeviceType: true,
	FieldDiagResult: true,
	FieldDevice:     true,
}

// OtherField labels fields outside the well-known set in metrics.
const OtherField = "other"

// MetricLabel returns field when it is well known and OtherField otherwise,
// keeping label cardinality bounded whatever names the model invents.
func MetricLabel(field string) string {
	if wellKnown[field] {
		return field
	}
	return OtherField
}

// ErrEmptyField is returned when a field name is blank.
var ErrEmptyField = errors.New("state field name must not be empty")

// Append adds response to the list stored under field, creating the list when
// the field is absent. It returns the list as stored.
func Append(st session.State, field, response string) ([]string, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	current, err := Values(st, field)
	if err != nil {
		return nil, err
	}
	next := make([]string, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, response)
	if err := st.Set(field, next); err != nil {
		return nil, fmt.Errorf("failed to set state field %q: %w", field, err)
	}
	return next, nil
}

// Values returns the list stored under field, or nil when the field is absent.
// Lists that were round-tripped through JSON come back as []any and a lone
// string is treated as a one-element list.
func Values(st session.ReadonlyState, field string) ([]string, error) {
	raw, err := st.Get(field)
	if errors.Is(err, session.ErrStateKeyNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state field %q: %w", field, err)
	}
	return normalize(field, raw)
}

func normalize(field string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("state field %q: element %d has type %T, want string", field, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("state field %q has type %T, want a list of strings", field, raw)
	}
}

// Snapshot copies every list-valued field of st. Fields holding other types
// are skipped.
func Snapshot(st session.ReadonlyState) map[string][]string {
	out := make(map[string][]string)
	for key, raw := range st.All() {
		values, err := normalize(key, raw)
		if err != nil || values == nil {
			continue
		}
		out[key] = values
	}
	return out
}
