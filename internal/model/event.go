// internal/model/event.go
package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotScalar = errors.New("value must be a string, number or boolean")

// Text is a payload value destined for a TEXT column. Strings are kept as is,
// numbers and booleans keep their JSON literal (7 becomes "7").
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return ErrNotScalar
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		return fmt.Errorf("%w, got %s", ErrNotScalar, b)
	default:
		*t = Text(b)
	}
	return nil
}

// Event is the JSON payload delivered on the ingestion queue. Fields are
// pointers so that an absent key and an explicit null both decode to nil.
// An empty string is a present value.
type Event struct {
	UserID *Text `json:"user_id" validate:"required"`
	Email  *Text `json:"email" validate:"required"`
	Name   *Text `json:"name" validate:"required"`
}

// Record builds the row for a validated event.
func (e *Event) Record(id uuid.UUID) *Record {
	return &Record{
		ID:     id,
		UserID: string(*e.UserID),
		Email:  string(*e.Email),
		Name:   string(*e.Name),
	}
}
