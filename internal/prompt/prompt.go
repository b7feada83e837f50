// Package prompt defines the boundary between the rule engine and whatever
// front-end asks the user to resolve an unknown value.
//
// A Prompter answers exactly one Request at a time. Front-ends report a
// user who closes the form without answering as ErrAbandoned.
package prompt

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrAbandoned means the user dismissed the request without answering.
	ErrAbandoned = errors.New("prompt abandoned")
	// ErrBusy is returned when a request is issued while another is live.
	ErrBusy = errors.New("prompt already pending")
	// ErrClosed is returned by a Channel after Close.
	ErrClosed = errors.New("prompt channel closed")
)

// Kind tells front-ends which rule a request is going to create.
type Kind string

const (
	KindTitle    Kind = "title"
	KindLocation Kind = "location"
)

// Field is one free-form text input of a request.
type Field struct {
	Placeholder string `json:"placeholder"`
}

// Request asks the user for the two values of a rule.
type Request struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Key     string   `json:"key"`
	Context string   `json:"context"`
	Fields  [2]Field `json:"fields"`
}

// NewRequest builds a request with a fresh ID.
func NewRequest(kind Kind, key, text string, placeholders [2]string) Request {
	return Request{
		ID:      uuid.New().String(),
		Kind:    kind,
		Key:     key,
		Context: text,
		Fields: [2]Field{
			{Placeholder: placeholders[0]},
			{Placeholder: placeholders[1]},
		},
	}
}

// Response carries the two field values, in field order.
type Response struct {
	Values [2]string `json:"values"`
}

// Prompter resolves a single request, blocking until the user answers or
// abandons it.
type Prompter interface {
	Ask(ctx context.Context, req Request) (Response, error)
}

// Func adapts a plain function to Prompter.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Ask(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Refuse is a Prompter for unattended runs: every request is abandoned.
var Refuse Prompter = Func(func(context.Context, Request) (Response, error) {
	return Response{}, ErrAbandoned
})
