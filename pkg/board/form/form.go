// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package form turns modal input into mutation requests.
//
// # Description
//
// A Controller is opened with an Intent, receives the submitted Values,
// validates them into a board.CardInput or board.SectionInput and hands the
// request to a Delegate, usually a *mutation.Controller. Validation happens
// before any remote call.
//
// # State Machine
//
//	closed ──Open──▶ open ──Submit──▶ submitting ──ok──▶ closed
//	                  ▲                    │
//	                  └──────failed────────┘ (values retained)
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/mutation"
)

// State is the modal lifecycle position.
type State string

const (
	StateClosed     State = "closed"
	StateOpen       State = "open"
	StateSubmitting State = "submitting"
)

var (
	// ErrNotOpen is returned when Submit is called on a closed modal.
	ErrNotOpen = errors.New("form is not open")

	// ErrBusy is returned when Submit is called while a submission runs.
	ErrBusy = errors.New("form is submitting")
)

// Delegate performs the mutations. *mutation.Controller implements it.
type Delegate interface {
	AddCard(ctx context.Context, in board.CardInput) (*mutation.PendingMutation, error)
	EditCard(ctx context.Context, in board.CardInput) (*mutation.PendingMutation, error)
	AddSection(ctx context.Context, in board.SectionInput) (*mutation.PendingMutation, error)
	EditSection(ctx context.Context, in board.SectionInput) (*mutation.PendingMutation, error)
}

// Controller drives one modal.
//
// # Thread Safety
//
// Controller is safe for concurrent use. Only one submission runs at a time.
type Controller struct {
	delegate Delegate

	mu       sync.Mutex
	state    State
	intent   Intent
	retained Values
	lastErr  error
}

// New creates a closed controller.
func New(delegate Delegate) *Controller {
	return &Controller{delegate: delegate, state: StateClosed}
}

// Open shows the modal for intent, replacing anything already open.
func (c *Controller) Open(intent Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateOpen
	c.intent = intent
	c.retained = intent.Initial()
	c.lastErr = nil
}

// Close hides the modal and drops its values.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	c.intent = nil
	c.retained = nil
	c.lastErr = nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Intent returns the open intent, or nil when closed.
func (c *Controller) Intent() Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent
}

// Values returns the values shown in the form: the prefill after Open, the
// last submission after a failure.
func (c *Controller) Values() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retained.Clone()
}

// LastError returns the error of the last failed submission.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit validates v, delegates the mutation and waits for it to settle.
//
// # Description
//
// The modal closes only when the delegate's mutation reconciles without
// error. Any failure, validation or remote, leaves the modal open with v
// retained and is returned to the caller.
//
// # Outputs
//
//   - error: board.ErrValidation (wrapped) before any remote call,
//     ErrNotOpen, ErrBusy, or the mutation's remote error.
func (c *Controller) Submit(ctx context.Context, v Values) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrNotOpen
	case StateSubmitting:
		c.mu.Unlock()
		return ErrBusy
	}
	intent := c.intent
	c.retained = v.Clone()
	c.state = StateSubmitting
	c.mu.Unlock()

	err := c.dispatch(ctx, intent, v)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateOpen
		c.lastErr = err
		return err
	}
	c.state = StateClosed
	c.intent = nil
	c.retained = nil
	c.lastErr = nil
	return nil
}

func (c *Controller) dispatch(ctx context.Context, intent Intent, v Values) error {
	var (
		p   *mutation.PendingMutation
		err error
	)
	switch in := intent.(type) {
	case AddCard:
		req, verr := CardRequest(in.SectionID, "", v)
		if verr != nil {
			return verr
		}
		p, err = c.delegate.AddCard(ctx, req)
	case EditCard:
		req, verr := CardRequest(in.Card.SectionID, in.Card.ID, v)
		if verr != nil {
			return verr
		}
		p, err = c.delegate.EditCard(ctx, req)
	case AddSection:
		req, verr := SectionRequest("", in.ParentCardID, v)
		if verr != nil {
			return verr
		}
		p, err = c.delegate.AddSection(ctx, req)
	case EditSection:
		req, verr := SectionRequest(in.Section.ID, in.Section.ParentCardID, v)
		if verr != nil {
			return verr
		}
		p, err = c.delegate.EditSection(ctx, req)
	default:
		return fmt.Errorf("unsupported intent %T", intent)
	}
	if err != nil {
		return err
	}
	return p.Wait(ctx)
}

// =============================================================================
// Request Builders
// =============================================================================

// CardRequest builds and validates a card request from form values.
//
// Title and description are required, url only for url cards. The
// "web-link" icon choice takes the icon from icon_url. An empty icon falls
// back to board.DefaultIcon.
func CardRequest(sectionID, cardID string, v Values) (board.CardInput, error) {
	icon := strings.TrimSpace(v[FieldIcon])
	if icon == IconWebLink {
		icon = strings.TrimSpace(v[FieldIconURL])
	}
	in := board.CardInput{
		ID:          cardID,
		SectionID:   sectionID,
		Title:       v[FieldTitle],
		Description: strings.TrimSpace(v[FieldDescription]),
		Type:        board.CardType(strings.TrimSpace(v[FieldType])),
		URL:         v[FieldURL],
		Icon:        icon,
		Visibility:  board.Visibility(strings.TrimSpace(v[FieldVisibility])),
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return board.CardInput{}, err
	}
	if in.Description == "" {
		return board.CardInput{}, fmt.Errorf("%w: description is required", board.ErrValidation)
	}
	return in, nil
}

// SectionRequest builds and validates a section request. An empty or
// missing section_order leaves the order unset.
func SectionRequest(sectionID string, parentCardID *string, v Values) (board.SectionInput, error) {
	in := board.SectionInput{
		ID:           sectionID,
		Title:        strings.TrimSpace(v[FieldTitle]),
		ParentCardID: parentCardID,
	}
	if raw := strings.TrimSpace(v[FieldSectionOrder]); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return board.SectionInput{}, fmt.Errorf("%w: section_order must be a number", board.ErrValidation)
		}
		in.SectionOrder = &order
	}
	if in.Title == "" {
		return board.SectionInput{}, fmt.Errorf("%w: title is required", board.ErrValidation)
	}
	// New sections get their id from the mutation controller.
	if sectionID == "" {
		return in, nil
	}
	if err := in.Validate(); err != nil {
		return board.SectionInput{}, err
	}
	return in, nil
}
