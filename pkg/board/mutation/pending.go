// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutation

import (
	"context"
	"sync"

	"github.com/anhmake/dashhub/pkg/board"
)

// Op is the kind of change a mutation applies.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// State is the lifecycle position of a PendingMutation.
//
//	applied ──remote ok──▶ confirmed ──reload ok──▶ resynced
//	   │
//	   └──remote failed──▶ rolled-back
//
// A failed reload leaves the mutation confirmed with the optimistic state
// in place.
type State string

const (
	StateApplied    State = "applied"
	StateConfirmed  State = "confirmed"
	StateResynced   State = "resynced"
	StateRolledBack State = "rolled-back"
)

// snapshot is the entity as it was before a local change. Inserts carry
// nothing; rollback only needs the id to remove. Rollback undoes this one
// change and leaves the rest of the state alone, so a resync that landed
// while the mutation was in flight survives it.
type snapshot struct {
	// sectionID is the section that held the card before the change.
	sectionID string
	card      *board.Card
	section   *board.Section
}

// PendingMutation is one in-flight optimistic change.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type PendingMutation struct {
	// Op is the change kind.
	Op Op

	// Target names the collection touched, e.g. "sections" or
	// "sections[s1].cards".
	Target string

	// EntityID is the id used locally. Inserted cards carry a temporary
	// "tmp-" id until the reload replaces it.
	EntityID string

	// Entity is the locally applied record (board.Card or board.Section).
	Entity any

	snap snapshot
	done chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

func newPending(op Op, target, id string, entity any, snap snapshot) *PendingMutation {
	return &PendingMutation{
		Op:       op,
		Target:   target,
		EntityID: id,
		Entity:   entity,
		snap:     snap,
		done:     make(chan struct{}),
		state:    StateApplied,
	}
}

// State returns the current lifecycle state.
func (p *PendingMutation) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the remote failure after a rollback, nil otherwise.
func (p *PendingMutation) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once the mutation reaches a final state.
func (p *PendingMutation) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until reconciliation finishes and returns the remote error,
// if any.
func (p *PendingMutation) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PendingMutation) transition(s State, err error) {
	p.mu.Lock()
	p.state = s
	if err != nil {
		p.err = err
	}
	p.mu.Unlock()
}

func (p *PendingMutation) finish() {
	close(p.done)
}
