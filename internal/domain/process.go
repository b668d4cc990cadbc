package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProcessKind selects which workflow a process drives.
type ProcessKind string

// ProcessKind values.
const (
	ProcessKindMapping   ProcessKind = "MAPPING"
	ProcessKindRevision  ProcessKind = "REVISION"
	ProcessKindDiagnosis ProcessKind = "DIAGNOSIS"
)

// ProcessState is the lifecycle state of a process.
type ProcessState string

// ProcessState values.
const (
	ProcessStateCreated    ProcessState = "CREATED"
	ProcessStateInProgress ProcessState = "IN_PROGRESS"
	ProcessStateFinished   ProcessState = "FINISHED"
)

// Process is the governing record for one mapping, revision or diagnosis campaign.
type Process struct {
	ID          string
	Description string
	Kind        ProcessKind
	State       ProcessState
	Deadline    time.Time
	UnitIDs     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// ProcessInput holds input values for NewProcess.
type ProcessInput struct {
	ID          string
	Description string
	Kind        ProcessKind
	Deadline    time.Time
	UnitIDs     []string
}

// NewProcess constructs a process in the CREATED state.
func NewProcess(in ProcessInput, now time.Time) (Process, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Description = strings.TrimSpace(in.Description)
	if in.ID == "" {
		return Process{}, ErrInvalidID
	}
	if in.Description == "" {
		return Process{}, ErrInvalidDescription
	}
	kind := NormalizeProcessKind(in.Kind)
	if !IsValidProcessKind(kind) {
		return Process{}, ErrInvalidKind
	}
	return Process{
		ID:          in.ID,
		Description: in.Description,
		Kind:        kind,
		State:       ProcessStateCreated,
		Deadline:    in.Deadline.UTC(),
		UnitIDs:     normalizeIDs(in.UnitIDs),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// NormalizeProcessKind canonicalizes a process kind.
func NormalizeProcessKind(kind ProcessKind) ProcessKind {
	return ProcessKind(strings.ToUpper(strings.TrimSpace(string(kind))))
}

// IsValidProcessKind reports whether kind is supported.
func IsValidProcessKind(kind ProcessKind) bool {
	switch kind {
	case ProcessKindMapping, ProcessKindRevision, ProcessKindDiagnosis:
		return true
	default:
		return false
	}
}

// PromotesMaps reports whether finishing a process of this kind publishes the unit maps.
func (k ProcessKind) PromotesMaps() bool {
	return k == ProcessKindMapping || k == ProcessKindRevision
}

// ClonesEffectiveMap reports whether subprocesses start from the unit's effective map.
func (k ProcessKind) ClonesEffectiveMap() bool {
	return k == ProcessKindRevision || k == ProcessKindDiagnosis
}

// UpdateDetails edits description, deadline and participants while the process is CREATED.
func (p *Process) UpdateDetails(description string, deadline time.Time, unitIDs []string, now time.Time) error {
	if err := p.requireState(ProcessStateCreated); err != nil {
		return err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrInvalidDescription
	}
	p.Description = description
	p.Deadline = deadline.UTC()
	p.UnitIDs = normalizeIDs(unitIDs)
	p.UpdatedAt = now.UTC()
	return nil
}

// CanDelete reports whether the process may still be removed.
func (p Process) CanDelete() error {
	return p.requireState(ProcessStateCreated)
}

// Start moves the process to IN_PROGRESS with the final participant list.
func (p *Process) Start(unitIDs []string, now time.Time) error {
	if err := p.requireState(ProcessStateCreated); err != nil {
		return err
	}
	ts := now.UTC()
	p.UnitIDs = normalizeIDs(unitIDs)
	p.State = ProcessStateInProgress
	p.StartedAt = &ts
	p.UpdatedAt = ts
	return nil
}

// Finish closes the process.
func (p *Process) Finish(now time.Time) error {
	if err := p.requireState(ProcessStateInProgress); err != nil {
		return err
	}
	ts := now.UTC()
	p.State = ProcessStateFinished
	p.FinishedAt = &ts
	p.UpdatedAt = ts
	return nil
}

func (p Process) requireState(want ProcessState) error {
	if p.State != want {
		return fmt.Errorf("%w: process %s is %s, expected %s", ErrInvalidState, p.ID, p.State, want)
	}
	return nil
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
