package domain

import (
	"slices"
	"strings"
	"time"
)

// SubprocessState is a concrete, kind-specific subprocess state.
type SubprocessState string

// Mapping states.
const (
	StateNotStarted          SubprocessState = "NOT_STARTED"
	StateCadastroInProgress  SubprocessState = "CADASTRO_IN_PROGRESS"
	StateCadastroSubmitted   SubprocessState = "CADASTRO_SUBMITTED"
	StateCadastroHomologated SubprocessState = "CADASTRO_HOMOLOGATED"
	StateMapCreated          SubprocessState = "MAP_CREATED"
	StateMapSubmitted        SubprocessState = "MAP_SUBMITTED"
	StateMapWithSuggestions  SubprocessState = "MAP_WITH_SUGGESTIONS"
	StateMapValidated        SubprocessState = "MAP_VALIDATED"
	StateMapHomologated      SubprocessState = "MAP_HOMOLOGATED"
)

// Revision states.
const (
	StateRevisionCadastroInProgress  SubprocessState = "REVISAO_CADASTRO_IN_PROGRESS"
	StateRevisionCadastroSubmitted   SubprocessState = "REVISAO_CADASTRO_SUBMITTED"
	StateRevisionCadastroHomologated SubprocessState = "REVISAO_CADASTRO_HOMOLOGATED"
	StateRevisionMapCreated          SubprocessState = "REVISAO_MAP_CREATED"
	StateRevisionMapSubmitted        SubprocessState = "REVISAO_MAP_SUBMITTED"
	StateRevisionMapWithSuggestions  SubprocessState = "REVISAO_MAP_WITH_SUGGESTIONS"
	StateRevisionMapValidated        SubprocessState = "REVISAO_MAP_VALIDATED"
	StateRevisionMapHomologated      SubprocessState = "REVISAO_MAP_HOMOLOGATED"
)

// Diagnosis states.
const (
	StateDiagnosisInProgress SubprocessState = "DIAGNOSTICO_IN_PROGRESS"
	StateDiagnosisConcluded  SubprocessState = "DIAGNOSTICO_CONCLUDED"
)

// Phase is the kind-independent position of a subprocess in the workflow.
type Phase string

// Phase values.
const (
	PhaseNotStarted          Phase = "not_started"
	PhaseCadastroInProgress  Phase = "cadastro_in_progress"
	PhaseCadastroSubmitted   Phase = "cadastro_submitted"
	PhaseCadastroHomologated Phase = "cadastro_homologated"
	PhaseMapCreated          Phase = "map_created"
	PhaseMapSubmitted        Phase = "map_submitted"
	PhaseMapWithSuggestions  Phase = "map_with_suggestions"
	PhaseMapValidated        Phase = "map_validated"
	PhaseMapHomologated      Phase = "map_homologated"
	PhaseDiagnosisInProgress Phase = "diagnosis_in_progress"
	PhaseDiagnosisConcluded  Phase = "diagnosis_concluded"
)

// StateSet maps workflow phases onto the concrete states of one process kind.
type StateSet struct {
	kind    ProcessKind
	byPhase map[Phase]SubprocessState
	byState map[SubprocessState]Phase
}

func newStateSet(kind ProcessKind, pairs map[Phase]SubprocessState) StateSet {
	set := StateSet{
		kind:    kind,
		byPhase: pairs,
		byState: make(map[SubprocessState]Phase, len(pairs)),
	}
	for phase, state := range pairs {
		set.byState[state] = phase
	}
	return set
}

var stateSets = map[ProcessKind]StateSet{
	ProcessKindMapping: newStateSet(ProcessKindMapping, map[Phase]SubprocessState{
		PhaseNotStarted:          StateNotStarted,
		PhaseCadastroInProgress:  StateCadastroInProgress,
		PhaseCadastroSubmitted:   StateCadastroSubmitted,
		PhaseCadastroHomologated: StateCadastroHomologated,
		PhaseMapCreated:          StateMapCreated,
		PhaseMapSubmitted:        StateMapSubmitted,
		PhaseMapWithSuggestions:  StateMapWithSuggestions,
		PhaseMapValidated:        StateMapValidated,
		PhaseMapHomologated:      StateMapHomologated,
	}),
	ProcessKindRevision: newStateSet(ProcessKindRevision, map[Phase]SubprocessState{
		PhaseNotStarted:          StateNotStarted,
		PhaseCadastroInProgress:  StateRevisionCadastroInProgress,
		PhaseCadastroSubmitted:   StateRevisionCadastroSubmitted,
		PhaseCadastroHomologated: StateRevisionCadastroHomologated,
		PhaseMapCreated:          StateRevisionMapCreated,
		PhaseMapSubmitted:        StateRevisionMapSubmitted,
		PhaseMapWithSuggestions:  StateRevisionMapWithSuggestions,
		PhaseMapValidated:        StateRevisionMapValidated,
		PhaseMapHomologated:      StateRevisionMapHomologated,
	}),
	ProcessKindDiagnosis: newStateSet(ProcessKindDiagnosis, map[Phase]SubprocessState{
		PhaseNotStarted:          StateNotStarted,
		PhaseDiagnosisInProgress: StateDiagnosisInProgress,
		PhaseDiagnosisConcluded:  StateDiagnosisConcluded,
	}),
}

// StatesFor returns the state set of a process kind.
func StatesFor(kind ProcessKind) (StateSet, bool) {
	set, ok := stateSets[NormalizeProcessKind(kind)]
	return set, ok
}

// State resolves the concrete state for a phase.
func (s StateSet) State(phase Phase) (SubprocessState, bool) {
	state, ok := s.byPhase[phase]
	return state, ok
}

// Phase resolves the phase of a concrete state.
func (s StateSet) Phase(state SubprocessState) (Phase, bool) {
	phase, ok := s.byState[state]
	return phase, ok
}

// Contains reports whether state is legal for the kind.
func (s StateSet) Contains(state SubprocessState) bool {
	_, ok := s.byState[state]
	return ok
}

// IsTerminal reports whether state ends the subprocess workflow.
func (s StateSet) IsTerminal(state SubprocessState) bool {
	phase, ok := s.byState[state]
	return ok && (phase == PhaseMapHomologated || phase == PhaseDiagnosisConcluded)
}

// Operation names a guarded subprocess transition.
type Operation string

// Operation values.
const (
	OpEditCadastro       Operation = "edit_cadastro"
	OpSubmitCadastro     Operation = "submit_cadastro"
	OpReturnCadastro     Operation = "return_cadastro"
	OpAcceptCadastro     Operation = "accept_cadastro"
	OpHomologateCadastro Operation = "homologate_cadastro"
	OpSaveMap            Operation = "save_map"
	OpSubmitMap          Operation = "submit_map"
	OpValidateMap        Operation = "validate_map"
	OpSuggestMap         Operation = "suggest_map"
	OpReturnMap          Operation = "return_map"
	OpAcceptMap          Operation = "accept_map"
	OpHomologateMap      Operation = "homologate_map"
	OpBeginDiagnosis     Operation = "begin_diagnosis"
	OpConcludeDiagnosis  Operation = "conclude_diagnosis"
)

// transitionRule lists the phases an operation may start from and the phase it lands in.
// An empty target keeps the current phase.
type transitionRule struct {
	from []Phase
	to   Phase
}

var transitions = map[Operation]transitionRule{
	OpEditCadastro:       {from: []Phase{PhaseNotStarted, PhaseCadastroInProgress}, to: PhaseCadastroInProgress},
	OpSubmitCadastro:     {from: []Phase{PhaseCadastroInProgress}, to: PhaseCadastroSubmitted},
	OpReturnCadastro:     {from: []Phase{PhaseCadastroSubmitted}, to: PhaseCadastroInProgress},
	OpAcceptCadastro:     {from: []Phase{PhaseCadastroSubmitted}},
	OpHomologateCadastro: {from: []Phase{PhaseCadastroSubmitted}, to: PhaseCadastroHomologated},
	OpSaveMap:            {from: []Phase{PhaseCadastroHomologated, PhaseMapCreated, PhaseMapWithSuggestions}, to: PhaseMapCreated},
	OpSubmitMap:          {from: []Phase{PhaseMapCreated}, to: PhaseMapSubmitted},
	OpValidateMap:        {from: []Phase{PhaseMapSubmitted}, to: PhaseMapValidated},
	OpSuggestMap:         {from: []Phase{PhaseMapSubmitted}, to: PhaseMapWithSuggestions},
	OpReturnMap:          {from: []Phase{PhaseMapValidated, PhaseMapWithSuggestions}, to: PhaseMapSubmitted},
	OpAcceptMap:          {from: []Phase{PhaseMapValidated, PhaseMapWithSuggestions}},
	OpHomologateMap:      {from: []Phase{PhaseMapValidated}, to: PhaseMapHomologated},
	OpBeginDiagnosis:     {from: []Phase{PhaseNotStarted}, to: PhaseDiagnosisInProgress},
	OpConcludeDiagnosis:  {from: []Phase{PhaseDiagnosisInProgress}, to: PhaseDiagnosisConcluded},
}

// Subprocess tracks one unit's progress inside a process.
type Subprocess struct {
	ID                string
	ProcessID         string
	Kind              ProcessKind
	UnitID            string
	MapID             string
	State             SubprocessState
	LocationUnitID    string
	Stage1Deadline    time.Time
	Stage1CompletedAt *time.Time
	Stage2Deadline    *time.Time
	Stage2CompletedAt *time.Time
	ImpactsVerifiedAt *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SubprocessInput holds input values for NewSubprocess.
type SubprocessInput struct {
	ID             string
	ProcessID      string
	Kind           ProcessKind
	UnitID         string
	MapID          string
	Stage1Deadline time.Time
}

// NewSubprocess constructs a subprocess in NOT_STARTED, held by its own unit.
func NewSubprocess(in SubprocessInput, now time.Time) (Subprocess, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProcessID = strings.TrimSpace(in.ProcessID)
	in.UnitID = strings.TrimSpace(in.UnitID)
	in.MapID = strings.TrimSpace(in.MapID)
	if in.ID == "" || in.ProcessID == "" || in.UnitID == "" || in.MapID == "" {
		return Subprocess{}, ErrInvalidID
	}
	kind := NormalizeProcessKind(in.Kind)
	if !IsValidProcessKind(kind) {
		return Subprocess{}, ErrInvalidKind
	}
	return Subprocess{
		ID:             in.ID,
		ProcessID:      in.ProcessID,
		Kind:           kind,
		UnitID:         in.UnitID,
		MapID:          in.MapID,
		State:          StateNotStarted,
		LocationUnitID: in.UnitID,
		Stage1Deadline: in.Stage1Deadline.UTC(),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}, nil
}

// Phase returns the kind-independent phase of the current state.
func (s Subprocess) Phase() Phase {
	set, ok := StatesFor(s.Kind)
	if !ok {
		return ""
	}
	phase, _ := set.Phase(s.State)
	return phase
}

// IsTerminal reports whether the subprocess finished its workflow.
func (s Subprocess) IsTerminal() bool {
	set, ok := StatesFor(s.Kind)
	return ok && set.IsTerminal(s.State)
}

// IsRevision reports whether the subprocess revises an effective map.
func (s Subprocess) IsRevision() bool {
	return s.Kind == ProcessKindRevision
}

// Allows reports whether op is legal from the current state.
func (s Subprocess) Allows(op Operation) bool {
	return s.Check(op) == nil
}

// Check returns a *TransitionError when op is not legal from the current state.
func (s Subprocess) Check(op Operation) error {
	_, err := s.target(op)
	return err
}

// Apply performs the state change for op and stamps the stage timestamps it owns.
func (s *Subprocess) Apply(op Operation, now time.Time) error {
	next, err := s.target(op)
	if err != nil {
		return err
	}
	ts := now.UTC()
	switch op {
	case OpSubmitCadastro:
		s.Stage1CompletedAt = &ts
	case OpReturnCadastro:
		s.Stage1CompletedAt = nil
	case OpValidateMap, OpSuggestMap:
		s.Stage2CompletedAt = &ts
	case OpReturnMap:
		s.Stage2CompletedAt = nil
	}
	s.State = next
	s.UpdatedAt = ts
	return nil
}

// MoveTo records that responsibility for the subprocess passed to unitID.
func (s *Subprocess) MoveTo(unitID string) {
	s.LocationUnitID = strings.TrimSpace(unitID)
}

func (s Subprocess) target(op Operation) (SubprocessState, error) {
	rule, ok := transitions[op]
	set, known := StatesFor(s.Kind)
	if !ok || !known {
		return "", &TransitionError{Operation: op, From: s.State}
	}
	allowed := make([]SubprocessState, 0, len(rule.from))
	for _, phase := range rule.from {
		if state, ok := set.State(phase); ok {
			allowed = append(allowed, state)
		}
	}
	current, ok := set.Phase(s.State)
	if !ok || !slices.Contains(rule.from, current) {
		return "", &TransitionError{Operation: op, From: s.State, Allowed: allowed}
	}
	if rule.to == "" {
		return s.State, nil
	}
	next, ok := set.State(rule.to)
	if !ok {
		return "", &TransitionError{Operation: op, From: s.State, Allowed: allowed}
	}
	return next, nil
}
