package domain

import "time"

// EventKind names a workflow event published after a committed transition.
type EventKind string

// EventKind values.
const (
	EventProcessStarted      EventKind = "process.started"
	EventProcessFinished     EventKind = "process.finished"
	EventCadastroSubmitted   EventKind = "cadastro.submitted"
	EventCadastroReturned    EventKind = "cadastro.returned"
	EventCadastroAccepted    EventKind = "cadastro.accepted"
	EventCadastroHomologated EventKind = "cadastro.homologated"
	EventMapSubmitted        EventKind = "map.submitted"
	EventMapValidated        EventKind = "map.validated"
	EventMapSuggested        EventKind = "map.suggested"
	EventMapReturned         EventKind = "map.returned"
	EventMapAccepted         EventKind = "map.accepted"
	EventMapHomologated      EventKind = "map.homologated"
	EventDiagnosisConcluded  EventKind = "diagnosis.concluded"
)

// Event describes something that happened to a process or subprocess.
// RecipientUnitID is the unit whose people should hear about a subprocess event;
// UnitIDs carries the participants of process-level events.
type Event struct {
	Kind               EventKind
	ProcessID          string
	ProcessDescription string
	SubprocessID       string
	UnitID             string
	RecipientUnitID    string
	UnitIDs            []string
	ActorID            string
	Note               string
	OccurredAt         time.Time
}

// IsProcessLevel reports whether the event concerns the whole process.
func (e Event) IsProcessLevel() bool {
	return e.Kind == EventProcessStarted || e.Kind == EventProcessFinished
}
