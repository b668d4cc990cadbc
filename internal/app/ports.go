package app

import (
	"context"

	"github.com/hylla/sgc/internal/domain"
)

// Store holds the persistence operations the service performs, inside or outside a transaction.
type Store interface {
	CreateProcess(context.Context, domain.Process) error
	UpdateProcess(context.Context, domain.Process) error
	GetProcess(context.Context, string) (domain.Process, error)
	ListProcesses(context.Context) ([]domain.Process, error)
	DeleteProcess(context.Context, string) error

	CreateSubprocess(context.Context, domain.Subprocess) error
	// UpdateSubprocess persists s when the stored version still equals s.Version and
	// bumps it; a stale version yields ErrConflict.
	UpdateSubprocess(context.Context, domain.Subprocess) error
	GetSubprocess(context.Context, string) (domain.Subprocess, error)
	ListSubprocesses(ctx context.Context, processID string) ([]domain.Subprocess, error)
	ListActiveSubprocessesByUnit(ctx context.Context, unitID string) ([]domain.Subprocess, error)

	CreateMap(context.Context, domain.Map) error
	UpdateMap(context.Context, domain.Map) error
	GetMap(context.Context, string) (domain.Map, error)
	CreateActivity(context.Context, domain.Activity) error
	UpdateActivity(context.Context, domain.Activity) error
	DeleteActivity(context.Context, string) error
	GetActivity(context.Context, string) (domain.Activity, error)
	ListActivities(ctx context.Context, mapID string) ([]domain.Activity, error)
	CreateKnowledge(context.Context, domain.Knowledge) error
	GetKnowledge(context.Context, string) (domain.Knowledge, error)
	DeleteKnowledge(context.Context, string) error
	ReplaceCompetencies(ctx context.Context, mapID string, competencies []domain.Competency, links []domain.CompetencyLink) error
	ListCompetencies(ctx context.Context, mapID string) ([]domain.Competency, []domain.CompetencyLink, error)
	GetEffectiveMap(ctx context.Context, unitID string) (domain.EffectiveMap, error)
	SetEffectiveMap(context.Context, domain.EffectiveMap) error

	CreateMovement(context.Context, domain.Movement) error
	ListMovements(ctx context.Context, subprocessID string) ([]domain.Movement, error)
	CreateAnalysis(context.Context, domain.Analysis) error
	ListAnalyses(ctx context.Context, subprocessID string) ([]domain.Analysis, error)
}

// Repository is a Store that can also run a function atomically.
// Everything fn writes is committed together or not at all.
type Repository interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// UnitDirectory resolves the organizational hierarchy.
type UnitDirectory interface {
	UnitSnapshot(context.Context) (*domain.UnitTree, error)
}

// EventPublisher receives workflow events after their transaction committed.
type EventPublisher interface {
	Publish(context.Context, domain.Event) error
}

// Metrics observes transition outcomes.
type Metrics interface {
	TransitionObserved(operation string, err error)
}

// Logger is the structured logger the service writes warnings to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// StaticDirectory serves a fixed unit tree.
type StaticDirectory struct {
	Tree *domain.UnitTree
}

// UnitSnapshot returns the fixed tree.
func (d StaticDirectory) UnitSnapshot(context.Context) (*domain.UnitTree, error) {
	if d.Tree == nil {
		return domain.NewUnitTree(nil)
	}
	return d.Tree, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) error { return nil }

type noopMetrics struct{}

func (noopMetrics) TransitionObserved(string, error) {}
