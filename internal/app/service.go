package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/sgc/internal/domain"
)

// defaultMapDeadlineDays is the stage-2 window used when none is configured.
const defaultMapDeadlineDays = 15

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	MapDeadlineDays int
	Events          EventPublisher
	Metrics         Metrics
	Logger          Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service runs the process lifecycle, the subprocess workflow and impact verification.
type Service struct {
	repo            Repository
	units           UnitDirectory
	idGen           IDGenerator
	clock           Clock
	events          EventPublisher
	metrics         Metrics
	logger          Logger
	mapDeadlineDays int
}

// NewService constructs a new value for this package.
func NewService(repo Repository, units UnitDirectory, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if units == nil {
		units = StaticDirectory{}
	}
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = charmLog.New(io.Discard)
	}
	if cfg.MapDeadlineDays <= 0 {
		cfg.MapDeadlineDays = defaultMapDeadlineDays
	}
	return &Service{
		repo:            repo,
		units:           units,
		idGen:           idGen,
		clock:           clock,
		events:          cfg.Events,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		mapDeadlineDays: cfg.MapDeadlineDays,
	}
}

// publish hands committed events to the publisher. Failures are logged, never returned.
func (s *Service) publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("publish workflow event failed", "kind", event.Kind, "process_id", event.ProcessID, "subprocess_id", event.SubprocessID, "err", err)
		}
	}
}

// subprocessScope is everything a guarded transition needs, loaded inside its transaction.
type subprocessScope struct {
	store   Store
	process domain.Process
	sub     domain.Subprocess
	tree    *domain.UnitTree
	unit    domain.Unit
	now     time.Time
}

// superiorOf returns the superior of unitID or an invariant violation naming the unit.
func (sc *subprocessScope) superiorOf(unitID string) (domain.Unit, error) {
	superior, ok := sc.tree.Superior(unitID)
	if !ok {
		label := unitID
		if unit, found := sc.tree.Unit(unitID); found {
			label = unit.Label()
		}
		return domain.Unit{}, fmt.Errorf("%w: unit %s has no superior unit", domain.ErrInvariantViolated, label)
	}
	return superior, nil
}

// event builds a subprocess event addressed to recipientUnitID.
func (sc *subprocessScope) event(kind domain.EventKind, recipientUnitID string, actor domain.Actor, note string) domain.Event {
	return domain.Event{
		Kind:               kind,
		ProcessID:          sc.process.ID,
		ProcessDescription: sc.process.Description,
		SubprocessID:       sc.sub.ID,
		UnitID:             sc.sub.UnitID,
		RecipientUnitID:    recipientUnitID,
		ActorID:            actor.ID,
		Note:               note,
		OccurredAt:         sc.now,
	}
}

// transitionFunc mutates sc.sub and returns the events to publish after commit.
type transitionFunc func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error)

// runTransition loads the subprocess scope, applies fn and persists the subprocess with
// optimistic locking, all in one transaction.
func (s *Service) runTransition(ctx context.Context, op domain.Operation, subprocessID string, fn transitionFunc) (domain.Subprocess, error) {
	var (
		out    domain.Subprocess
		events []domain.Event
	)
	tree, err := s.units.UnitSnapshot(ctx)
	if err == nil {
		err = s.repo.InTx(ctx, func(store Store) error {
			sc, err := s.loadScope(ctx, store, tree, subprocessID)
			if err != nil {
				return err
			}
			events, err = fn(ctx, sc)
			if err != nil {
				return err
			}
			if err := store.UpdateSubprocess(ctx, sc.sub); err != nil {
				return err
			}
			sc.sub.Version++
			out = sc.sub
			return nil
		})
	}
	s.metrics.TransitionObserved(string(op), err)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("subprocess transition lost a concurrent update", "operation", op, "subprocess_id", subprocessID)
		}
		return domain.Subprocess{}, err
	}
	s.logger.Debug("subprocess transition committed", "operation", op, "subprocess_id", subprocessID, "state", out.State)
	s.publish(ctx, events...)
	return out, nil
}

// loadScope reads the subprocess and its process through store. The unit tree is read
// before the transaction opens so directories backed by the same database stay usable.
func (s *Service) loadScope(ctx context.Context, store Store, tree *domain.UnitTree, subprocessID string) (*subprocessScope, error) {
	sub, err := store.GetSubprocess(ctx, subprocessID)
	if err != nil {
		return nil, err
	}
	process, err := store.GetProcess(ctx, sub.ProcessID)
	if err != nil {
		return nil, err
	}
	if process.State != domain.ProcessStateInProgress {
		return nil, fmt.Errorf("%w: process %s is %s", domain.ErrInvalidState, process.ID, process.State)
	}
	unit, ok := tree.Unit(sub.UnitID)
	if !ok {
		return nil, fmt.Errorf("%w: unit %s of subprocess %s is not in the directory", domain.ErrInvariantViolated, sub.UnitID, sub.ID)
	}
	return &subprocessScope{
		store:   store,
		process: process,
		sub:     sub,
		tree:    tree,
		unit:    unit,
		now:     s.clock().UTC(),
	}, nil
}

func (s *Service) appendMovement(ctx context.Context, sc *subprocessScope, from, to, description string, actor domain.Actor) error {
	movement, err := domain.NewMovement(s.idGen(), sc.sub.ID, from, to, description, actor.ID, sc.now)
	if err != nil {
		return err
	}
	if err := sc.store.CreateMovement(ctx, movement); err != nil {
		return err
	}
	sc.sub.MoveTo(to)
	return nil
}

func (s *Service) appendAnalysis(ctx context.Context, sc *subprocessScope, in domain.AnalysisInput) error {
	in.ID = s.idGen()
	in.SubprocessID = sc.sub.ID
	analysis, err := domain.NewAnalysis(in, sc.now)
	if err != nil {
		return err
	}
	return sc.store.CreateAnalysis(ctx, analysis)
}

func accessDenied(actor domain.Actor, action string) error {
	return fmt.Errorf("%w: %s (%s of unit %s) cannot %s", domain.ErrAccessDenied, actor.ID, actor.Role, actor.UnitID, action)
}
