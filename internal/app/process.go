package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/sgc/internal/domain"
)

// CreateProcessInput holds input values for create process operations.
type CreateProcessInput struct {
	Description string
	Kind        domain.ProcessKind
	Deadline    time.Time
	UnitIDs     []string
}

// CreateProcess creates a process in the CREATED state.
func (s *Service) CreateProcess(ctx context.Context, in CreateProcessInput) (domain.Process, error) {
	process, err := domain.NewProcess(domain.ProcessInput{
		ID:          s.idGen(),
		Description: in.Description,
		Kind:        in.Kind,
		Deadline:    in.Deadline,
		UnitIDs:     in.UnitIDs,
	}, s.clock())
	if err != nil {
		return domain.Process{}, err
	}
	if err := s.repo.CreateProcess(ctx, process); err != nil {
		return domain.Process{}, err
	}
	return process, nil
}

// UpdateProcessInput holds input values for update process operations.
type UpdateProcessInput struct {
	ProcessID   string
	Description string
	Deadline    time.Time
	UnitIDs     []string
}

// UpdateProcess edits a process that has not started yet.
func (s *Service) UpdateProcess(ctx context.Context, in UpdateProcessInput) (domain.Process, error) {
	process, err := s.repo.GetProcess(ctx, in.ProcessID)
	if err != nil {
		return domain.Process{}, err
	}
	if err := process.UpdateDetails(in.Description, in.Deadline, in.UnitIDs, s.clock()); err != nil {
		return domain.Process{}, err
	}
	if err := s.repo.UpdateProcess(ctx, process); err != nil {
		return domain.Process{}, err
	}
	return process, nil
}

// DeleteProcess removes a process that has not started yet.
func (s *Service) DeleteProcess(ctx context.Context, processID string) error {
	process, err := s.repo.GetProcess(ctx, processID)
	if err != nil {
		return err
	}
	if err := process.CanDelete(); err != nil {
		return err
	}
	return s.repo.DeleteProcess(ctx, processID)
}

// GetProcess returns one process.
func (s *Service) GetProcess(ctx context.Context, processID string) (domain.Process, error) {
	return s.repo.GetProcess(ctx, processID)
}

// ListProcesses returns every process, newest first.
func (s *Service) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	return s.repo.ListProcesses(ctx)
}

// StartProcess validates the participating units, creates one subprocess and map per unit
// and moves the process to IN_PROGRESS. MAPPING processes use their configured participants
// and ignore unitIDs; REVISION and DIAGNOSIS processes require unitIDs.
// All unit problems are reported together in one *domain.ValidationError.
func (s *Service) StartProcess(ctx context.Context, processID string, unitIDs []string) (domain.Process, error) {
	var (
		out   domain.Process
		event domain.Event
	)
	tree, err := s.units.UnitSnapshot(ctx)
	if err != nil {
		return domain.Process{}, err
	}
	err = s.repo.InTx(ctx, func(store Store) error {
		process, err := store.GetProcess(ctx, processID)
		if err != nil {
			return err
		}
		if process.State != domain.ProcessStateCreated {
			return fmt.Errorf("%w: process %s is %s", domain.ErrInvalidState, process.ID, process.State)
		}

		participants := process.UnitIDs
		if process.Kind != domain.ProcessKindMapping {
			participants = uniqueIDs(unitIDs)
			if len(participants) == 0 {
				return domain.NewValidationError(fmt.Sprintf("a %s process needs an explicit unit list", process.Kind))
			}
		}
		if len(participants) == 0 {
			return domain.NewValidationError("process has no participating units")
		}

		effective, err := s.checkParticipants(ctx, store, process, tree, participants)
		if err != nil {
			return err
		}

		now := s.clock()
		if err := process.Start(participants, now); err != nil {
			return err
		}
		if err := store.UpdateProcess(ctx, process); err != nil {
			return err
		}
		for _, unitID := range process.UnitIDs {
			if err := s.openSubprocess(ctx, store, process, unitID, effective[unitID], now); err != nil {
				return err
			}
		}
		out = process
		event = domain.Event{
			Kind:               domain.EventProcessStarted,
			ProcessID:          process.ID,
			ProcessDescription: process.Description,
			UnitIDs:            append([]string(nil), process.UnitIDs...),
			OccurredAt:         now.UTC(),
		}
		return nil
	})
	s.metrics.TransitionObserved("start_process", err)
	if err != nil {
		return domain.Process{}, err
	}
	s.logger.Info("process started", "process_id", out.ID, "kind", out.Kind, "units", len(out.UnitIDs))
	s.publish(ctx, event)
	return out, nil
}

// checkParticipants gathers every reason a unit cannot join the process and returns the
// effective map of each unit when the kind clones one.
func (s *Service) checkParticipants(ctx context.Context, store Store, process domain.Process, tree *domain.UnitTree, unitIDs []string) (map[string]domain.EffectiveMap, error) {
	effective := make(map[string]domain.EffectiveMap, len(unitIDs))
	var problems []string
	for _, unitID := range unitIDs {
		unit, ok := tree.Unit(unitID)
		if !ok {
			problems = append(problems, fmt.Sprintf("unit %s does not exist", unitID))
			continue
		}
		if process.Kind.ClonesEffectiveMap() {
			current, err := store.GetEffectiveMap(ctx, unit.ID)
			switch {
			case errors.Is(err, ErrNotFound):
				problems = append(problems, fmt.Sprintf("unit %s has no effective map", unit.Label()))
			case err != nil:
				return nil, err
			default:
				effective[unit.ID] = current
			}
		}
		active, err := store.ListActiveSubprocessesByUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		for _, sub := range active {
			if sub.ProcessID == process.ID {
				continue
			}
			problems = append(problems, fmt.Sprintf("unit %s already participates in active process %s", unit.Label(), sub.ProcessID))
			break
		}
	}
	if len(problems) > 0 {
		return nil, domain.NewValidationError("units cannot join the process", problems...)
	}
	return effective, nil
}

// openSubprocess creates the map, subprocess and initiating movement for one unit.
func (s *Service) openSubprocess(ctx context.Context, store Store, process domain.Process, unitID string, source domain.EffectiveMap, now time.Time) error {
	subprocessID := s.idGen()
	competencyMap, err := domain.NewMap(s.idGen(), subprocessID, unitID, now)
	if err != nil {
		return err
	}
	if err := store.CreateMap(ctx, competencyMap); err != nil {
		return err
	}
	if process.Kind.ClonesEffectiveMap() {
		if err := s.cloneMap(ctx, store, source.MapID, competencyMap.ID); err != nil {
			return err
		}
	}
	sub, err := domain.NewSubprocess(domain.SubprocessInput{
		ID:             subprocessID,
		ProcessID:      process.ID,
		Kind:           process.Kind,
		UnitID:         unitID,
		MapID:          competencyMap.ID,
		Stage1Deadline: process.Deadline,
	}, now)
	if err != nil {
		return err
	}
	if err := store.CreateSubprocess(ctx, sub); err != nil {
		return err
	}
	movement, err := domain.NewMovement(s.idGen(), sub.ID, "", unitID, "Process started", "", now)
	if err != nil {
		return err
	}
	return store.CreateMovement(ctx, movement)
}

// cloneMap copies activities, knowledge, competencies and links of sourceMapID into targetMapID.
// Copied activities keep the source activity id as OriginID.
func (s *Service) cloneMap(ctx context.Context, store Store, sourceMapID, targetMapID string) error {
	activities, err := store.ListActivities(ctx, sourceMapID)
	if err != nil {
		return err
	}
	activityIDs := make(map[string]string, len(activities))
	for _, source := range activities {
		copied, err := domain.NewActivity(s.idGen(), targetMapID, source.Description)
		if err != nil {
			return err
		}
		copied.OriginID = source.ID
		if err := store.CreateActivity(ctx, copied); err != nil {
			return err
		}
		activityIDs[source.ID] = copied.ID
		for _, item := range source.Knowledge {
			knowledge, err := domain.NewKnowledge(s.idGen(), copied.ID, item.Description)
			if err != nil {
				return err
			}
			if err := store.CreateKnowledge(ctx, knowledge); err != nil {
				return err
			}
		}
	}

	competencies, links, err := store.ListCompetencies(ctx, sourceMapID)
	if err != nil {
		return err
	}
	competencyIDs := make(map[string]string, len(competencies))
	copiedCompetencies := make([]domain.Competency, 0, len(competencies))
	for _, source := range competencies {
		copied, err := domain.NewCompetency(s.idGen(), targetMapID, source.Description)
		if err != nil {
			return err
		}
		competencyIDs[source.ID] = copied.ID
		copiedCompetencies = append(copiedCompetencies, copied)
	}
	copiedLinks := make([]domain.CompetencyLink, 0, len(links))
	for _, link := range links {
		competencyID, okC := competencyIDs[link.CompetencyID]
		activityID, okA := activityIDs[link.ActivityID]
		if !okC || !okA {
			continue
		}
		copiedLinks = append(copiedLinks, domain.CompetencyLink{CompetencyID: competencyID, ActivityID: activityID})
	}
	return store.ReplaceCompetencies(ctx, targetMapID, copiedCompetencies, copiedLinks)
}

// FinishProcess closes a process whose subprocesses all reached a terminal state and
// promotes each unit's map to the effective map for MAPPING and REVISION processes.
func (s *Service) FinishProcess(ctx context.Context, processID string) (domain.Process, error) {
	var (
		out   domain.Process
		event domain.Event
	)
	tree, err := s.units.UnitSnapshot(ctx)
	if err != nil {
		return domain.Process{}, err
	}
	err = s.repo.InTx(ctx, func(store Store) error {
		process, err := store.GetProcess(ctx, processID)
		if err != nil {
			return err
		}
		if process.State != domain.ProcessStateInProgress {
			return fmt.Errorf("%w: process %s is %s", domain.ErrInvalidState, process.ID, process.State)
		}
		subs, err := store.ListSubprocesses(ctx, process.ID)
		if err != nil {
			return err
		}
		var pending []string
		for _, sub := range subs {
			if sub.IsTerminal() {
				continue
			}
			label := sub.UnitID
			if unit, ok := tree.Unit(sub.UnitID); ok {
				label = unit.Label()
			}
			pending = append(pending, fmt.Sprintf("unit %s is %s", label, sub.State))
		}
		if len(pending) > 0 {
			return domain.NewValidationError("subprocesses are not finished", pending...)
		}

		now := s.clock()
		if err := process.Finish(now); err != nil {
			return err
		}
		if err := store.UpdateProcess(ctx, process); err != nil {
			return err
		}
		if process.Kind.PromotesMaps() {
			for _, sub := range subs {
				if err := store.SetEffectiveMap(ctx, domain.EffectiveMap{
					UnitID:         sub.UnitID,
					MapID:          sub.MapID,
					ProcessID:      process.ID,
					EffectiveSince: now.UTC(),
				}); err != nil {
					return err
				}
			}
		}
		out = process
		event = domain.Event{
			Kind:               domain.EventProcessFinished,
			ProcessID:          process.ID,
			ProcessDescription: process.Description,
			UnitIDs:            append([]string(nil), process.UnitIDs...),
			OccurredAt:         now.UTC(),
		}
		return nil
	})
	s.metrics.TransitionObserved("finish_process", err)
	if err != nil {
		return domain.Process{}, err
	}
	s.logger.Info("process finished", "process_id", out.ID, "kind", out.Kind)
	s.publish(ctx, event)
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
