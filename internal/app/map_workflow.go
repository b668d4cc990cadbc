package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/sgc/internal/domain"
)

// CompetencyInput describes one competency of a map and the activities that justify it.
type CompetencyInput struct {
	Description string
	ActivityIDs []string
}

// SaveMap replaces the competencies of a subprocess map. Incomplete maps are accepted
// with logged warnings; completeness is enforced by SubmitMap.
func (s *Service) SaveMap(ctx context.Context, subprocessID string, actor domain.Actor, inputs []CompetencyInput) ([]domain.Competency, error) {
	var out []domain.Competency
	_, err := s.runTransition(ctx, domain.OpSaveMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpSaveMap); err != nil {
			return nil, err
		}
		if !actor.IsAdmin() {
			return nil, accessDenied(actor, "edit the map of "+sc.unit.Code)
		}
		activities, err := sc.store.ListActivities(ctx, sc.sub.MapID)
		if err != nil {
			return nil, err
		}
		known := make(map[string]struct{}, len(activities))
		for _, activity := range activities {
			known[activity.ID] = struct{}{}
		}

		var (
			problems     []string
			competencies []domain.Competency
			links        []domain.CompetencyLink
		)
		for i, in := range inputs {
			competency, err := domain.NewCompetency(s.idGen(), sc.sub.MapID, in.Description)
			if err != nil {
				problems = append(problems, fmt.Sprintf("competency #%d: %v", i+1, err))
				continue
			}
			competencies = append(competencies, competency)
			for _, activityID := range uniqueIDs(in.ActivityIDs) {
				if _, ok := known[activityID]; !ok {
					problems = append(problems, fmt.Sprintf("competency %q references unknown activity %s", competency.Description, activityID))
					continue
				}
				links = append(links, domain.CompetencyLink{CompetencyID: competency.ID, ActivityID: activityID})
			}
		}
		if len(problems) > 0 {
			return nil, domain.NewValidationError("map has invalid competencies", problems...)
		}
		if err := sc.store.ReplaceCompetencies(ctx, sc.sub.MapID, competencies, links); err != nil {
			return nil, err
		}
		for _, issue := range domain.CompletenessIssues(activities, competencies, links) {
			s.logger.Warn("map is incomplete", "subprocess_id", sc.sub.ID, "unit", sc.unit.Code, "issue", issue)
		}
		out = competencies
		return nil, sc.sub.Apply(domain.OpSaveMap, sc.now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitMapInput holds input values for SubmitMap.
type SubmitMapInput struct {
	Deadline time.Time
}

// SubmitMap sends a complete map to its unit for validation.
// Revision maps additionally require the impact analysis to have been surfaced during stage 1.
func (s *Service) SubmitMap(ctx context.Context, subprocessID string, actor domain.Actor, in SubmitMapInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpSubmitMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpSubmitMap); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !actor.IsAdmin() || !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "submit the map of "+sc.unit.Code)
		}
		if sc.sub.IsRevision() && sc.sub.ImpactsVerifiedAt == nil {
			return nil, domain.NewValidationError("impacts on the effective map were not verified")
		}
		activities, err := sc.store.ListActivities(ctx, sc.sub.MapID)
		if err != nil {
			return nil, err
		}
		competencies, links, err := sc.store.ListCompetencies(ctx, sc.sub.MapID)
		if err != nil {
			return nil, err
		}
		issues := domain.CompletenessIssues(activities, competencies, links)
		if len(competencies) == 0 {
			issues = append([]string{"map has no competencies"}, issues...)
		}
		if len(issues) > 0 {
			return nil, domain.NewValidationError("map is incomplete", issues...)
		}

		deadline := in.Deadline.UTC()
		if in.Deadline.IsZero() {
			deadline = sc.now.AddDate(0, 0, s.mapDeadlineDays)
		}
		sc.sub.Stage2Deadline = &deadline
		if err := sc.sub.Apply(domain.OpSubmitMap, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, sc.sub.UnitID, "Map submitted for validation", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventMapSubmitted, sc.sub.UnitID, actor, "")}, nil
	})
}

// ValidateMap records the unit's agreement with the submitted map.
func (s *Service) ValidateMap(ctx context.Context, subprocessID string, actor domain.Actor) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpValidateMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		return s.answerMap(ctx, sc, actor, domain.OpValidateMap, "")
	})
}

// SuggestMap records the unit's suggestions for the submitted map.
func (s *Service) SuggestMap(ctx context.Context, subprocessID string, actor domain.Actor, suggestions string) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpSuggestMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		return s.answerMap(ctx, sc, actor, domain.OpSuggestMap, suggestions)
	})
}

func (s *Service) answerMap(ctx context.Context, sc *subprocessScope, actor domain.Actor, op domain.Operation, suggestions string) ([]domain.Event, error) {
	if err := sc.sub.Check(op); err != nil {
		return nil, err
	}
	if !actor.IsChiefOf(sc.sub.UnitID) {
		return nil, accessDenied(actor, "answer the map of "+sc.unit.Code)
	}
	superior, err := sc.superiorOf(sc.sub.UnitID)
	if err != nil {
		return nil, err
	}
	kind, description := domain.EventMapValidated, "Map validated"
	if op == domain.OpSuggestMap {
		suggestions = strings.TrimSpace(suggestions)
		if suggestions == "" {
			return nil, domain.NewValidationError("suggestions are required")
		}
		competencyMap, err := sc.store.GetMap(ctx, sc.sub.MapID)
		if err != nil {
			return nil, err
		}
		competencyMap.Suggestions = suggestions
		competencyMap.UpdatedAt = sc.now
		if err := sc.store.UpdateMap(ctx, competencyMap); err != nil {
			return nil, err
		}
		kind, description = domain.EventMapSuggested, "Map suggestions submitted"
	}
	if err := sc.sub.Apply(op, sc.now); err != nil {
		return nil, err
	}
	if err := s.appendMovement(ctx, sc, sc.sub.UnitID, superior.ID, description, actor); err != nil {
		return nil, err
	}
	return []domain.Event{sc.event(kind, superior.ID, actor, suggestions)}, nil
}

// ReturnMap sends a validated map, or one with suggestions, back to the unit.
func (s *Service) ReturnMap(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpReturnMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpReturnMap); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "review the map of "+sc.unit.Code)
		}
		if _, err := sc.superiorOf(sc.sub.UnitID); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Reason) == "" {
			return nil, domain.NewValidationError("a reason is required to return the map")
		}
		if err := sc.sub.Apply(domain.OpReturnMap, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:        domain.AnalysisStageMap,
			Action:       domain.AnalysisReturn,
			UnitID:       holder,
			AnalystID:    actor.ID,
			Reason:       in.Reason,
			Observations: in.Observations,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, sc.sub.UnitID, "Map validation returned", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventMapReturned, sc.sub.UnitID, actor, in.Reason)}, nil
	})
}

// AcceptMap approves the unit's answer at the current level and forwards it upward.
func (s *Service) AcceptMap(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpAcceptMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpAcceptMap); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "review the map of "+sc.unit.Code)
		}
		if _, err := sc.superiorOf(sc.sub.UnitID); err != nil {
			return nil, err
		}
		next, err := sc.superiorOf(holder)
		if err != nil {
			return nil, fmt.Errorf("%w; the top-level unit homologates instead of accepting", err)
		}
		if err := sc.sub.Apply(domain.OpAcceptMap, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:        domain.AnalysisStageMap,
			Action:       domain.AnalysisAccept,
			UnitID:       holder,
			AnalystID:    actor.ID,
			Reason:       in.Reason,
			Observations: in.Observations,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, next.ID, "Map validation accepted", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventMapAccepted, next.ID, actor, in.Observations)}, nil
	})
}

// HomologateMap closes stage 2 for a validated map held by the top-level unit.
func (s *Service) HomologateMap(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpHomologateMap, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpHomologateMap); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !sc.tree.IsTopLevel(holder) {
			return nil, fmt.Errorf("%w: map of %s has not reached the top-level unit", domain.ErrInvalidState, sc.unit.Code)
		}
		if !actor.IsAdmin() || !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "homologate the map of "+sc.unit.Code)
		}
		if err := sc.sub.Apply(domain.OpHomologateMap, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:        domain.AnalysisStageMap,
			Action:       domain.AnalysisHomologate,
			UnitID:       holder,
			AnalystID:    actor.ID,
			Reason:       in.Reason,
			Observations: in.Observations,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, holder, "Map homologated", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventMapHomologated, sc.sub.UnitID, actor, "")}, nil
	})
}

// BeginDiagnosis starts the unit's diagnosis.
func (s *Service) BeginDiagnosis(ctx context.Context, subprocessID string, actor domain.Actor) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpBeginDiagnosis, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpBeginDiagnosis); err != nil {
			return nil, err
		}
		if !actor.IsChiefOf(sc.sub.UnitID) {
			return nil, accessDenied(actor, "start the diagnosis of "+sc.unit.Code)
		}
		return nil, sc.sub.Apply(domain.OpBeginDiagnosis, sc.now)
	})
}

// ConcludeDiagnosis closes the unit's diagnosis.
func (s *Service) ConcludeDiagnosis(ctx context.Context, subprocessID string, actor domain.Actor) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpConcludeDiagnosis, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpConcludeDiagnosis); err != nil {
			return nil, err
		}
		if !actor.IsAdmin() {
			return nil, accessDenied(actor, "conclude the diagnosis of "+sc.unit.Code)
		}
		if err := sc.sub.Apply(domain.OpConcludeDiagnosis, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, sc.sub.LocationUnitID, sc.sub.UnitID, "Diagnosis concluded", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventDiagnosisConcluded, sc.sub.UnitID, actor, "")}, nil
	})
}
