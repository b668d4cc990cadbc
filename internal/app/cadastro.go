package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/sgc/internal/domain"
	"github.com/hylla/sgc/internal/impact"
)

// ReviewInput carries the reviewer's justification for return/accept/homologate decisions.
type ReviewInput struct {
	Reason       string
	Observations string
}

// AddActivity adds an activity to the subprocess cadastro. The first edit of a
// NOT_STARTED subprocess moves it to cadastro in progress.
func (s *Service) AddActivity(ctx context.Context, subprocessID string, actor domain.Actor, description string) (domain.Activity, error) {
	var out domain.Activity
	_, err := s.runTransition(ctx, domain.OpEditCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := s.guardCadastroEdit(sc, actor); err != nil {
			return nil, err
		}
		activity, err := domain.NewActivity(s.idGen(), sc.sub.MapID, description)
		if err != nil {
			return nil, err
		}
		if err := s.ensureUniqueActivity(ctx, sc, activity); err != nil {
			return nil, err
		}
		if err := sc.store.CreateActivity(ctx, activity); err != nil {
			return nil, err
		}
		out = activity
		return nil, sc.sub.Apply(domain.OpEditCadastro, sc.now)
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return out, nil
}

// UpdateActivity renames an activity of a cadastro being edited.
func (s *Service) UpdateActivity(ctx context.Context, activityID string, actor domain.Actor, description string) (domain.Activity, error) {
	current, subprocessID, err := s.activityOwner(ctx, activityID)
	if err != nil {
		return domain.Activity{}, err
	}
	var out domain.Activity
	_, err = s.runTransition(ctx, domain.OpEditCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := s.guardCadastroEdit(sc, actor); err != nil {
			return nil, err
		}
		description = strings.TrimSpace(description)
		if description == "" {
			return nil, domain.ErrInvalidDescription
		}
		next := current
		next.Description = description
		if err := s.ensureUniqueActivity(ctx, sc, next); err != nil {
			return nil, err
		}
		if err := sc.store.UpdateActivity(ctx, next); err != nil {
			return nil, err
		}
		out = next
		return nil, sc.sub.Apply(domain.OpEditCadastro, sc.now)
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return out, nil
}

// RemoveActivity deletes an activity and its knowledge items.
func (s *Service) RemoveActivity(ctx context.Context, activityID string, actor domain.Actor) error {
	_, subprocessID, err := s.activityOwner(ctx, activityID)
	if err != nil {
		return err
	}
	_, err = s.runTransition(ctx, domain.OpEditCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := s.guardCadastroEdit(sc, actor); err != nil {
			return nil, err
		}
		if err := sc.store.DeleteActivity(ctx, activityID); err != nil {
			return nil, err
		}
		return nil, sc.sub.Apply(domain.OpEditCadastro, sc.now)
	})
	return err
}

// AddKnowledge attaches a knowledge item to an activity.
func (s *Service) AddKnowledge(ctx context.Context, activityID string, actor domain.Actor, description string) (domain.Knowledge, error) {
	_, subprocessID, err := s.activityOwner(ctx, activityID)
	if err != nil {
		return domain.Knowledge{}, err
	}
	var out domain.Knowledge
	_, err = s.runTransition(ctx, domain.OpEditCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := s.guardCadastroEdit(sc, actor); err != nil {
			return nil, err
		}
		knowledge, err := domain.NewKnowledge(s.idGen(), activityID, description)
		if err != nil {
			return nil, err
		}
		if err := sc.store.CreateKnowledge(ctx, knowledge); err != nil {
			return nil, err
		}
		out = knowledge
		return nil, sc.sub.Apply(domain.OpEditCadastro, sc.now)
	})
	if err != nil {
		return domain.Knowledge{}, err
	}
	return out, nil
}

// RemoveKnowledge deletes a knowledge item.
func (s *Service) RemoveKnowledge(ctx context.Context, knowledgeID string, actor domain.Actor) error {
	knowledge, err := s.repo.GetKnowledge(ctx, knowledgeID)
	if err != nil {
		return err
	}
	_, subprocessID, err := s.activityOwner(ctx, knowledge.ActivityID)
	if err != nil {
		return err
	}
	_, err = s.runTransition(ctx, domain.OpEditCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := s.guardCadastroEdit(sc, actor); err != nil {
			return nil, err
		}
		if err := sc.store.DeleteKnowledge(ctx, knowledgeID); err != nil {
			return nil, err
		}
		return nil, sc.sub.Apply(domain.OpEditCadastro, sc.now)
	})
	return err
}

// SubmitCadastro hands the cadastro to the superior unit for review.
func (s *Service) SubmitCadastro(ctx context.Context, subprocessID string, actor domain.Actor) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpSubmitCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpSubmitCadastro); err != nil {
			return nil, err
		}
		if !actor.IsChiefOf(sc.sub.UnitID) {
			return nil, accessDenied(actor, "submit the cadastro of "+sc.unit.Code)
		}
		superior, err := sc.superiorOf(sc.sub.UnitID)
		if err != nil {
			return nil, err
		}
		activities, err := sc.store.ListActivities(ctx, sc.sub.MapID)
		if err != nil {
			return nil, err
		}
		if len(activities) == 0 {
			return nil, domain.NewValidationError("cadastro has no activities")
		}
		if missing := domain.MissingKnowledge(activities); len(missing) > 0 {
			return nil, domain.NewValidationError("every activity needs at least one knowledge item", missing...)
		}
		if err := sc.sub.Apply(domain.OpSubmitCadastro, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, sc.sub.UnitID, superior.ID, "Cadastro submitted for review", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventCadastroSubmitted, superior.ID, actor, "")}, nil
	})
}

// ReturnCadastro sends a submitted cadastro back to its unit for rework.
func (s *Service) ReturnCadastro(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpReturnCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpReturnCadastro); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "review the cadastro of "+sc.unit.Code)
		}
		if _, err := sc.superiorOf(sc.sub.UnitID); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Reason) == "" {
			return nil, domain.NewValidationError("a reason is required to return the cadastro")
		}
		if err := sc.sub.Apply(domain.OpReturnCadastro, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:        domain.AnalysisStageCadastro,
			Action:       domain.AnalysisReturn,
			UnitID:       holder,
			AnalystID:    actor.ID,
			Reason:       in.Reason,
			Observations: in.Observations,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, sc.sub.UnitID, "Cadastro returned for adjustments", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventCadastroReturned, sc.sub.UnitID, actor, in.Reason)}, nil
	})
}

// AcceptCadastro approves the cadastro at the current level and forwards it upward.
// Revision cadastros run the impact analysis and record its summary on the analysis.
func (s *Service) AcceptCadastro(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpAcceptCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpAcceptCadastro); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "review the cadastro of "+sc.unit.Code)
		}
		if _, err := sc.superiorOf(sc.sub.UnitID); err != nil {
			return nil, err
		}
		next, err := sc.superiorOf(holder)
		if err != nil {
			return nil, fmt.Errorf("%w; the top-level unit homologates instead of accepting", err)
		}
		summary, err := s.surfaceImpacts(ctx, sc)
		if err != nil {
			return nil, err
		}
		if err := sc.sub.Apply(domain.OpAcceptCadastro, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:         domain.AnalysisStageCadastro,
			Action:        domain.AnalysisAccept,
			UnitID:        holder,
			AnalystID:     actor.ID,
			Reason:        in.Reason,
			Observations:  in.Observations,
			ImpactSummary: summary,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, next.ID, "Cadastro accepted", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventCadastroAccepted, next.ID, actor, in.Observations)}, nil
	})
}

// HomologateCadastro closes stage 1. Only an administrator at the top-level unit holding
// the subprocess may homologate.
func (s *Service) HomologateCadastro(ctx context.Context, subprocessID string, actor domain.Actor, in ReviewInput) (domain.Subprocess, error) {
	return s.runTransition(ctx, domain.OpHomologateCadastro, subprocessID, func(ctx context.Context, sc *subprocessScope) ([]domain.Event, error) {
		if err := sc.sub.Check(domain.OpHomologateCadastro); err != nil {
			return nil, err
		}
		holder := sc.sub.LocationUnitID
		if !sc.tree.IsTopLevel(holder) {
			return nil, fmt.Errorf("%w: cadastro of %s has not reached the top-level unit", domain.ErrInvalidState, sc.unit.Code)
		}
		if !actor.IsAdmin() || !actor.ActsFor(holder) {
			return nil, accessDenied(actor, "homologate the cadastro of "+sc.unit.Code)
		}
		summary, err := s.surfaceImpacts(ctx, sc)
		if err != nil {
			return nil, err
		}
		if err := sc.sub.Apply(domain.OpHomologateCadastro, sc.now); err != nil {
			return nil, err
		}
		if err := s.appendAnalysis(ctx, sc, domain.AnalysisInput{
			Stage:         domain.AnalysisStageCadastro,
			Action:        domain.AnalysisHomologate,
			UnitID:        holder,
			AnalystID:     actor.ID,
			Reason:        in.Reason,
			Observations:  in.Observations,
			ImpactSummary: summary,
		}); err != nil {
			return nil, err
		}
		if err := s.appendMovement(ctx, sc, holder, holder, "Cadastro homologated", actor); err != nil {
			return nil, err
		}
		return []domain.Event{sc.event(domain.EventCadastroHomologated, sc.sub.UnitID, actor, "")}, nil
	})
}

// surfaceImpacts runs the impact analysis for revision subprocesses inside the transition
// and stamps the subprocess. It returns "" for other kinds.
func (s *Service) surfaceImpacts(ctx context.Context, sc *subprocessScope) (string, error) {
	if !sc.sub.IsRevision() {
		return "", nil
	}
	report, err := s.analyze(ctx, sc.store, sc.sub)
	if err != nil {
		return "", err
	}
	ts := sc.now
	sc.sub.ImpactsVerifiedAt = &ts
	return report.Summary(), nil
}

func (s *Service) guardCadastroEdit(sc *subprocessScope, actor domain.Actor) error {
	if err := sc.sub.Check(domain.OpEditCadastro); err != nil {
		return err
	}
	if !actor.IsChiefOf(sc.sub.UnitID) {
		return accessDenied(actor, "edit the cadastro of "+sc.unit.Code)
	}
	return nil
}

func (s *Service) ensureUniqueActivity(ctx context.Context, sc *subprocessScope, candidate domain.Activity) error {
	existing, err := sc.store.ListActivities(ctx, sc.sub.MapID)
	if err != nil {
		return err
	}
	key := impact.Normalize(candidate.Description)
	for _, activity := range existing {
		if activity.ID != candidate.ID && impact.Normalize(activity.Description) == key {
			return domain.NewValidationError("activity already exists in the cadastro", candidate.Description)
		}
	}
	return nil
}

// activityOwner resolves an activity and the subprocess whose map holds it.
func (s *Service) activityOwner(ctx context.Context, activityID string) (domain.Activity, string, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, "", err
	}
	competencyMap, err := s.repo.GetMap(ctx, activity.MapID)
	if err != nil {
		return domain.Activity{}, "", err
	}
	return activity, competencyMap.SubprocessID, nil
}
