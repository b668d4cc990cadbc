package app

import (
	"context"
	"errors"

	"github.com/hylla/sgc/internal/domain"
	"github.com/hylla/sgc/internal/impact"
)

// mapReader is the read capability impact verification needs.
type mapReader interface {
	GetEffectiveMap(ctx context.Context, unitID string) (domain.EffectiveMap, error)
	ListActivities(ctx context.Context, mapID string) ([]domain.Activity, error)
	ListCompetencies(ctx context.Context, mapID string) ([]domain.Competency, []domain.CompetencyLink, error)
}

// VerifyImpacts compares the subprocess cadastro with the unit's effective map.
// A unit without an effective map yields an empty report.
func (s *Service) VerifyImpacts(ctx context.Context, subprocessID string) (impact.Report, error) {
	sub, err := s.repo.GetSubprocess(ctx, subprocessID)
	if err != nil {
		return impact.Report{}, err
	}
	return s.analyze(ctx, s.repo, sub)
}

func (s *Service) analyze(ctx context.Context, reader mapReader, sub domain.Subprocess) (impact.Report, error) {
	effective, err := reader.GetEffectiveMap(ctx, sub.UnitID)
	if errors.Is(err, ErrNotFound) {
		return impact.Report{}, nil
	}
	if err != nil {
		return impact.Report{}, err
	}
	if effective.MapID == sub.MapID {
		return impact.Report{}, nil
	}

	current, err := reader.ListActivities(ctx, sub.MapID)
	if err != nil {
		return impact.Report{}, err
	}
	previous, err := reader.ListActivities(ctx, effective.MapID)
	if err != nil {
		return impact.Report{}, err
	}
	competencies, links, err := reader.ListCompetencies(ctx, effective.MapID)
	if err != nil {
		return impact.Report{}, err
	}

	snapshot := make([]impact.Activity, 0, len(current))
	for _, activity := range current {
		snapshot = append(snapshot, impact.Activity{Key: activity.IdentityKey(), Description: activity.Description})
	}
	baseline := impact.Baseline{
		Activities:   make([]impact.Activity, 0, len(previous)),
		Competencies: make([]impact.Competency, 0, len(competencies)),
		Links:        make([]impact.Link, 0, len(links)),
	}
	for _, activity := range previous {
		baseline.Activities = append(baseline.Activities, impact.Activity{Key: activity.ID, Description: activity.Description})
	}
	for _, competency := range competencies {
		baseline.Competencies = append(baseline.Competencies, impact.Competency{ID: competency.ID, Description: competency.Description})
	}
	for _, link := range links {
		baseline.Links = append(baseline.Links, impact.Link{CompetencyID: link.CompetencyID, ActivityKey: link.ActivityID})
	}

	report := impact.Analyze(snapshot, baseline)
	s.logger.Debug("impacts verified", "subprocess_id", sub.ID, "summary", report.Summary())
	return report, nil
}
