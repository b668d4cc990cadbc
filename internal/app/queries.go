package app

import (
	"context"

	"github.com/hylla/sgc/internal/domain"
)

// MapContents is a map with its cadastro and competencies.
type MapContents struct {
	Map          domain.Map
	Activities   []domain.Activity
	Competencies []domain.Competency
	Links        []domain.CompetencyLink
}

// GetSubprocess returns one subprocess.
func (s *Service) GetSubprocess(ctx context.Context, subprocessID string) (domain.Subprocess, error) {
	return s.repo.GetSubprocess(ctx, subprocessID)
}

// ListSubprocesses returns the subprocesses of a process.
func (s *Service) ListSubprocesses(ctx context.Context, processID string) ([]domain.Subprocess, error) {
	if _, err := s.repo.GetProcess(ctx, processID); err != nil {
		return nil, err
	}
	return s.repo.ListSubprocesses(ctx, processID)
}

// ListMovements returns the movement history of a subprocess, oldest first.
func (s *Service) ListMovements(ctx context.Context, subprocessID string) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx, subprocessID)
}

// ListAnalyses returns the review history of a subprocess, oldest first.
func (s *Service) ListAnalyses(ctx context.Context, subprocessID string) ([]domain.Analysis, error) {
	return s.repo.ListAnalyses(ctx, subprocessID)
}

// GetMapContents loads a map with everything it owns.
func (s *Service) GetMapContents(ctx context.Context, mapID string) (MapContents, error) {
	competencyMap, err := s.repo.GetMap(ctx, mapID)
	if err != nil {
		return MapContents{}, err
	}
	activities, err := s.repo.ListActivities(ctx, mapID)
	if err != nil {
		return MapContents{}, err
	}
	competencies, links, err := s.repo.ListCompetencies(ctx, mapID)
	if err != nil {
		return MapContents{}, err
	}
	return MapContents{
		Map:          competencyMap,
		Activities:   activities,
		Competencies: competencies,
		Links:        links,
	}, nil
}

// GetEffectiveMapContents loads the map currently in force for a unit.
func (s *Service) GetEffectiveMapContents(ctx context.Context, unitID string) (MapContents, error) {
	effective, err := s.repo.GetEffectiveMap(ctx, unitID)
	if err != nil {
		return MapContents{}, err
	}
	return s.GetMapContents(ctx, effective.MapID)
}
