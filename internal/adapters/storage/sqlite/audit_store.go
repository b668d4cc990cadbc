package sqlite

import (
	"context"

	"github.com/hylla/sgc/internal/domain"
)

// CreateMovement appends a movement.
func (s *store) CreateMovement(ctx context.Context, m domain.Movement) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO movements(id, subprocess_id, origin_unit_id, destination_unit_id, description, performed_by, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SubprocessID, m.OriginUnitID, m.DestinationUnitID, m.Description, m.PerformedBy, ts(m.OccurredAt))
	return err
}

// ListMovements returns the movements of a subprocess, oldest first.
func (s *store) ListMovements(ctx context.Context, subprocessID string) ([]domain.Movement, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, subprocess_id, origin_unit_id, destination_unit_id, description, performed_by, occurred_at
		FROM movements
		WHERE subprocess_id = ?
		ORDER BY seq ASC
	`, subprocessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Movement, 0)
	for rows.Next() {
		var (
			m           domain.Movement
			occurredRaw string
		)
		if err := rows.Scan(&m.ID, &m.SubprocessID, &m.OriginUnitID, &m.DestinationUnitID, &m.Description, &m.PerformedBy, &occurredRaw); err != nil {
			return nil, err
		}
		m.OccurredAt = parseTS(occurredRaw)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateAnalysis appends a review record.
func (s *store) CreateAnalysis(ctx context.Context, a domain.Analysis) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO analyses(id, subprocess_id, stage, action, unit_id, analyst_id, reason, observations, impact_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.SubprocessID,
		string(a.Stage),
		string(a.Action),
		a.UnitID,
		a.AnalystID,
		a.Reason,
		a.Observations,
		a.ImpactSummary,
		ts(a.CreatedAt),
	)
	return err
}

// ListAnalyses returns the review records of a subprocess, oldest first.
func (s *store) ListAnalyses(ctx context.Context, subprocessID string) ([]domain.Analysis, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, subprocess_id, stage, action, unit_id, analyst_id, reason, observations, impact_summary, created_at
		FROM analyses
		WHERE subprocess_id = ?
		ORDER BY seq ASC
	`, subprocessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Analysis, 0)
	for rows.Next() {
		var (
			a             domain.Analysis
			stage, action string
			createdRaw    string
		)
		if err := rows.Scan(&a.ID, &a.SubprocessID, &stage, &action, &a.UnitID, &a.AnalystID, &a.Reason, &a.Observations, &a.ImpactSummary, &createdRaw); err != nil {
			return nil, err
		}
		a.Stage = domain.AnalysisStage(stage)
		a.Action = domain.AnalysisAction(action)
		a.CreatedAt = parseTS(createdRaw)
		out = append(out, a)
	}
	return out, rows.Err()
}
