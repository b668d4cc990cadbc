package sqlite

import (
	"context"

	"github.com/hylla/sgc/internal/domain"
)

// CreateMap inserts a map.
func (s *store) CreateMap(ctx context.Context, m domain.Map) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO maps(id, subprocess_id, unit_id, suggestions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.SubprocessID, m.UnitID, m.Suggestions, ts(m.CreatedAt), ts(m.UpdatedAt))
	return err
}

// UpdateMap stores the map suggestions.
func (s *store) UpdateMap(ctx context.Context, m domain.Map) error {
	res, err := s.q.ExecContext(ctx, `UPDATE maps SET suggestions = ?, updated_at = ? WHERE id = ?`, m.Suggestions, ts(m.UpdatedAt), m.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetMap returns one map.
func (s *store) GetMap(ctx context.Context, id string) (domain.Map, error) {
	var (
		m          domain.Map
		createdRaw string
		updatedRaw string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, subprocess_id, unit_id, suggestions, created_at, updated_at FROM maps WHERE id = ?
	`, id).Scan(&m.ID, &m.SubprocessID, &m.UnitID, &m.Suggestions, &createdRaw, &updatedRaw)
	if err != nil {
		return domain.Map{}, notFound(err)
	}
	m.CreatedAt = parseTS(createdRaw)
	m.UpdatedAt = parseTS(updatedRaw)
	return m, nil
}

// CreateActivity inserts an activity. Knowledge items are stored separately.
func (s *store) CreateActivity(ctx context.Context, a domain.Activity) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO activities(id, map_id, origin_id, description) VALUES (?, ?, ?, ?)
	`, a.ID, a.MapID, a.OriginID, a.Description)
	return err
}

// UpdateActivity stores a new description.
func (s *store) UpdateActivity(ctx context.Context, a domain.Activity) error {
	res, err := s.q.ExecContext(ctx, `UPDATE activities SET description = ? WHERE id = ?`, a.Description, a.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteActivity removes an activity with its knowledge items and competency links.
func (s *store) DeleteActivity(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetActivity returns one activity with its knowledge.
func (s *store) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	var a domain.Activity
	err := s.q.QueryRowContext(ctx, `SELECT id, map_id, origin_id, description FROM activities WHERE id = ?`, id).
		Scan(&a.ID, &a.MapID, &a.OriginID, &a.Description)
	if err != nil {
		return domain.Activity{}, notFound(err)
	}
	knowledge, err := s.queryKnowledge(ctx, `
		SELECT id, activity_id, description FROM knowledge WHERE activity_id = ? ORDER BY rowid ASC
	`, id)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Knowledge = knowledge
	return a, nil
}

// ListActivities returns the activities of a map in insertion order, with knowledge.
func (s *store) ListActivities(ctx context.Context, mapID string) ([]domain.Activity, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, map_id, origin_id, description FROM activities WHERE map_id = ? ORDER BY rowid ASC
	`, mapID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.MapID, &a.OriginID, &a.Description); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	knowledge, err := s.queryKnowledge(ctx, `
		SELECT k.id, k.activity_id, k.description
		FROM knowledge k
		JOIN activities a ON a.id = k.activity_id
		WHERE a.map_id = ?
		ORDER BY k.rowid ASC
	`, mapID)
	if err != nil {
		return nil, err
	}
	byActivity := make(map[string][]domain.Knowledge, len(out))
	for _, k := range knowledge {
		byActivity[k.ActivityID] = append(byActivity[k.ActivityID], k)
	}
	for i := range out {
		out[i].Knowledge = byActivity[out[i].ID]
	}
	return out, nil
}

func (s *store) queryKnowledge(ctx context.Context, query string, args ...any) ([]domain.Knowledge, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Knowledge
	for rows.Next() {
		var k domain.Knowledge
		if err := rows.Scan(&k.ID, &k.ActivityID, &k.Description); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// CreateKnowledge inserts a knowledge item.
func (s *store) CreateKnowledge(ctx context.Context, k domain.Knowledge) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO knowledge(id, activity_id, description) VALUES (?, ?, ?)`, k.ID, k.ActivityID, k.Description)
	return err
}

// GetKnowledge returns one knowledge item.
func (s *store) GetKnowledge(ctx context.Context, id string) (domain.Knowledge, error) {
	var k domain.Knowledge
	err := s.q.QueryRowContext(ctx, `SELECT id, activity_id, description FROM knowledge WHERE id = ?`, id).
		Scan(&k.ID, &k.ActivityID, &k.Description)
	if err != nil {
		return domain.Knowledge{}, notFound(err)
	}
	return k, nil
}

// DeleteKnowledge removes a knowledge item.
func (s *store) DeleteKnowledge(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ReplaceCompetencies swaps every competency and link of a map.
func (s *store) ReplaceCompetencies(ctx context.Context, mapID string, competencies []domain.Competency, links []domain.CompetencyLink) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM competencies WHERE map_id = ?`, mapID); err != nil {
		return err
	}
	for _, c := range competencies {
		if _, err := s.q.ExecContext(ctx, `INSERT INTO competencies(id, map_id, description) VALUES (?, ?, ?)`, c.ID, mapID, c.Description); err != nil {
			return err
		}
	}
	for _, link := range links {
		if _, err := s.q.ExecContext(ctx, `
			INSERT OR IGNORE INTO competency_activities(competency_id, activity_id) VALUES (?, ?)
		`, link.CompetencyID, link.ActivityID); err != nil {
			return err
		}
	}
	return nil
}

// ListCompetencies returns the competencies of a map and their activity links.
func (s *store) ListCompetencies(ctx context.Context, mapID string) ([]domain.Competency, []domain.CompetencyLink, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, map_id, description FROM competencies WHERE map_id = ? ORDER BY rowid ASC`, mapID)
	if err != nil {
		return nil, nil, err
	}
	competencies := make([]domain.Competency, 0)
	for rows.Next() {
		var c domain.Competency
		if err := rows.Scan(&c.ID, &c.MapID, &c.Description); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		competencies = append(competencies, c)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	linkRows, err := s.q.QueryContext(ctx, `
		SELECT l.competency_id, l.activity_id
		FROM competency_activities l
		JOIN competencies c ON c.id = l.competency_id
		WHERE c.map_id = ?
		ORDER BY c.rowid ASC, l.rowid ASC
	`, mapID)
	if err != nil {
		return nil, nil, err
	}
	defer linkRows.Close()
	links := make([]domain.CompetencyLink, 0)
	for linkRows.Next() {
		var link domain.CompetencyLink
		if err := linkRows.Scan(&link.CompetencyID, &link.ActivityID); err != nil {
			return nil, nil, err
		}
		links = append(links, link)
	}
	return competencies, links, linkRows.Err()
}

// GetEffectiveMap returns the map in force for a unit.
func (s *store) GetEffectiveMap(ctx context.Context, unitID string) (domain.EffectiveMap, error) {
	var (
		e        domain.EffectiveMap
		sinceRaw string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT unit_id, map_id, process_id, effective_since FROM effective_maps WHERE unit_id = ?
	`, unitID).Scan(&e.UnitID, &e.MapID, &e.ProcessID, &sinceRaw)
	if err != nil {
		return domain.EffectiveMap{}, notFound(err)
	}
	e.EffectiveSince = parseTS(sinceRaw)
	return e, nil
}

// SetEffectiveMap records e as the unit's map in force, superseding any previous one.
func (s *store) SetEffectiveMap(ctx context.Context, e domain.EffectiveMap) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO effective_maps(unit_id, map_id, process_id, effective_since)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			map_id = excluded.map_id,
			process_id = excluded.process_id,
			effective_since = excluded.effective_since
	`, e.UnitID, e.MapID, e.ProcessID, ts(e.EffectiveSince))
	return err
}
