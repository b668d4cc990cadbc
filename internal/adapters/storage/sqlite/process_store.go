package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hylla/sgc/internal/app"
	"github.com/hylla/sgc/internal/domain"
)

const processColumns = `id, description, kind, state, deadline, unit_ids_json, created_at, updated_at, started_at, finished_at`

// CreateProcess inserts a process.
func (s *store) CreateProcess(ctx context.Context, p domain.Process) error {
	unitIDs, err := json.Marshal(p.UnitIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO processes(`+processColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Description, string(p.Kind), string(p.State), zeroableTS(p.Deadline), string(unitIDs),
		ts(p.CreatedAt), ts(p.UpdatedAt), nullableTS(p.StartedAt), nullableTS(p.FinishedAt))
	return err
}

// UpdateProcess overwrites a process.
func (s *store) UpdateProcess(ctx context.Context, p domain.Process) error {
	unitIDs, err := json.Marshal(p.UnitIDs)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE processes
		SET description = ?, state = ?, deadline = ?, unit_ids_json = ?, updated_at = ?, started_at = ?, finished_at = ?
		WHERE id = ?
	`, p.Description, string(p.State), zeroableTS(p.Deadline), string(unitIDs), ts(p.UpdatedAt),
		nullableTS(p.StartedAt), nullableTS(p.FinishedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProcess returns one process.
func (s *store) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id = ?`, id)
	return scanProcess(row)
}

// ListProcesses returns every process, newest first.
func (s *store) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+processColumns+` FROM processes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Process, 0)
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProcess removes a process.
func (s *store) DeleteProcess(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM processes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

const subprocessColumns = `id, process_id, kind, unit_id, map_id, state, location_unit_id, stage1_deadline,
	stage1_completed_at, stage2_deadline, stage2_completed_at, impacts_verified_at, version, created_at, updated_at`

// CreateSubprocess inserts a subprocess.
func (s *store) CreateSubprocess(ctx context.Context, sub domain.Subprocess) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO subprocesses(`+subprocessColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID,
		sub.ProcessID,
		string(sub.Kind),
		sub.UnitID,
		sub.MapID,
		string(sub.State),
		sub.LocationUnitID,
		zeroableTS(sub.Stage1Deadline),
		nullableTS(sub.Stage1CompletedAt),
		nullableTS(sub.Stage2Deadline),
		nullableTS(sub.Stage2CompletedAt),
		nullableTS(sub.ImpactsVerifiedAt),
		sub.Version,
		ts(sub.CreatedAt),
		ts(sub.UpdatedAt),
	)
	return err
}

// UpdateSubprocess writes sub when the stored version matches and bumps the version.
func (s *store) UpdateSubprocess(ctx context.Context, sub domain.Subprocess) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE subprocesses
		SET state = ?, location_unit_id = ?, stage1_deadline = ?, stage1_completed_at = ?, stage2_deadline = ?,
		    stage2_completed_at = ?, impacts_verified_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		string(sub.State),
		sub.LocationUnitID,
		zeroableTS(sub.Stage1Deadline),
		nullableTS(sub.Stage1CompletedAt),
		nullableTS(sub.Stage2Deadline),
		nullableTS(sub.Stage2CompletedAt),
		nullableTS(sub.ImpactsVerifiedAt),
		ts(sub.UpdatedAt),
		sub.ID,
		sub.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.GetSubprocess(ctx, sub.ID); err != nil {
		return err
	}
	return fmt.Errorf("%w: subprocess %s changed since version %d", app.ErrConflict, sub.ID, sub.Version)
}

// GetSubprocess returns one subprocess.
func (s *store) GetSubprocess(ctx context.Context, id string) (domain.Subprocess, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+subprocessColumns+` FROM subprocesses WHERE id = ?`, id)
	return scanSubprocess(row)
}

// ListSubprocesses returns the subprocesses of a process ordered by unit.
func (s *store) ListSubprocesses(ctx context.Context, processID string) ([]domain.Subprocess, error) {
	return s.querySubprocesses(ctx, `SELECT `+subprocessColumns+` FROM subprocesses WHERE process_id = ? ORDER BY unit_id ASC`, processID)
}

// ListActiveSubprocessesByUnit returns the unit's subprocesses in processes still in progress.
func (s *store) ListActiveSubprocessesByUnit(ctx context.Context, unitID string) ([]domain.Subprocess, error) {
	return s.querySubprocesses(ctx, `
		SELECT `+prefixed("s.", subprocessColumns)+`
		FROM subprocesses s
		JOIN processes p ON p.id = s.process_id
		WHERE s.unit_id = ? AND p.state = ?
		ORDER BY s.created_at ASC
	`, unitID, string(domain.ProcessStateInProgress))
}

func (s *store) querySubprocesses(ctx context.Context, query string, args ...any) ([]domain.Subprocess, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Subprocess, 0)
	for rows.Next() {
		sub, err := scanSubprocess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// scanProcess decodes one processes row.
func scanProcess(s scanner) (domain.Process, error) {
	var (
		p           domain.Process
		kind, state string
		deadlineRaw sql.NullString
		unitIDsRaw  string
		createdRaw  string
		updatedRaw  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Description, &kind, &state, &deadlineRaw, &unitIDsRaw, &createdRaw, &updatedRaw, &startedRaw, &finishedRaw); err != nil {
		return domain.Process{}, notFound(err)
	}
	if err := json.Unmarshal([]byte(unitIDsRaw), &p.UnitIDs); err != nil {
		return domain.Process{}, fmt.Errorf("decode unit_ids_json: %w", err)
	}
	p.Kind = domain.ProcessKind(kind)
	p.State = domain.ProcessState(state)
	p.Deadline = parseZeroableTS(deadlineRaw)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	p.StartedAt = parseNullTS(startedRaw)
	p.FinishedAt = parseNullTS(finishedRaw)
	return p, nil
}

// scanSubprocess decodes one subprocesses row.
func scanSubprocess(s scanner) (domain.Subprocess, error) {
	var (
		sub         domain.Subprocess
		kind, state string
		stage1Raw   sql.NullString
		stage1Done  sql.NullString
		stage2Raw   sql.NullString
		stage2Done  sql.NullString
		verifiedRaw sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&sub.ID,
		&sub.ProcessID,
		&kind,
		&sub.UnitID,
		&sub.MapID,
		&state,
		&sub.LocationUnitID,
		&stage1Raw,
		&stage1Done,
		&stage2Raw,
		&stage2Done,
		&verifiedRaw,
		&sub.Version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.Subprocess{}, notFound(err)
	}
	sub.Kind = domain.ProcessKind(kind)
	sub.State = domain.SubprocessState(state)
	sub.Stage1Deadline = parseZeroableTS(stage1Raw)
	sub.Stage1CompletedAt = parseNullTS(stage1Done)
	sub.Stage2Deadline = parseNullTS(stage2Raw)
	sub.Stage2CompletedAt = parseNullTS(stage2Done)
	sub.ImpactsVerifiedAt = parseNullTS(verifiedRaw)
	sub.CreatedAt = parseTS(createdRaw)
	sub.UpdatedAt = parseTS(updatedRaw)
	return sub, nil
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
