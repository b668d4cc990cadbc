package sqlite

import (
	"context"

	"github.com/hylla/sgc/internal/domain"
)

// UnitSnapshot loads the unit hierarchy stored by UpsertUnits.
func (r *Repository) UnitSnapshot(ctx context.Context) (*domain.UnitTree, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, name, type, superior_id,
		       responsible_id, responsible_name, responsible_email,
		       substitute_id, substitute_name, substitute_email
		FROM units
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []domain.Unit
	for rows.Next() {
		var (
			u       domain.Unit
			unitTyp string
		)
		if err := rows.Scan(
			&u.ID,
			&u.Code,
			&u.Name,
			&unitTyp,
			&u.SuperiorID,
			&u.Responsible.ID,
			&u.Responsible.Name,
			&u.Responsible.Email,
			&u.Substitute.ID,
			&u.Substitute.Name,
			&u.Substitute.Email,
		); err != nil {
			return nil, err
		}
		u.Type = domain.UnitType(unitTyp)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.NewUnitTree(units)
}

// UpsertUnits inserts or replaces units in one transaction. Existing rows keep their position.
func (r *Repository) UpsertUnits(ctx context.Context, units []domain.Unit) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, u := range units {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO units(id, code, name, type, superior_id, responsible_id, responsible_name, responsible_email,
			                  substitute_id, substitute_name, substitute_email)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				code = excluded.code,
				name = excluded.name,
				type = excluded.type,
				superior_id = excluded.superior_id,
				responsible_id = excluded.responsible_id,
				responsible_name = excluded.responsible_name,
				responsible_email = excluded.responsible_email,
				substitute_id = excluded.substitute_id,
				substitute_name = excluded.substitute_name,
				substitute_email = excluded.substitute_email
		`,
			u.ID,
			u.Code,
			u.Name,
			string(u.Type),
			u.SuperiorID,
			u.Responsible.ID,
			u.Responsible.Name,
			u.Responsible.Email,
			u.Substitute.ID,
			u.Substitute.Name,
			u.Substitute.Email,
		)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
