package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

// loadRoles: roles del usuario con sus permisos en un único join.
func (s *Store) loadRoles(ctx context.Context, userID string) ([]repository.Role, error) {
	const q = `
SELECT r.id, r.name, r.description, p.id, p.name, p.description
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY r.name, p.name`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Role
	idx := map[string]int{}
	for rows.Next() {
		var (
			rid, rname, rdesc string
			pid, pname, pdesc sql.NullString
		)
		if err := rows.Scan(&rid, &rname, &rdesc, &pid, &pname, &pdesc); err != nil {
			return nil, err
		}
		i, ok := idx[rid]
		if !ok {
			out = append(out, repository.Role{ID: rid, Name: rname, Description: rdesc})
			i = len(out) - 1
			idx[rid] = i
		}
		if pid.Valid {
			out[i].Permissions = append(out[i].Permissions, repository.Permission{
				ID: pid.String, Name: pname.String, Description: pdesc.String,
			})
		}
	}
	return out, rows.Err()
}

// AssignRoles reemplaza los roles del usuario. Todos los nombres deben existir.
func (s *Store) AssignRoles(ctx context.Context, userID string, names ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, n := range names {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) SELECT $1, id FROM roles WHERE name = $2`, userID, n)
		if err != nil {
			return mapErr(err)
		}
		if c, _ := res.RowsAffected(); c == 0 {
			return fmt.Errorf("%w: role %s", repository.ErrNotFound, n)
		}
	}
	return tx.Commit()
}
