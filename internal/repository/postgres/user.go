package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"

	"github.com/lib/pq"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, name, email, role, authority, is_active, organization_types,
	          COALESCE(municipality_id, ''), COALESCE(district, ''), COALESCE(province, ''), COALESCE(push_token, '')
	          FROM users WHERE id = $1`
	logger.DatabaseCall("SELECT", "users", "userID", id)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Authority, &u.IsActive,
		pq.Array(&u.OrganizationTypes), &u.MunicipalityID, &u.District, &u.Province, &u.PushToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "userID", id)
		return nil, err
	}
	return u, nil
}

type coordinatorRepository struct {
	db *sql.DB
}

func NewCoordinatorRepository(db *sql.DB) repository.CoordinatorRepository {
	return &coordinatorRepository{db: db}
}

// ListCandidates returns every user bound to at least one coverage area,
// with all of their areas attached.
func (r *coordinatorRepository) ListCandidates(ctx context.Context) ([]domain.CoordinatorProfile, error) {
	query := `SELECT u.id, u.name, u.role, u.authority, u.is_active, u.organization_types, ca.id, ca.name, ca.units
	          FROM coordinator_coverage cc
	          JOIN users u ON u.id = cc.user_id
	          JOIN coverage_areas ca ON ca.id = cc.coverage_area_id
	          ORDER BY u.id, ca.id`
	logger.DatabaseCall("SELECT", "coordinator_coverage")
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.CoordinatorProfile
	for rows.Next() {
		var c domain.CoordinatorProfile
		var area domain.CoverageArea
		var units []byte
		if err := rows.Scan(&c.UserID, &c.Name, &c.Role, &c.Authority, &c.IsActive, pq.Array(&c.OrganizationTypes),
			&area.ID, &area.Name, &units); err != nil {
			return nil, err
		}
		if len(units) > 0 {
			if err := json.Unmarshal(units, &area.Units); err != nil {
				return nil, err
			}
		}
		if n := len(out); n > 0 && out[n-1].UserID == c.UserID {
			out[n-1].CoverageAreas = append(out[n-1].CoverageAreas, area)
			continue
		}
		c.CoverageAreas = []domain.CoverageArea{area}
		out = append(out, c)
	}
	logger.DatabaseResult("SELECT", int64(len(out)), rows.Err())
	return out, rows.Err()
}
