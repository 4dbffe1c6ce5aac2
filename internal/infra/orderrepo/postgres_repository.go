package orderrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evigrid/assess-console/internal/domain/orders"
	"github.com/evigrid/assess-console/pkg/errors"
)

// PostgresRepository implements orders.Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ orders.Repository = (*PostgresRepository)(nil)

// Append inserts a new order row.
func (r *PostgresRepository) Append(ctx context.Context, order orders.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, user_id, energy_type, plan, job_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, order.EnergyType, string(order.Plan), nullable(order.JobID), string(order.Status), order.CreatedAt, order.UpdatedAt)
	return err
}

// List returns the user's orders, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID int64) ([]orders.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, energy_type, plan, job_id, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

// Get returns one of the user's orders by id.
func (r *PostgresRepository) Get(ctx context.Context, id string, userID int64) (orders.Order, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, energy_type, plan, job_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2
		LIMIT 1
	`, id, userID)
	if err != nil {
		return orders.Order{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return orders.Order{}, false, rows.Err()
	}
	order, err := scanOrder(rows)
	if err != nil {
		return orders.Order{}, false, err
	}
	return order, true, rows.Err()
}

// UpdateStatus transitions an order's status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status orders.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(errors.CodeNotFound, "order not found", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (orders.Order, error) {
	var (
		order orders.Order
		plan  string
		jobID sql.NullString
		state string
	)
	if err := row.Scan(&order.ID, &order.UserID, &order.EnergyType, &plan, &jobID, &state, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	order.Plan = orders.Plan(plan)
	order.Status = orders.Status(state)
	if jobID.Valid {
		order.JobID = jobID.String
	}
	return order, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
