package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduvision/crm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepo — резервы (reserve) и складские остатки (sklad) в PostgreSQL.
type ReservationRepo struct {
	pool *pgxpool.Pool
}

// NewReservationRepo создаёт новый ReservationRepo.
func NewReservationRepo(pool *pgxpool.Pool) *ReservationRepo {
	return &ReservationRepo{pool: pool}
}

// GetReservation возвращает резерв по id_reserve.
func (r *ReservationRepo) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT id_reserve, id_prod, quantity FROM reserve WHERE id_reserve = $1`

	var res domain.Reservation
	err := r.pool.QueryRow(ctx, query, id).Scan(&res.ID, &res.ProductID, &res.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// CreateReservation сохраняет резерв.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	query := `INSERT INTO reserve (id_reserve, id_prod, quantity) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, res.ID, res.ProductID, res.Quantity); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// DeleteReservation удаляет резерв по id_reserve.
func (r *ReservationRepo) DeleteReservation(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM reserve WHERE id_reserve = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStock возвращает складской остаток товара.
func (r *ReservationRepo) GetStock(ctx context.Context, productID string) (*domain.Stock, error) {
	query := `SELECT id_prod, free, reserv FROM sklad WHERE id_prod = $1`

	var stock domain.Stock
	err := r.pool.QueryRow(ctx, query, productID).Scan(&stock.ProductID, &stock.Free, &stock.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &stock, nil
}

// UpsertStock записывает складской остаток товара.
func (r *ReservationRepo) UpsertStock(ctx context.Context, stock *domain.Stock) error {
	query := `
		INSERT INTO sklad (id_prod, free, reserv)
		VALUES ($1, $2, $3)
		ON CONFLICT (id_prod) DO UPDATE SET free = EXCLUDED.free, reserv = EXCLUDED.reserv
	`
	if _, err := r.pool.Exec(ctx, query, stock.ProductID, stock.Free, stock.Reserved); err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}
