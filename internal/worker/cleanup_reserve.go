package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
	"github.com/eduvision/crm/internal/telemetry"
)

// TaskTypeCleanupReserve — снятие просроченных резервов.
const TaskTypeCleanupReserve = "cleanup_reserve"

// ReservationStore — хранилище резервов и складских остатков.
type ReservationStore interface {
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	GetStock(ctx context.Context, productID string) (*domain.Stock, error)
	UpsertStock(ctx context.Context, stock *domain.Stock) error
}

// cleanupReserveIDs достаёт ID резервов из params.
// reserve_id важнее reserve_ids. reserve_ids, который не является массивом, игнорируется.
func cleanupReserveIDs(params json.RawMessage) ([]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return nil, err
	}

	if raw, ok := fields["reserve_id"]; ok {
		var id flexID
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("reserve_id: %w", err)
		}
		return []string{string(id)}, nil
	}

	raw, ok := fields["reserve_ids"]
	if !ok {
		return nil, nil
	}
	var list []flexID
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil
	}

	ids := make([]string, 0, len(list))
	for _, id := range list {
		ids = append(ids, string(id))
	}
	return ids, nil
}

// CleanupReserveHandler снимает резервы и возвращает количество в свободный остаток.
//
// Params:
//   - reserve_id: один резерв
//   - reserve_ids (массив): несколько резервов
//
// Нестроковый ID используется в виде своего JSON-текста.
//
// Отсутствующий резерв считается уже обработанным.
type CleanupReserveHandler struct {
	store  ReservationStore
	logger *slog.Logger
}

// NewCleanupReserveHandler создаёт handler cleanup_reserve.
func NewCleanupReserveHandler(store ReservationStore, logger *slog.Logger) *CleanupReserveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupReserveHandler{
		store:  store,
		logger: logger,
	}
}

// TaskType возвращает тип задачи.
func (h *CleanupReserveHandler) TaskType() string { return TaskTypeCleanupReserve }

// Handle снимает все резервы из params.
func (h *CleanupReserveHandler) Handle(ctx context.Context, params json.RawMessage) error {
	ids, err := cleanupReserveIDs(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	logger := telemetry.FromContext(ctx, h.logger).With("handler", TaskTypeCleanupReserve)

	if len(ids) == 0 {
		logger.Warn("no reserve_id or reserve_ids in params")
		return nil
	}

	for _, id := range ids {
		if err := h.release(ctx, id, logger); err != nil {
			return err
		}
	}
	return nil
}

// release снимает один резерв.
func (h *CleanupReserveHandler) release(ctx context.Context, id string, logger *slog.Logger) error {
	res, err := h.store.GetReservation(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Info("reservation already released", "reserve_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get reservation %s: %w", id, err)
	}

	if err := h.store.DeleteReservation(ctx, id); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}

	stock, err := h.store.GetStock(ctx, res.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("product not found in stock", "reserve_id", id, "product_id", res.ProductID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get stock %s: %w", res.ProductID, err)
	}

	stock.Release(res.Quantity)
	if err := h.store.UpsertStock(ctx, stock); err != nil {
		return fmt.Errorf("update stock %s: %w", res.ProductID, err)
	}

	logger.Info("reservation released",
		"reserve_id", id,
		"product_id", res.ProductID,
		"quantity", res.Quantity,
	)
	return nil
}
