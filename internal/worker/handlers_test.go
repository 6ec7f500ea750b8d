package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
)

// --- CleanupReserveHandler Tests ---

func newReservationFixture(t *testing.T) *repo.MemoryReservationStore {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemoryReservationStore()
	store.CreateReservation(ctx, &domain.Reservation{ID: "1", ProductID: "p1", Quantity: 3})
	store.CreateReservation(ctx, &domain.Reservation{ID: "2", ProductID: "p1", Quantity: 2})
	store.CreateReservation(ctx, &domain.Reservation{ID: "3", ProductID: "ghost", Quantity: 9})
	store.UpsertStock(ctx, &domain.Stock{ProductID: "p1", Free: 10, Reserved: 4})
	return store
}

func TestCleanupReserve_SingleNumericID(t *testing.T) {
	store := newReservationFixture(t)
	h := NewCleanupReserveHandler(store, nil)

	if err := h.Handle(context.Background(), json.RawMessage(`{"reserve_id": 1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.GetReservation(context.Background(), "1"); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("reservation 1 should be deleted, got %v", err)
	}

	stock, _ := store.GetStock(context.Background(), "p1")
	if stock.Free != 13 || stock.Reserved != 1 {
		t.Errorf("expected free=13 reserv=1, got free=%d reserv=%d", stock.Free, stock.Reserved)
	}
}

func TestCleanupReserve_ListClampsReserved(t *testing.T) {
	store := newReservationFixture(t)
	h := NewCleanupReserveHandler(store, nil)

	// 3 + 2 > 4 — reserv не уходит ниже нуля
	if err := h.Handle(context.Background(), json.RawMessage(`{"reserve_ids": ["1", 2]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock, _ := store.GetStock(context.Background(), "p1")
	if stock.Free != 15 || stock.Reserved != 0 {
		t.Errorf("expected free=15 reserv=0, got free=%d reserv=%d", stock.Free, stock.Reserved)
	}
}

func TestCleanupReserve_MissingIsIdempotent(t *testing.T) {
	store := newReservationFixture(t)
	h := NewCleanupReserveHandler(store, nil)
	params := json.RawMessage(`{"reserve_id": "1"}`)

	if err := h.Handle(context.Background(), params); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Повторный запуск — резерва уже нет, остаток не меняется
	if err := h.Handle(context.Background(), params); err != nil {
		t.Fatalf("second run: %v", err)
	}

	stock, _ := store.GetStock(context.Background(), "p1")
	if stock.Free != 13 {
		t.Errorf("stock must be released once, got free=%d", stock.Free)
	}
}

func TestCleanupReserve_UnknownProductSkipped(t *testing.T) {
	store := newReservationFixture(t)
	h := NewCleanupReserveHandler(store, nil)

	if err := h.Handle(context.Background(), json.RawMessage(`{"reserve_id": "3"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetReservation(context.Background(), "3"); !errors.Is(err, repo.ErrNotFound) {
		t.Error("reservation must be deleted even when product is missing")
	}
}

func TestCleanupReserve_NoIDs(t *testing.T) {
	h := NewCleanupReserveHandler(repo.NewMemoryReservationStore(), nil)
	if err := h.Handle(context.Background(), emptyObject); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestCleanupReserve_LenientParams(t *testing.T) {
	tests := []struct {
		name   string
		params string
	}{
		{"reserve_ids string", `{"reserve_ids": "abc"}`},
		{"reserve_ids object", `{"reserve_ids": {"a": 1}}`},
		{"reserve_ids null", `{"reserve_ids": null}`},
		{"object reserve_id", `{"reserve_id": {"x": 1}}`},
		{"null reserve_id", `{"reserve_id": null}`},
		{"bool in reserve_ids", `{"reserve_ids": [true, false]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newReservationFixture(t)
			h := NewCleanupReserveHandler(store, nil)

			if err := h.Handle(context.Background(), json.RawMessage(tt.params)); err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			stock, _ := store.GetStock(context.Background(), "p1")
			if stock.Free != 10 || stock.Reserved != 4 {
				t.Errorf("stock must not change, got free=%d reserv=%d", stock.Free, stock.Reserved)
			}
		})
	}
}

func TestCleanupReserveIDs(t *testing.T) {
	tests := []struct {
		params string
		want   []string
	}{
		{`{"reserve_id": "7", "reserve_ids": ["1"]}`, []string{"7"}},
		{`{"reserve_id": 1.5}`, []string{"1.5"}},
		{`{"reserve_id": {"x": 1}}`, []string{`{"x":1}`}},
		{`{"reserve_ids": [true, null, "a", 3]}`, []string{"true", "null", "a", "3"}},
		{`{"reserve_ids": "abc"}`, nil},
		{`{}`, nil},
	}

	for _, tt := range tests {
		got, err := cleanupReserveIDs(json.RawMessage(tt.params))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.params, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.params, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: got %v, want %v", tt.params, got, tt.want)
				break
			}
		}
	}
}

func TestCleanupReserve_NonObjectParams(t *testing.T) {
	h := NewCleanupReserveHandler(repo.NewMemoryReservationStore(), nil)
	err := h.Handle(context.Background(), json.RawMessage(`[1, 2]`))
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}

type failingReservationStore struct {
	*repo.MemoryReservationStore
}

func (s failingReservationStore) UpsertStock(ctx context.Context, stock *domain.Stock) error {
	return errors.New("connection reset")
}

func TestCleanupReserve_StoreErrorReturned(t *testing.T) {
	store := failingReservationStore{newReservationFixture(t)}
	h := NewCleanupReserveHandler(store, nil)

	err := h.Handle(context.Background(), json.RawMessage(`{"reserve_id": "1"}`))
	if err == nil {
		t.Fatal("expected store error to be returned")
	}
}

// --- UpdateCurrencyHandler Tests ---

type recordingUpdater struct {
	calls []bool
	err   error
}

func (u *recordingUpdater) UpdateCurrency(ctx context.Context, updatePrices bool) error {
	u.calls = append(u.calls, updatePrices)
	return u.err
}

func TestUpdateCurrency_Params(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   bool
	}{
		{"default", `{}`, true},
		{"bool false", `{"update_prices": false}`, false},
		{"text yes", `{"update_prices": "yes"}`, true},
		{"text false", `{"update_prices": "false"}`, false},
		{"text 1", `{"update_prices": "1"}`, true},
		{"number 0", `{"update_prices": 0}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updater := &recordingUpdater{}
			h := NewUpdateCurrencyHandler(updater, nil)

			if err := h.Handle(context.Background(), json.RawMessage(tt.params)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(updater.calls) != 1 || updater.calls[0] != tt.want {
				t.Errorf("expected update_prices=%v, got %v", tt.want, updater.calls)
			}
		})
	}
}

func TestUpdateCurrency_ErrorReturned(t *testing.T) {
	updater := &recordingUpdater{err: errors.New("rates provider down")}
	h := NewUpdateCurrencyHandler(updater, nil)

	if err := h.Handle(context.Background(), emptyObject); err == nil {
		t.Error("expected error")
	}
}

// --- CurrencyClient Tests ---

func TestCurrencyClient_PostsBody(t *testing.T) {
	var received map[string]bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewCurrencyClient(server.URL, 0)
	if err := client.UpdateCurrency(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := received["update_prices"]; !ok || v {
		t.Errorf("expected update_prices=false, got %v", received)
	}
}

func TestCurrencyClient_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	err := NewCurrencyClient(server.URL, 0).UpdateCurrency(context.Background(), true)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
}

func TestCurrencyClient_NoURL(t *testing.T) {
	err := NewCurrencyClient("", 0).UpdateCurrency(context.Background(), true)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
}
