package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eduvision/crm/internal/telemetry"
)

// TaskTypeUpdateCurrency — обновление курса валют.
const TaskTypeUpdateCurrency = "update_currency"

const defaultHTTPTimeout = 30 * time.Second

// CurrencyUpdater — внешний сервис обновления курса валют.
type CurrencyUpdater interface {
	UpdateCurrency(ctx context.Context, updatePrices bool) error
}

// updateCurrencyParams — params задачи update_currency.
type updateCurrencyParams struct {
	UpdatePrices *flexBool `json:"update_prices"`
}

// UpdateCurrencyHandler обновляет курс валют и, по умолчанию, пересчитывает цены.
//
// Params:
//   - update_prices (bool|string): пересчитывать ли цены. Default: true
type UpdateCurrencyHandler struct {
	updater CurrencyUpdater
	logger  *slog.Logger
}

// NewUpdateCurrencyHandler создаёт handler update_currency.
func NewUpdateCurrencyHandler(updater CurrencyUpdater, logger *slog.Logger) *UpdateCurrencyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateCurrencyHandler{
		updater: updater,
		logger:  logger,
	}
}

// TaskType возвращает тип задачи.
func (h *UpdateCurrencyHandler) TaskType() string { return TaskTypeUpdateCurrency }

// Handle вызывает обновление курса.
func (h *UpdateCurrencyHandler) Handle(ctx context.Context, params json.RawMessage) error {
	var p updateCurrencyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	updatePrices := true
	if p.UpdatePrices != nil {
		updatePrices = bool(*p.UpdatePrices)
	}

	if err := h.updater.UpdateCurrency(ctx, updatePrices); err != nil {
		return fmt.Errorf("update currency: %w", err)
	}

	telemetry.FromContext(ctx, h.logger).Info("currency updated",
		"handler", TaskTypeUpdateCurrency,
		"update_prices", updatePrices,
	)
	return nil
}

// CurrencyClient — HTTP-клиент сервиса курсов.
//
// Отправляет POST {"update_prices": bool} на URL. Любой ответ вне 2xx — ошибка.
type CurrencyClient struct {
	url    string
	client *http.Client
}

// NewCurrencyClient создаёт клиент. timeout <= 0 — 30 секунд.
func NewCurrencyClient(url string, timeout time.Duration) *CurrencyClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &CurrencyClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// UpdateCurrency выполняет запрос к сервису курсов.
func (c *CurrencyClient) UpdateCurrency(ctx context.Context, updatePrices bool) error {
	if c.url == "" {
		return fmt.Errorf("%w: currency url is not configured", ErrHTTPRequest)
	}

	body, err := json.Marshal(map[string]bool{"update_prices": updatePrices})
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrHTTPRequest, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
