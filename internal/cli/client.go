package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача из API.
type TaskResponse struct {
	ID         string `json:"id"`
	TaskType   string `json:"task_type"`
	Params     string `json:"params"`
	RunAt      string `json:"run_at"`
	Status     string `json:"status"`
	Repeat     string `json:"repeat"`
	RepeatRule string `json:"repeat_rule"`
}

// TriggerResult — результат запуска триггера.
type TriggerResult struct {
	Success  bool `json:"success"`
	Executed int  `json:"executed"`
}

// --- Request types ---

// CreateTaskRequest — создание задачи.
type CreateTaskRequest struct {
	TaskType   string          `json:"task_type"`
	Params     json.RawMessage `json:"params,omitempty"`
	RunAt      string          `json:"run_at,omitempty"`
	Repeat     bool            `json:"repeat"`
	RepeatRule string          `json:"repeat_rule,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type createTaskResponse struct {
	Success bool         `json:"success"`
	Task    TaskResponse `json:"task"`
}

// errorResponse разбирает оба формата ошибок API:
// {"error": {"code": ..., "message": ...}} и {"error": "..."}.
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

func (e errorResponse) message() string {
	var text string
	if err := json.Unmarshal(e.Error, &text); err == nil {
		return text
	}

	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Error, &detail); err == nil && detail.Message != "" {
		return detail.Code + ": " + detail.Message
	}
	return string(e.Error)
}

// --- Client ---

// Client — HTTP-клиент для API планировщика.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает задачи. Если status не пустой — фильтрует.
func (c *Client) ListTasks(status string) ([]TaskResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.doData(http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task)
	return &task, err
}

// ResetTask возвращает задачу из failed в pending.
func (c *Client) ResetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.doData(http.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/reset", nil, &task)
	return &task, err
}

// CreateTask создаёт задачу через POST /api/tasks.
func (c *Client) CreateTask(req CreateTaskRequest) (*TaskResponse, error) {
	var resp createTaskResponse
	if err := c.doPlain(http.MethodPost, "/api/tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// FireTrigger запускает задачи с триггером name.
func (c *Client) FireTrigger(name string) (*TriggerResult, error) {
	var result TriggerResult
	err := c.doPlain(http.MethodPost, "/api/tasks/trigger/"+url.PathEscape(name), nil, &result)
	return &result, err
}

// --- HTTP helpers ---

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	var dr dataResponse
	if err := c.doPlain(method, path, body, &dr); err != nil {
		return err
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

// doPlain декодирует тело ответа целиком, без конверта data.
func (c *Client) doPlain(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || len(er.Error) == 0 {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("API error: HTTP %d: %s", resp.StatusCode, er.message())
}
