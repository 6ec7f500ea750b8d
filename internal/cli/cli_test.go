package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()

	var requests []string
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, "list "+r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []TaskResponse{
				{ID: "t-1", TaskType: "cleanup_reserve", Status: "failed", Params: `{"reserve_id":1}`},
			},
			"total": 1,
		})
	})
	mux.HandleFunc("GET /api/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t-1" {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]string{"code": "NOT_FOUND", "message": "task not found"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": TaskResponse{ID: "t-1", Status: "failed"}})
	})
	mux.HandleFunc("POST /api/v1/tasks/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, "reset "+r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]any{"data": TaskResponse{ID: r.PathValue("id"), Status: "pending"}})
	})
	mux.HandleFunc("POST /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskType == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_type required"})
			return
		}
		requests = append(requests, "create "+req.TaskType+" "+string(req.Params)+" "+req.RepeatRule)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"task":    TaskResponse{ID: "t-new", TaskType: req.TaskType, Status: "pending"},
		})
	})
	mux.HandleFunc("POST /api/tasks/trigger/{name}", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, "trigger "+r.PathValue("name"))
		writeJSON(w, http.StatusOK, TriggerResult{Success: true, Executed: 3})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fakeTriggerPublisher struct {
	names []string
	err   error
}

func (p *fakeTriggerPublisher) PublishTriggerFire(name string) error {
	p.names = append(p.names, name)
	return p.err
}

// run выполняет команду CLI и возвращает stdout и stderr.
func run(t *testing.T, baseURL string, pub TriggerPublisher, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(baseURL) }
	outputFn := func() *Output { return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr} }
	publisherFn := func() (TriggerPublisher, func(), error) {
		if pub == nil {
			return nil, nil, errors.New("no broker")
		}
		return pub, func() {}, nil
	}

	root := NewTasksCmd(clientFn, outputFn)
	trigger := NewTriggerCmd(clientFn, outputFn, publisherFn)

	cmd := root
	if args[0] == "trigger" {
		cmd = trigger
	}
	cmd.SetArgs(args[1:])
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTasksList(t *testing.T) {
	srv, requests := newTestAPI(t)

	stdout, _, err := run(t, srv.URL, nil, false, "tasks", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(stdout, "t-1") || !strings.Contains(stdout, "cleanup_reserve") {
		t.Errorf("table output missing task:\n%s", stdout)
	}
	if !strings.HasPrefix(stdout, "ID") {
		t.Errorf("table must start with headers:\n%s", stdout)
	}
	if (*requests)[0] != "list failed" {
		t.Errorf("request = %q", (*requests)[0])
	}
}

func TestTasksList_JSON(t *testing.T) {
	srv, _ := newTestAPI(t)

	stdout, _, err := run(t, srv.URL, nil, true, "tasks", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var tasks []TaskResponse
	if err := json.Unmarshal([]byte(stdout), &tasks); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(tasks) != 1 || tasks[0].Params != `{"reserve_id":1}` {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestTasksGet_NotFound(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, _, err := run(t, srv.URL, nil, false, "tasks", "get", "missing")
	if err == nil || !strings.Contains(err.Error(), "task not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestTasksCreate(t *testing.T) {
	srv, requests := newTestAPI(t)

	_, stderr, err := run(t, srv.URL, nil, false,
		"tasks", "create", "update_currency", "--params", `{"update_prices":false}`, "--repeat", "--rule", "1 day")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(stderr, "Task created: t-new") {
		t.Errorf("stderr = %q", stderr)
	}
	if (*requests)[0] != `create update_currency {"update_prices":false} 1 day` {
		t.Errorf("request = %q", (*requests)[0])
	}
}

func TestTasksCreate_InvalidParams(t *testing.T) {
	srv, requests := newTestAPI(t)

	_, _, err := run(t, srv.URL, nil, false, "tasks", "create", "x", "--params", "{oops")
	if err == nil {
		t.Fatal("expected error for invalid params")
	}
	if len(*requests) != 0 {
		t.Error("invalid params must not reach the API")
	}
}

func TestTasksReset(t *testing.T) {
	srv, requests := newTestAPI(t)

	_, stderr, err := run(t, srv.URL, nil, false, "tasks", "reset", "t-9")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if (*requests)[0] != "reset t-9" || !strings.Contains(stderr, "Task reset: t-9") {
		t.Errorf("requests=%v stderr=%q", *requests, stderr)
	}
}

func TestTrigger(t *testing.T) {
	srv, requests := newTestAPI(t)

	_, stderr, err := run(t, srv.URL, nil, false, "trigger", "on_new_order")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if (*requests)[0] != "trigger on_new_order" {
		t.Errorf("request = %q", (*requests)[0])
	}
	if !strings.Contains(stderr, "3 task(s) executed") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestTrigger_ViaMQ(t *testing.T) {
	srv, requests := newTestAPI(t)
	pub := &fakeTriggerPublisher{}

	_, stderr, err := run(t, srv.URL, pub, false, "trigger", "on_new_order", "--via-mq")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(pub.names) != 1 || pub.names[0] != "on_new_order" {
		t.Errorf("published %v", pub.names)
	}
	if len(*requests) != 0 {
		t.Error("--via-mq must not call the API")
	}
	if !strings.Contains(stderr, "queued") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestClient_LegacyError(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, err := NewClient(srv.URL).CreateTask(CreateTaskRequest{})
	if err == nil || !strings.Contains(err.Error(), "task_type required") {
		t.Fatalf("err = %v, want legacy error message", err)
	}
}
