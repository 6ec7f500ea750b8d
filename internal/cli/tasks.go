package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTasksCmd создаёт группу команд для управления задачами.
func NewTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage scheduled tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(clientFn, outputFn),
		newTasksGetCmd(clientFn, outputFn),
		newTasksCreateCmd(clientFn, outputFn),
		newTasksResetCmd(clientFn, outputFn),
	)

	return cmd
}

var taskHeaders = []string{"ID", "TYPE", "STATUS", "RUN_AT", "REPEAT", "RULE", "PARAMS"}

func taskRow(t TaskResponse) []string {
	return []string{t.ID, t.TaskType, t.Status, t.RunAt, t.Repeat, t.RepeatRule, t.Params}
}

func newTasksListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks(status)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			outputFn().Print(taskHeaders, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, failed)")

	return cmd
}

func newTasksGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFn().GetTask(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}
}

func newTasksCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var params string
	var runAt string
	var repeat bool
	var rule string

	cmd := &cobra.Command{
		Use:   "create TYPE",
		Short: "Create a task",
		Long: `Create a scheduled task.

Examples:
  crm tasks create cleanup_reserve --params '{"reserve_id": 42}' --run-at 2025-01-01T10:00:00Z
  crm tasks create update_currency --repeat --rule "1 day,on_server_start"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CreateTaskRequest{
				TaskType:   args[0],
				RunAt:      runAt,
				Repeat:     repeat,
				RepeatRule: rule,
			}

			if params != "" {
				if !json.Valid([]byte(params)) {
					return fmt.Errorf("invalid --params: not valid JSON")
				}
				req.Params = json.RawMessage(params)
			}

			task, err := clientFn().CreateTask(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}

	cmd.Flags().StringVar(&params, "params", "", "Task params as a JSON object")
	cmd.Flags().StringVar(&runAt, "run-at", "", "Run time, ISO-8601 UTC (default: now)")
	cmd.Flags().BoolVar(&repeat, "repeat", false, "Keep the task after execution")
	cmd.Flags().StringVar(&rule, "rule", "", `Repeat rule, e.g. "10 minutes" or "1 day,on_server_start"`)

	return cmd
}

func newTasksResetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ID",
		Short: "Return a failed task to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFn().ResetTask(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Task reset: %s", task.ID))
			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}
}

// TriggerPublisher ставит запуск триггера в очередь.
type TriggerPublisher interface {
	PublishTriggerFire(name string) error
}

// NewTriggerCmd создаёт команду запуска триггера.
//
// По умолчанию триггер запускается через HTTP и команда ждёт результата.
// С --via-mq команда только ставит его в очередь tasks.trigger.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output, publisherFn func() (TriggerPublisher, func(), error)) *cobra.Command {
	var viaMQ bool

	cmd := &cobra.Command{
		Use:   "trigger NAME",
		Short: "Run tasks bound to a trigger now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("trigger name is empty")
			}
			out := outputFn()

			if viaMQ {
				if publisherFn == nil {
					return fmt.Errorf("message queue is not configured")
				}
				pub, closeFn, err := publisherFn()
				if err != nil {
					return err
				}
				defer closeFn()

				if err := pub.PublishTriggerFire(name); err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Trigger %s queued", name))
				return nil
			}

			result, err := clientFn().FireTrigger(name)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger %s: %d task(s) executed", name, result.Executed))
			out.Print([]string{"TRIGGER", "EXECUTED"}, [][]string{{name, fmt.Sprint(result.Executed)}}, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&viaMQ, "via-mq", false, "Queue the trigger through RabbitMQ instead of calling the API")

	return cmd
}
