package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/output"
	"github.com/marcus/doable/internal/syncclient"
)

var moveCmd = &cobra.Command{
	Use:     "move <id> <state>",
	Short:   "Move a todo to another state (todo, ongoing, done)",
	GroupID: "core",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		next := models.State(strings.ToLower(args[1]))
		if !models.IsValidState(next) {
			output.Error("unknown state %q (want todo, ongoing, or done)", args[1])
			return fmt.Errorf("unknown state")
		}
		return moveTodo(cmd.Context(), args[0], next)
	},
}

var startCmd = &cobra.Command{
	Use:     "start <id>",
	Short:   "Move a todo to ongoing",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveTodo(cmd.Context(), args[0], models.StateOngoing)
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	Short:   "Move a todo to done",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveTodo(cmd.Context(), args[0], models.StateDone)
	},
}

// moveTodo resolves the id prefix against the current list and applies the
// transition with the server's optimistic lock. A lost race is retried once
// from the server's copy when the move still makes sense.
func moveTodo(ctx context.Context, idPrefix string, next models.State) error {
	sess, state, err := requireList()
	if err != nil {
		return err
	}
	defer state.Close()

	client := newClient(sess)
	todos, _, err := client.ListTodos(ctx, sess.ListID, "")
	if err != nil {
		reportClientError(err)
		return err
	}

	todo, err := resolveTodo(todos, idPrefix)
	if err != nil {
		output.Error("%v", err)
		return err
	}
	if todo.State == next {
		output.Info("already %s: %s", next, todo.Title)
		return nil
	}
	if !models.CanTransition(todo.State, next) {
		output.Error("cannot move %q from %s to %s", todo.Title, todo.State, next)
		return fmt.Errorf("invalid transition")
	}

	updated, err := client.UpdateState(ctx, todo.ID, next, todo.Version)
	var conflict *syncclient.ConflictError
	if errors.As(err, &conflict) {
		current := conflict.CurrentTodo
		if current.State == next {
			output.Info("already %s: %s", next, current.Title)
			return nil
		}
		if !models.CanTransition(current.State, next) {
			output.Error("someone else moved %q to %s first", current.Title, current.State)
			return err
		}
		updated, err = client.UpdateState(ctx, todo.ID, next, current.Version)
	}
	if err != nil {
		reportClientError(err)
		return err
	}

	output.Success("%s %s", output.FormatState(updated.State), updated.Title)
	return nil
}

// resolveTodo matches an id prefix against live todos.
func resolveTodo(todos []models.Todo, idPrefix string) (models.Todo, error) {
	var matches []models.Todo
	for _, t := range todos {
		if t.Deleted {
			continue
		}
		if strings.HasPrefix(t.ID, idPrefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Todo{}, fmt.Errorf("no todo matches %q", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return models.Todo{}, fmt.Errorf("%q is ambiguous (%d matches), use more characters", idPrefix, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doneCmd)
}
