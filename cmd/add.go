package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/output"
)

var addCmd = &cobra.Command{
	Use:     "add <title>",
	Aliases: []string{"new"},
	Short:   "Add a todo to the current list",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args, " "))
		if title == "" {
			output.Error("title is required")
			return fmt.Errorf("title is required")
		}

		sess, state, err := requireList()
		if err != nil {
			return err
		}
		defer state.Close()

		client := newClient(sess)
		todo, err := client.CreateTodo(cmd.Context(), sess.ListID, uuid.NewString(), title, time.Now().UTC())
		if err != nil {
			reportClientError(err)
			return err
		}

		output.Success("added: %s", todo.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
