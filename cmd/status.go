package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/localstate"
	"github.com/marcus/doable/internal/output"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the stored identity and current list",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openState()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer state.Close()

		sess, err := state.LoadSession()
		if errors.Is(err, localstate.ErrNotFound) {
			output.Info("not signed up, run: doable signup <name>")
			return nil
		}
		if err != nil {
			output.Error("%v", err)
			return err
		}

		output.Info("user:   %s (%s)", sess.UserName, sess.UserID)
		output.Info("server: %s", sess.ServerURL)
		if sess.ListID == "" {
			output.Info("list:   none, run: doable list create")
		} else {
			output.Info("list:   %s", sess.ListID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
