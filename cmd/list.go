package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/localstate"
	"github.com/marcus/doable/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "Create, join, and inspect shared lists",
	GroupID: "list",
}

var listCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new shared list and make it current",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, state, err := requireSession()
		if err != nil {
			return err
		}
		defer state.Close()

		client := newClient(sess)
		list, err := client.CreateList(cmd.Context())
		if err != nil {
			reportClientError(err)
			return err
		}

		sess.ListID = list.ID
		if err := state.SaveSession(sess); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := state.Set(localstate.KeyJoinCode, list.JoinCode); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("created list")
		output.Info("share this join code: %s", output.FormatJoinCode(list.JoinCode))
		return nil
	},
}

var listJoinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Join an existing list by its join code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, state, err := requireSession()
		if err != nil {
			return err
		}
		defer state.Close()

		code := strings.TrimSpace(args[0])
		client := newClient(sess)
		list, err := client.JoinList(cmd.Context(), code)
		if err != nil {
			reportClientError(err)
			return err
		}

		sess.ListID = list.ID
		if err := state.SaveSession(sess); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := state.Set(localstate.KeyJoinCode, list.JoinCode); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("joined list")
		return nil
	},
}

var listCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print the current list's join code",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, state, err := requireList()
		if err != nil {
			return err
		}
		defer state.Close()

		code, err := state.Get(localstate.KeyJoinCode)
		if err != nil {
			output.Error("join code not stored for this list")
			return err
		}
		output.Info("%s", output.FormatJoinCode(code))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listCreateCmd)
	listCmd.AddCommand(listJoinCmd)
	listCmd.AddCommand(listCodeCmd)
}
