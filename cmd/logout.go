package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/output"
)

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the stored identity and list",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openState()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer state.Close()

		if err := state.ClearSession(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
