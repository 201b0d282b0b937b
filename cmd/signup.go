package cmd

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/localstate"
	"github.com/marcus/doable/internal/output"
	"github.com/marcus/doable/internal/syncclient"
)

const defaultServerURL = "http://localhost:8080"

var signupCmd = &cobra.Command{
	Use:     "signup [name]",
	Short:   "Register with a sync server and store the identity locally",
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) > 0 {
			name = strings.TrimSpace(args[0])
		}
		if name == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Your name").
					Value(&name).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("name is required")
						}
						return nil
					}),
			))
			if err := form.Run(); err != nil {
				return err
			}
			name = strings.TrimSpace(name)
		}

		server, _ := cmd.Flags().GetString("server")

		client := syncclient.New(server, "")
		user, err := client.Signup(cmd.Context(), name)
		if err != nil {
			reportClientError(err)
			return err
		}

		state, err := openState()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer state.Close()

		// A fresh identity invalidates any previous list membership.
		sess := localstate.Session{
			ServerURL: server,
			UserID:    user.ID,
			UserName:  user.Name,
		}
		if err := state.SaveSession(sess); err != nil {
			output.Error("%v", err)
			return err
		}
		state.Delete(localstate.KeyJoinCode)

		output.Success("signed up as %s", user.Name)
		output.Info("next: doable list create (or doable list join <code>)")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().String("server", defaultServerURL, "Sync server base URL")
}
