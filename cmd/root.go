package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/localstate"
	"github.com/marcus/doable/internal/output"
	"github.com/marcus/doable/internal/syncclient"
)

var version string

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "doable",
	Short: "Shared todo lists that survive bad networks",
	Long: `doable - shared todo lists for small groups.

Changes apply locally the moment you make them and reconcile with the
server in the background, so the CLI stays responsive on flaky links.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "list", Title: "List Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

// openState opens the per-user local state database.
func openState() (*localstate.Store, error) {
	path, err := localstate.DefaultPath()
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("DOABLE_STATE_PATH"); v != "" {
		path = v
	}
	return localstate.Open(path)
}

// requireSession loads the stored session or tells the user to sign up.
// The caller owns closing the returned store.
func requireSession() (localstate.Session, *localstate.Store, error) {
	state, err := openState()
	if err != nil {
		output.Error("%v", err)
		return localstate.Session{}, nil, err
	}
	sess, err := state.LoadSession()
	if err != nil {
		state.Close()
		if errors.Is(err, localstate.ErrNotFound) {
			output.Error("not signed up yet, run: doable signup <name>")
			return localstate.Session{}, nil, fmt.Errorf("no session")
		}
		output.Error("%v", err)
		return localstate.Session{}, nil, err
	}
	return sess, state, nil
}

// requireList is requireSession plus a current list.
func requireList() (localstate.Session, *localstate.Store, error) {
	sess, state, err := requireSession()
	if err != nil {
		return sess, state, err
	}
	if sess.ListID == "" {
		state.Close()
		output.Error("no list selected, run: doable list create (or doable list join <code>)")
		return localstate.Session{}, nil, fmt.Errorf("no list")
	}
	return sess, state, nil
}

func newClient(sess localstate.Session) *syncclient.Client {
	return syncclient.New(sess.ServerURL, sess.UserID)
}

// reportClientError translates transport errors into user guidance.
func reportClientError(err error) {
	switch {
	case errors.Is(err, syncclient.ErrUnauthorized):
		output.Error("server no longer recognizes this user, run: doable signup <name>")
	case errors.Is(err, syncclient.ErrNotFound):
		output.Error("not found: %v", err)
	default:
		output.Error("%v", err)
	}
}
