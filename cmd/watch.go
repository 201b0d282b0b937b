package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/engine"
	"github.com/marcus/doable/internal/output"
	"github.com/marcus/doable/internal/syncclient"
	"github.com/marcus/doable/internal/tui/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Live view of the current list",
	GroupID: "core",
	Long: `Launch a live-updating view of the current list.

Keystrokes apply immediately and reconcile with the server in the
background; changes from other members appear as they happen.

Key bindings:
  a            Add a todo
  Enter/Space  Advance the selected todo (todo → ongoing → done)
  u            Step the selected todo back
  j/k, ↑/↓     Move selection
  q            Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, state, err := requireList()
		if err != nil {
			return err
		}
		defer state.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		client := newClient(sess)
		eng := engine.New(client, engine.NewScope(sess.ListID, sess.UserID))

		model := watch.NewModel(ctx, eng, fmt.Sprintf("%s's list", sess.UserName))
		p := tea.NewProgram(model, tea.WithAltScreen())

		eng.SetOnChange(func() { p.Send(watch.RefreshMsg{}) })
		eng.OnExpired = func() { p.Send(watch.ExpiredMsg{}) }

		go streamEvents(ctx, client, eng, p, sess.ListID)

		final, err := p.Run()
		cancel()
		if err != nil {
			return fmt.Errorf("error running watch: %w", err)
		}
		if m, ok := final.(watch.Model); ok && m.Expired() {
			output.Error("server no longer recognizes this user, run: doable signup <name>")
			return fmt.Errorf("session expired")
		}
		return nil
	},
}

// streamEvents keeps the notification stream open for the life of the
// view, reconnecting with capped exponential backoff. Every successful
// (re)connect resyncs and restarts stalled mutation runs.
func streamEvents(ctx context.Context, client *syncclient.Client, eng *engine.Engine, p *tea.Program, listID string) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for ctx.Err() == nil {
		events, err := client.Events(ctx, listID)
		if err != nil {
			if errors.Is(err, syncclient.ErrUnauthorized) {
				p.Send(watch.ExpiredMsg{})
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		for ev := range events {
			switch ev {
			case syncclient.EventConnected:
				backoff = time.Second
				p.Send(watch.ConnMsg{Connected: true})
				go eng.OnConnected(ctx)
			case syncclient.EventChanged:
				go eng.OnChanged(ctx)
			}
		}

		// Stream dropped; the next iteration reconnects.
		p.Send(watch.ConnMsg{Connected: false})
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
