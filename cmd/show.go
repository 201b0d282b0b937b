package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marcus/doable/internal/output"
)

var showCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"ls"},
	Short:   "Show the current list",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, state, err := requireList()
		if err != nil {
			return err
		}
		defer state.Close()

		client := newClient(sess)
		todos, _, err := client.ListTodos(cmd.Context(), sess.ListID, "")
		if err != nil {
			reportClientError(err)
			return err
		}

		visible := todos[:0]
		for _, t := range todos {
			if !t.Deleted {
				visible = append(visible, t)
			}
		}
		sort.Slice(visible, func(i, j int) bool {
			if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
				return visible[i].CreatedAt.Before(visible[j].CreatedAt)
			}
			return visible[i].ID < visible[j].ID
		})

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return output.JSON(visible)
		}

		title := fmt.Sprintf("%s's list", sess.UserName)
		fmt.Print(output.RenderTodos(title, visible))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "Output as JSON")
}
