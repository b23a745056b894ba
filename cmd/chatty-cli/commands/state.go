package commands

import (
	"fmt"

	"chattysync/internal/parser"
	"chattysync/internal/store"
	"chattysync/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var stateThreads *bool

func init() {
	stateThreads = stateCmd.Flags().Bool("threads", false, "Also list every thread in the snapshot.")
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state <path/to/scrape-state.json.gz>",
	Short: "Summarizes a saved scrape state file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		state, err := store.ReadFile(args[0])
		if err != nil {
			osutil.Fatal("read state", err)
		}

		oldest := int64(0)
		if len(state.Events) > 0 {
			oldest = state.Events[0].ID
		}
		summary := newTable()
		summary.AppendRows([]table.Row{
			{"Threads", len(state.Chatty.Threads)},
			{"Posts", state.Chatty.PostCount()},
			{"Cached pages", len(state.Pages)},
			{"Threads with lols", len(state.LolCounts.Threads)},
			{"Retained events", len(state.Events)},
			{"Event ids", fmt.Sprintf("%d - %d", oldest, state.LastEventID())},
		})
		summary.Render()

		if !*stateThreads {
			return
		}
		threads := newTable()
		threads.AppendHeader(table.Row{"Id", "Author", "Replies", "Last post", "Preview"})
		for _, thread := range state.Chatty.Threads {
			root := thread.Root()
			preview := parser.PreviewFromBody(root.Body)
			if len(preview) > 50 {
				preview = preview[:50] + "..."
			}
			threads.AppendRow(table.Row{thread.ID, root.Author, len(thread.Posts) - 1, thread.MaxPostID(), preview})
		}
		threads.Render()
	},
}
