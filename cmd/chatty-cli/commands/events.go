package commands

import (
	"fmt"

	"chattysync/internal/chatty"
	"chattysync/internal/store"
	"chattysync/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var eventsArchive *string
var eventsAfter *int64
var eventsLimit *int

func init() {
	eventsArchive = eventsCmd.Flags().String("archive", "data/events.db", "The sqlite event archive to read.")
	eventsAfter = eventsCmd.Flags().Int64("after", 0, "Only list events after this id.")
	eventsLimit = eventsCmd.Flags().Int("limit", 50, "The maximum number of events to list.")
	rootCmd.AddCommand(eventsCmd)
}

func describe(e chatty.Event) string {
	switch e.Type {
	case chatty.EventNewPost:
		return fmt.Sprintf("post %d by %s in thread %d", e.NewPost.PostID, e.NewPost.Post.Author, e.NewPost.Post.ThreadID)
	case chatty.EventCategoryChange:
		return fmt.Sprintf("post %d is now %s", e.CategoryChange.PostID, e.CategoryChange.Category)
	case chatty.EventLolCountsUpdate:
		return fmt.Sprintf("%d tag counts changed", len(e.LolCountsUpdate.Updates))
	case chatty.EventPostChange:
		return fmt.Sprintf("post %d changed", e.PostChange.PostID)
	case chatty.EventPostFreezeChange:
		return fmt.Sprintf("post %d frozen: %v", e.PostFreezeChange.PostID, e.PostFreezeChange.Frozen)
	case chatty.EventReadStatusUpdate:
		return fmt.Sprintf("read status of %s", e.ReadStatusUpdate.Username)
	}
	return ""
}

var eventsCmd = &cobra.Command{
	Use:   "events [--archive <path/to/events.db>] [--after <id>]",
	Short: "Lists archived events.",
	Run: func(cmd *cobra.Command, args []string) {
		archive, err := store.OpenArchive(*eventsArchive)
		if err != nil {
			osutil.Fatal("open archive", err)
		}
		defer archive.Close()

		events, err := archive.Range(cmd.Context(), *eventsAfter, *eventsLimit)
		if err != nil {
			osutil.Fatal("read archive", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Date", "Type", "Change"})
		for _, e := range events {
			t.AppendRow(table.Row{e.ID, e.Date.Format(dateFormat), e.Type, describe(e)})
		}
		t.Render()
	},
}
