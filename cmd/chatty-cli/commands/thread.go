package commands

import (
	"fmt"
	"strconv"
	"strings"

	"chattysync/internal/components/telemetry"
	"chattysync/internal/download"
	"chattysync/internal/parser"
	"chattysync/internal/shack"
	"chattysync/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

type credentials struct {
	Username string `envconfig:"CHATTY_SHARED_USERNAME" required:"true"`
	Password string `envconfig:"CHATTY_SHARED_PASSWORD" required:"true"`
}

var threadBaseUrl *string
var threadVerbose *bool

func init() {
	threadBaseUrl = threadCmd.Flags().String("base-url", "https://www.shacknews.com", "The upstream to fetch from.")
	threadVerbose = threadCmd.Flags().BoolP("verbose", "v", false, "Log every request.")
	rootCmd.AddCommand(threadCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread <id>",
	Short: "Fetches a thread live from upstream and prints its posts.",
	Long:  "Fetches a thread live from upstream and prints its posts. The shared login is read from CHATTY_SHARED_USERNAME and CHATTY_SHARED_PASSWORD.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			osutil.Fatal("invalid thread id", err)
		}
		var creds credentials
		err = envconfig.Process("", &creds)
		if err != nil {
			osutil.Fatal("read credentials", err)
		}

		telemetry.InitSlog(*threadVerbose)
		tel := telemetry.SlogAPI{}
		dl, err := download.New(download.Options{
			Client: download.ClientOptions{
				BaseUrl:          *threadBaseUrl,
				CloudflareBypass: true,
			},
			Username: creds.Username,
			Password: creds.Password,
		}, tel)
		if err != nil {
			osutil.Fatal("create downloader", err)
		}
		client := shack.NewClient(dl, tel)

		thread, err := client.GetThread(cmd.Context(), id)
		if err != nil {
			osutil.Fatal("fetch thread", err)
		}

		t := newTable()
		t.SetTitle(fmt.Sprintf("Thread %d", thread.ID))
		t.AppendHeader(table.Row{"Id", "Author", "Category", "Date", "Preview"})
		for _, p := range thread.Posts {
			preview := parser.PreviewFromBody(p.Body)
			if len(preview) > 60 {
				preview = preview[:60] + "..."
			}
			t.AppendRow(table.Row{
				p.ID,
				strings.Repeat("  ", p.Depth) + p.Author,
				p.Category,
				p.Date.Format(dateFormat),
				preview,
			})
		}
		t.Render()
	},
}
