package commands

import (
	"fmt"
	"os"
	"webharvest/lib/scrape"
	"webharvest/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	linksSelector *string
	linksFetcher  *string
)

func init() {
	linksSelector = linksCmd.Flags().String("selector", "a", "The selector link elements are matched by.")
	linksFetcher = linksCmd.Flags().String("fetcher", "resty", "The fetcher to use, resty or colly.")
	rootCmd.AddCommand(linksCmd)
}

var linksCmd = &cobra.Command{
	Use:   "links <url>",
	Short: "Prints the distinct absolute links of one page.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fetcher, err := newFetcher(*linksFetcher, scrape.FetcherOptions{})
		if err != nil {
			serviceutil.Fatal("failed to build fetcher", err)
		}

		res, fault := fetcher.Fetch(cmd.Context(), args[0], nil, 0)
		if fault != nil {
			serviceutil.Fatal("failed to fetch page", fault)
		}
		doc, err := scrape.ParseDocument(res.Body, res.Url)
		if err != nil {
			serviceutil.Fatal("failed to parse page", err)
		}
		if title := doc.Title(); title != "" {
			fmt.Printf("title: %s\n", title)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Url"})
		seen := map[string]bool{}
		for _, anchor := range doc.Anchors(*linksSelector) {
			target := anchor.Url.String()
			if seen[target] {
				continue
			}
			seen[target] = true
			t.AppendRow(table.Row{anchor.Name, target})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
