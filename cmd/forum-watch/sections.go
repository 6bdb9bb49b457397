package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"forum-watch/internal/forum"
)

func newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "Lists known forum sections and sort orders.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)

			t.AppendHeader(table.Row{"Kind", "Key", "Label", "Query"})
			for _, s := range forum.Sections() {
				t.AppendRow(table.Row{"section", s.Key(), s.Label(), fmt.Sprintf("Id=%d", s.ID())})
			}
			t.AppendSeparator()
			for _, s := range forum.Sorts() {
				t.AppendRow(table.Row{"sort", s.Key(), s.Label(), "Sort=" + s.QueryValue()})
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
}
