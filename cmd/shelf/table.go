package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mmcdole/shelf/internal/domain"
)

// renderItems renders tracked items as a rounded table
func renderItems(items []domain.MediaItem) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Title", "Year", "Rating", "Watched", "Notes"})

	for _, item := range items {
		year := ""
		if y := item.Year(); y > 0 {
			year = strconv.Itoa(y)
		}
		rating := ""
		if item.Rating > 0 {
			rating = fmt.Sprintf("%.1f", item.Rating)
		}
		if item.UserRating != nil {
			rating = fmt.Sprintf("%s (%.1f)", rating, *item.UserRating)
		}
		watched := ""
		if item.WatchCount > 0 {
			watched = strconv.Itoa(item.WatchCount)
		}
		tw.AppendRow(table.Row{item.CompoundID(), item.Title, year, rating, watched, item.UserNotes})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, WidthMax: 40},
	})
	return tw.Render()
}
