package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/jukebox/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderSummary 是终端下的 run 摘要。
func renderSummary(rr domain.RunReport) string {
	mode := "dry-run"
	if !rr.DryRun {
		mode = "apply"
	}
	rows := [][]string{
		{"run_id", rr.RunID},
		{"path", rr.Path},
		{"mode", mode},
		{"elapsed", formatShortDuration(rr.FinishedAt.Sub(rr.StartedAt))},
		{"processed", strconv.Itoa(rr.Summary.Processed)},
		{"cached", strconv.Itoa(rr.Summary.Cached)},
		{"failed", strconv.Itoa(rr.Summary.Failed)},
	}
	return renderTable([]string{"Run", ""}, rows, []columnAlignment{alignLeft, alignRight})
}

// renderFailures 列出失败条目；没有失败时返回空串。
func renderFailures(rr domain.RunReport) string {
	var rows [][]string
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := it.Key
		if key == "" {
			key = "-"
		}
		rows = append(rows, []string{key, string(it.Stage), it.ErrorCode, truncate(it.ErrorMsg, 100)})
	}
	if len(rows) == 0 {
		return ""
	}
	return fmt.Sprintf("失败条目（%d）:\n%s", len(rows),
		renderTable([]string{"Key", "Stage", "Code", "Message"}, rows, nil),
	)
}
