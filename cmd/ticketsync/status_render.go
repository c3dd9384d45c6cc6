package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ticketsync/internal/ledger"
	"ticketsync/internal/pipeline"
	"ticketsync/internal/statusapi"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// stageTitle renders a stage name for humans, e.g. "Conversation Attachments".
func stageTitle(stg ledger.Stage) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(stg), "_", " "))
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if c := statusKindColor(kind); c != nil {
			return c.Sprint(base)
		}
	}
	return base
}

func renderInfoLine(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) *color.Color {
	var c *color.Color
	switch kind {
	case statusOK:
		c = color.New(color.FgGreen)
	case statusWarn:
		c = color.New(color.FgYellow)
	case statusError:
		c = color.New(color.FgRed)
	case statusInfo:
		c = color.New(color.FgBlue)
	default:
		return nil
	}
	c.EnableColor()
	return c
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		header := color.New(color.FgBlue)
		header.EnableColor()
		line = header.Sprint(line)
		rule = header.Sprint(rule)
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func stageRows(stages []ledger.StageSummary) [][]string {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			stageTitle(s.Stage),
			strconv.Itoa(s.Unset),
			strconv.Itoa(s.InProgress),
			strconv.Itoa(s.Done),
			strconv.Itoa(s.Empty),
			strconv.Itoa(s.SubItems),
		})
	}
	return rows
}

// stageTotals sums every count column of the stage table.
func stageTotals(stages []ledger.StageSummary) []string {
	var total ledger.StageSummary
	for _, s := range stages {
		total.Unset += s.Unset
		total.InProgress += s.InProgress
		total.Done += s.Done
		total.Empty += s.Empty
		total.SubItems += s.SubItems
	}
	return []string{
		"Total",
		strconv.Itoa(total.Unset),
		strconv.Itoa(total.InProgress),
		strconv.Itoa(total.Done),
		strconv.Itoa(total.Empty),
		strconv.Itoa(total.SubItems),
	}
}

func renderSummary(summary statusapi.Summary, source string, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Ledger", colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderInfoLine("Source", source) + "\n")
	b.WriteString(renderInfoLine("Records", strconv.Itoa(summary.Ledger.Records)) + "\n")

	inProgress := 0
	for _, s := range summary.Ledger.Stages {
		inProgress += s.InProgress
	}
	switch {
	case summary.Ledger.Records == 0:
		b.WriteString(renderStatusLine("Progress", statusInfo, "ledger is empty", colorize) + "\n")
	case summary.Complete:
		b.WriteString(renderStatusLine("Progress", statusOK, "every stage resolved", colorize) + "\n")
	case inProgress > 0:
		b.WriteString(renderStatusLine("Progress", statusWarn, pluralize(inProgress, "claim")+" in progress", colorize) + "\n")
	default:
		b.WriteString(renderStatusLine("Progress", statusInfo, "work remaining", colorize) + "\n")
	}
	b.WriteString(stageLayout.render(stageRows(summary.Ledger.Stages), stageTotals(summary.Ledger.Stages)) + "\n")

	if summary.Attachments != nil {
		b.WriteString("\n")
		for _, line := range renderSectionHeader("Attachments", colorize) {
			b.WriteString(line + "\n")
		}
		b.WriteString(renderInfoLine("Tracked", fmt.Sprintf("%d files across %s", summary.Attachments.Total, pluralize(summary.Attachments.UniqueTickets, "ticket"))) + "\n")
		for _, kind := range sortedKeys(summary.Attachments.ByType) {
			b.WriteString(renderInfoLine(kind, strconv.Itoa(summary.Attachments.ByType[kind])) + "\n")
		}
		if summary.Attachments.LatestAt != "" {
			b.WriteString(renderInfoLine("Latest", summary.Attachments.LatestAt) + "\n")
		}
	}
	return b.String()
}

func renderRunReport(report pipeline.Report) string {
	var b strings.Builder
	if p := report.Producer; p != nil {
		b.WriteString(renderInfoLine("Producer", fmt.Sprintf("%d listed, %d added, %d skipped, %d failed", p.Listed, p.Added, p.Skipped, p.Failed)) + "\n")
	}
	rows := make([][]string, 0, len(report.Stages))
	for _, s := range report.Stages {
		rows = append(rows, []string{
			stageTitle(s.Stage),
			strconv.Itoa(s.Counts.Claimed),
			strconv.Itoa(s.Counts.Done),
			strconv.Itoa(s.Counts.Empty),
			strconv.Itoa(s.Counts.Failed),
			strconv.Itoa(s.Counts.Finalized),
			formatElapsed(s.Duration),
		})
	}
	b.WriteString(runLayout.render(rows, nil) + "\n")
	b.WriteString(renderInfoLine("Ledger complete", yesNo(report.Summary.Complete())) + "\n")
	b.WriteString(renderInfoLine("Elapsed", formatElapsed(report.Duration)) + "\n")
	return b.String()
}
