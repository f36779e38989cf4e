package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/SiteInspector/internal/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	plainStyle   = lipgloss.NewStyle()
	statusColumn = 1
)

// RenderSummary 终端摘要: 状态、计数表、断链与旅程明细
func RenderSummary(report *models.AuditReport) string {
	if report == nil {
		return failStyle.Render("没有可用的巡检结果")
	}

	var b strings.Builder

	if report.Status == models.StatusPass {
		b.WriteString(passStyle.Render("✅ PASS"))
	} else {
		b.WriteString(failStyle.Render("❌ FAIL"))
	}
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s  mode=%s  visited=%d/%d",
		report.BaseURL, report.Mode, report.VisitedCount, report.MaxPages)))
	b.WriteString("\n\n")

	counts := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("类别", "数量").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return plainStyle
		}).
		Rows(
			[]string{"Broken Links", strconv.Itoa(len(report.BrokenLinks))},
			[]string{"Console Errors", strconv.Itoa(len(report.ConsoleErrors))},
			[]string{"Console Warnings", strconv.Itoa(len(report.ConsoleWarnings))},
			[]string{"Network Failures", strconv.Itoa(len(report.NetworkFailures))},
			[]string{"Journeys", strconv.Itoa(len(report.Journeys))},
		)
	b.WriteString(counts.Render())
	b.WriteString("\n")

	if len(report.BrokenLinks) > 0 {
		rows := make([][]string, 0, len(report.BrokenLinks))
		for _, l := range report.BrokenLinks {
			rows = append(rows, []string{l.URL, strconv.Itoa(l.Status), Truncate(l.Reason, 80)})
		}
		links := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status", "Reason").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == statusColumn {
					return failStyle
				}
				return plainStyle
			}).
			Rows(rows...)
		b.WriteString("\n")
		b.WriteString(links.Render())
		b.WriteString("\n")
	}

	for _, j := range report.Journeys {
		var status string
		switch j.Status {
		case models.JourneyPass:
			status = passStyle.Render(string(j.Status))
		case models.JourneyWarn:
			status = warnStyle.Render(string(j.Status))
		default:
			status = failStyle.Render(string(j.Status))
		}
		line := fmt.Sprintf("%s %s: %s", titleStyle.Render("旅程"), j.Name, status)
		if j.Error != "" {
			line += " " + dimStyle.Render(j.Error)
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
