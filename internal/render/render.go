// Package render turns a usage snapshot into terminal output. Everything in
// here is a pure function of the snapshot and the supplied clock reading.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/okhutch/claude-usage/internal/usage"
)

const (
	barWidth          = 28
	ruleWidth         = 65
	warnThreshold     = 0.70
	criticalThreshold = 0.90
)

// Tier is the color bucket a utilization value falls into. Thresholds are
// fixed: warning from 70% inclusive, critical from 90% inclusive.
type Tier int

const (
	TierOK Tier = iota
	TierWarn
	TierCritical
)

func TierFor(utilization float64) Tier {
	switch {
	case utilization >= criticalThreshold:
		return TierCritical
	case utilization >= warnThreshold:
		return TierWarn
	default:
		return TierOK
	}
}

type styles struct {
	ok     lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	label  lipgloss.Style
	dim    lipgloss.Style
	accent lipgloss.Style
}

func defaultStyles(noColor bool) styles {
	if noColor {
		return styles{
			ok:     lipgloss.NewStyle(),
			warn:   lipgloss.NewStyle(),
			bad:    lipgloss.NewStyle(),
			label:  lipgloss.NewStyle().Bold(true),
			dim:    lipgloss.NewStyle(),
			accent: lipgloss.NewStyle().Bold(true),
		}
	}
	return styles{
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		bad:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		label:  lipgloss.NewStyle().Bold(true),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		accent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
	}
}

func (s styles) forTier(t Tier) lipgloss.Style {
	switch t {
	case TierCritical:
		return s.bad
	case TierWarn:
		return s.warn
	default:
		return s.ok
	}
}

// FilledCells maps a utilization fraction to a cell count, clamped to the bar
// even when the endpoint reports overage.
func FilledCells(utilization float64) int {
	filled := int(math.Round(utilization * barWidth))
	if filled < 0 {
		return 0
	}
	if filled > barWidth {
		return barWidth
	}
	return filled
}

// Bar renders the unstyled fill glyphs for a utilization fraction.
func Bar(utilization float64) string {
	filled := FilledCells(utilization)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Render produces the full styled report for one snapshot. The clock reading
// drives reset countdowns; output never includes credential material.
func Render(s *usage.Snapshot, now time.Time, noColor bool) string {
	st := defaultStyles(noColor)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("  " + st.accent.Render("◆") + " Claude " + st.warn.Render(s.Plan) + " plan usage\n")
	b.WriteString("  " + st.dim.Render(strings.Repeat("─", ruleWidth)) + "\n")

	for _, p := range s.Periods {
		b.WriteString(renderPeriod(p, now, st) + "\n")
	}

	b.WriteString("  " + st.dim.Render(strings.Repeat("─", ruleWidth)) + "\n")
	if s.Extra != nil && s.Extra.Enabled {
		b.WriteString("  " + st.dim.Render(extraUsageLine(s.Extra)) + "\n")
	}
	b.WriteString("\n  " + summaryLine(s.MaxUtilization(), st) + "\n")
	return b.String()
}

func renderPeriod(p usage.Period, now time.Time, st styles) string {
	t := TierFor(p.Utilization)
	style := st.forTier(t)
	bar := style.Render(Bar(p.Utilization))
	pct := style.Render(fmt.Sprintf("%5.1f%%", p.Utilization*100))
	return fmt.Sprintf("  %s %s %s resets %s",
		st.label.Render(fmt.Sprintf("%-18s", p.Label)),
		bar,
		pct,
		formatReset(p.ResetsAt, now, st),
	)
}

func extraUsageLine(extra *usage.ExtraUsage) string {
	return fmt.Sprintf("extra usage: $%.2f of $%.2f used", extra.UsedCredits/100, extra.MonthlyLimit/100)
}

func summaryLine(maxUtilization float64, st styles) string {
	switch TierFor(maxUtilization) {
	case TierCritical:
		return st.bad.Render("⚠") + " You're nearly at your limit. Check your reset time above."
	case TierWarn:
		return st.warn.Render("△") + " Usage is elevated. Consider pacing your next session."
	default:
		return st.ok.Render("✓") + " Looking good. Plenty of capacity remaining."
	}
}

// RenderPlain is the script-friendly variant: no bars, no styling.
func RenderPlain(s *usage.Snapshot) string {
	var b strings.Builder
	for _, p := range s.Periods {
		reset := "—"
		if p.ResetsAt != nil {
			reset = p.ResetsAt.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s: %.1f%% Resets: %s\n", p.Label, p.Utilization*100, reset)
	}
	if s.Extra != nil && s.Extra.Enabled {
		fmt.Fprintf(&b, "extra usage: %.2f of %.2f USD\n", s.Extra.UsedCredits/100, s.Extra.MonthlyLimit/100)
	}
	return b.String()
}
