package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/okhutch/claude-usage/internal/render"
	"github.com/okhutch/claude-usage/internal/usage"
)

type FetchFunc func(context.Context) (*usage.Snapshot, error)

type Options struct {
	Interval  time.Duration
	Timeout   time.Duration
	NoColor   bool
	AltScreen bool
	Fetch     FetchFunc
}

type Model struct {
	interval time.Duration
	timeout  time.Duration
	fetch    FetchFunc

	width  int
	height int

	now time.Time

	fetching      bool
	lastAttemptAt time.Time
	lastError     string
	nextFetchAt   time.Time

	snapshot *usage.Snapshot
	styles   styles
}

type styles struct {
	title   lipgloss.Style
	dim     lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	accent  lipgloss.Style
	error   lipgloss.Style
	loading lipgloss.Style
}

type pollTickMsg struct {
	at time.Time
}

type clockTickMsg struct {
	at time.Time
}

type fetchResultMsg struct {
	at       time.Time
	snapshot *usage.Snapshot
	err      error
}

const (
	defaultInterval = 60 * time.Second
	defaultTimeout  = 10 * time.Second
)

func NewModel(opts Options) Model {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	fetch := opts.Fetch
	if fetch == nil {
		fetch = func(context.Context) (*usage.Snapshot, error) {
			return nil, errors.New("missing fetch function")
		}
	}
	now := time.Now()

	return Model{
		interval:    interval,
		timeout:     timeout,
		fetch:       fetch,
		now:         now,
		fetching:    true,
		nextFetchAt: now.Add(interval),
		styles:      defaultStyles(opts.NoColor),
	}
}

func defaultStyles(noColor bool) styles {
	basePanel := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if noColor {
		return styles{
			title:   lipgloss.NewStyle().Bold(true),
			dim:     lipgloss.NewStyle(),
			panel:   basePanel,
			label:   lipgloss.NewStyle().Bold(true),
			value:   lipgloss.NewStyle(),
			ok:      lipgloss.NewStyle().Bold(true),
			warn:    lipgloss.NewStyle().Bold(true),
			bad:     lipgloss.NewStyle().Bold(true),
			accent:  lipgloss.NewStyle().Bold(true),
			error:   lipgloss.NewStyle().Bold(true),
			loading: lipgloss.NewStyle(),
		}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		panel:   basePanel.BorderForeground(lipgloss.Color("61")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		value:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		ok:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		bad:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		loading: lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.fetch, m.timeout), pollCmd(m.interval), clockCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch v.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.fetching {
				m.fetching = true
				return m, fetchCmd(m.fetch, m.timeout)
			}
		}
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
	case pollTickMsg:
		m.nextFetchAt = v.at.Add(m.interval)
		cmds := []tea.Cmd{pollCmd(m.interval)}
		if !m.fetching {
			m.fetching = true
			cmds = append(cmds, fetchCmd(m.fetch, m.timeout))
		}
		return m, tea.Batch(cmds...)
	case clockTickMsg:
		m.now = v.at
		return m, clockCmd()
	case fetchResultMsg:
		m.fetching = false
		m.lastAttemptAt = v.at
		if v.err != nil {
			m.lastError = v.err.Error()
			return m, nil
		}
		m.lastError = ""
		m.snapshot = v.snapshot
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "initializing..."
	}

	header := m.renderHeader()
	body := m.renderBody()
	exitHint := m.styles.dim.Render("q to quit, r to refresh")

	top := lipgloss.JoinVertical(lipgloss.Left, header, body, "")
	combined := pinFooterToBottom(top, exitHint, m.height)
	return clipToViewport(combined, m.width, m.height)
}

func (m Model) renderHeader() string {
	title := m.styles.title.Render(" claude usage ")

	stateText := "idle"
	stateStyle := m.styles.dim
	if m.fetching {
		stateText = "refreshing"
		stateStyle = m.styles.loading
	} else if m.lastError != "" {
		stateText = "error"
		stateStyle = m.styles.bad
	} else if m.snapshot != nil {
		stateText = "healthy"
		stateStyle = m.styles.ok
	}

	left := title + "  " + m.styles.label.Render("state: ") + stateStyle.Render(stateText)
	if !m.nextFetchAt.IsZero() {
		refreshText := "[next refresh " + render.RelativeUntil(m.nextFetchAt.Sub(m.now)) + "]"
		left += " " + m.styles.dim.Render(refreshText)
	}
	right := m.styles.dim.Render(m.now.Format("2006-01-02 15:04:05"))
	return joinWithPaddingKeepRight(left, right, m.width)
}

func (m Model) renderBody() string {
	contentWidth := maxInt(20, m.width-4)

	if m.snapshot == nil {
		if m.lastError != "" {
			msg := m.styles.error.Render("last error: " + m.lastError)
			return m.styles.panel.Width(contentWidth).Render(msg)
		}
		return m.styles.panel.Width(contentWidth).Render(m.styles.loading.Render("loading usage data..."))
	}

	lines := []string{
		m.styles.accent.Render("Claude " + m.snapshot.Plan + " plan"),
	}
	for _, p := range m.snapshot.Periods {
		lines = append(lines, m.renderPeriodLine(p))
	}
	if extra := m.snapshot.Extra; extra != nil && extra.Enabled {
		lines = append(lines, m.styles.dim.Render(fmt.Sprintf("extra usage: $%.2f of $%.2f used", extra.UsedCredits/100, extra.MonthlyLimit/100)))
	}
	lines = append(lines, "", m.summaryLine())
	if m.lastError != "" {
		lines = append(lines, m.styles.error.Render("last error: "+m.lastError))
	}

	maxLineWidth := maxInt(8, contentWidth-4)
	for i := range lines {
		lines[i] = ansi.Truncate(lines[i], maxLineWidth, "...")
	}
	return m.styles.panel.Width(contentWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderPeriodLine(p usage.Period) string {
	style := m.tierStyle(render.TierFor(p.Utilization))
	bar := style.Render(render.Bar(p.Utilization))
	pct := style.Render(fmt.Sprintf("%5.1f%%", p.Utilization*100))

	reset := m.styles.dim.Render("—")
	if p.ResetsAt != nil {
		if delta := p.ResetsAt.Sub(m.now); delta <= 0 {
			reset = m.styles.ok.Render("now")
		} else {
			reset = m.styles.dim.Render(render.AbsoluteReset(*p.ResetsAt, m.now)) + " (" + render.RelativeUntil(delta) + ")"
		}
	}
	return fmt.Sprintf("%s %s %s resets %s",
		m.styles.label.Render(fmt.Sprintf("%-18s", p.Label)),
		bar,
		pct,
		reset,
	)
}

func (m Model) summaryLine() string {
	switch render.TierFor(m.snapshot.MaxUtilization()) {
	case render.TierCritical:
		return m.styles.bad.Render("⚠") + " You're nearly at your limit. Check your reset time above."
	case render.TierWarn:
		return m.styles.warn.Render("△") + " Usage is elevated. Consider pacing your next session."
	default:
		return m.styles.ok.Render("✓") + " Looking good. Plenty of capacity remaining."
	}
}

func (m Model) tierStyle(t render.Tier) lipgloss.Style {
	switch t {
	case render.TierCritical:
		return m.styles.bad
	case render.TierWarn:
		return m.styles.warn
	default:
		return m.styles.ok
	}
}

func pollCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollTickMsg{at: t}
	})
}

func clockCmd() tea.Cmd {
	return tea.Tick(1*time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg{at: t}
	})
}

func fetchCmd(fetch FetchFunc, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snapshot, err := fetch(ctx)
		return fetchResultMsg{
			at:       time.Now(),
			snapshot: snapshot,
			err:      err,
		}
	}
}

func Run(opts Options) error {
	model := NewModel(opts)
	progOpts := []tea.ProgramOption{}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	prog := tea.NewProgram(model, progOpts...)
	_, err := prog.Run()
	return err
}

func joinWithPaddingKeepRight(left, right string, width int) string {
	if width <= 0 {
		return ""
	}
	rightWidth := lipgloss.Width(right)
	if rightWidth >= width {
		return truncateRunes(right, width)
	}
	maxLeftWidth := width - rightWidth - 1
	if maxLeftWidth < 0 {
		maxLeftWidth = 0
	}
	left = truncateRunes(left, maxLeftWidth)
	leftWidth := lipgloss.Width(left)
	padding := width - leftWidth - rightWidth
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

func truncateRunes(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxWidth, "")
}

func clipToViewport(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i := range lines {
		lines[i] = truncateRunes(lines[i], width)
		pad := width - lipgloss.Width(lines[i])
		if pad > 0 {
			lines[i] += strings.Repeat(" ", pad)
		}
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func pinFooterToBottom(top, footer string, height int) string {
	if height <= 0 {
		return ""
	}
	footerLines := []string{}
	if footer != "" {
		footerLines = strings.Split(footer, "\n")
	}
	topLines := []string{}
	if top != "" {
		topLines = strings.Split(top, "\n")
	}

	maxTopLines := height - len(footerLines)
	if maxTopLines < 0 {
		maxTopLines = 0
	}
	if len(topLines) > maxTopLines {
		topLines = topLines[:maxTopLines]
	}
	for len(topLines) < maxTopLines {
		topLines = append(topLines, "")
	}

	all := append(topLines, footerLines...)
	if len(all) == 0 {
		return ""
	}
	return strings.Join(all, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
