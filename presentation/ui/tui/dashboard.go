package tui

import (
	"context"
	"fmt"
	"meshvpn/infrastructure/telemetry/trafficstats"
	"meshvpn/infrastructure/tunnel/node"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type StatusSource interface {
	Status() node.Status
}

type TrafficSource interface {
	Snapshot() trafficstats.Snapshot
}

type DashboardOptions struct {
	ListenAddress   string
	Status          StatusSource
	Traffic         TrafficSource
	Logs            *LogBuffer
	RefreshInterval time.Duration
}

const logLines = 8

type tickMsg struct{}

type contextDoneMsg struct{}

type keyMap struct {
	quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	weakStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Dashboard is a read-only status view of a running node.
type Dashboard struct {
	ctx      context.Context
	options  DashboardOptions
	keys     keyMap
	status   node.Status
	traffic  trafficstats.Snapshot
	width    int
	quitting bool
}

func NewDashboard(ctx context.Context, options DashboardOptions) Dashboard {
	if options.RefreshInterval <= 0 {
		options.RefreshInterval = time.Second
	}
	d := Dashboard{
		ctx:     ctx,
		options: options,
		keys:    defaultKeyMap(),
	}
	d.refresh()
	return d
}

// RunDashboard shows the dashboard until the user quits or ctx is
// cancelled. It returns true when the user asked to quit.
func RunDashboard(ctx context.Context, options DashboardOptions) (bool, error) {
	program := tea.NewProgram(NewDashboard(ctx, options), tea.WithAltScreen())
	result, err := program.Run()
	if err != nil {
		return false, err
	}
	final, ok := result.(Dashboard)
	return ok && final.quitting, nil
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.tick(), waitForContextDone(d.ctx))
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, d.keys.quit) {
			d.quitting = true
			return d, tea.Quit
		}
	case tea.WindowSizeMsg:
		d.width = msg.Width
	case tickMsg:
		d.refresh()
		return d, d.tick()
	case contextDoneMsg:
		return d, tea.Quit
	}
	return d, nil
}

func (d *Dashboard) refresh() {
	if d.options.Status != nil {
		d.status = d.options.Status.Status()
	}
	if d.options.Traffic != nil {
		d.traffic = d.options.Traffic.Snapshot()
	}
}

func (d Dashboard) tick() tea.Cmd {
	return tea.Tick(d.options.RefreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func waitForContextDone(ctx context.Context) tea.Cmd {
	if ctx == nil {
		return nil
	}
	return func() tea.Msg {
		<-ctx.Done()
		return contextDoneMsg{}
	}
}

func (d Dashboard) View() string {
	var b strings.Builder
	st := d.status

	b.WriteString(titleStyle.Render("meshvpn node " + st.NodeID.Short()))
	b.WriteString("\n\n")
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	field("listen", d.options.ListenAddress)
	field("uptime", st.Uptime.Truncate(time.Second).String())
	field("auth slots", fmt.Sprintf("%d/%d used, %d in handshake", st.Auth.UsedSlots, st.Auth.Slots, st.Auth.Preauth))
	if d.options.Traffic != nil {
		field("rx", fmt.Sprintf("%s (%s total)", trafficstats.FormatRate(d.traffic.RXRate), trafficstats.FormatTotal(d.traffic.RXBytes)))
		field("tx", fmt.Sprintf("%s (%s total)", trafficstats.FormatRate(d.traffic.TXRate), trafficstats.FormatTotal(d.traffic.TXBytes)))
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-10s %-24s %-8s %-8s", "id", "node", "address", "quality", "idle")))
	b.WriteString("\n")
	if len(st.Peers) == 0 {
		b.WriteString(labelStyle.Render("no peers connected"))
		b.WriteString("\n")
	}
	for _, p := range st.Peers {
		b.WriteString(fmt.Sprintf("%-6d %-10s %-24s %s %-8s\n",
			p.LocalID,
			p.NodeID.Short(),
			p.Addr.String(),
			qualityStyle(p.Quality).Render(fmt.Sprintf("%-8s", fmt.Sprintf("%d/64", p.Quality))),
			p.LastActivity.Truncate(time.Second).String(),
		))
	}

	if d.options.Logs != nil {
		if lines := d.options.Logs.Tail(logLines); len(lines) > 0 {
			b.WriteString("\n")
			for _, line := range lines {
				b.WriteString(labelStyle.Render(line))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render(d.keys.quit.Help().Key + " " + d.keys.quit.Help().Desc))

	style := frameStyle
	if d.width > 4 {
		style = style.Width(d.width - 2)
	}
	return style.Render(b.String())
}

func qualityStyle(quality int) lipgloss.Style {
	switch {
	case quality >= 60:
		return goodStyle
	case quality >= 32:
		return weakStyle
	default:
		return badStyle
	}
}
