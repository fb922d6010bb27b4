package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/ads-proximity/pkg/config"
	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
	"github.com/unklstewy/ads-proximity/pkg/snapshot"
)

// visibleRows is how many aircraft the board lists at once
const visibleRows = 15

// snapshotter is the part of monitor.Service the board needs.
type snapshotter interface {
	Snapshot(ctx context.Context, code string) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context, code string) (*snapshot.Snapshot, error)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("237"))

	levelStyles = map[proximity.AlertLevel]lipgloss.Style{
		proximity.AlertNone:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		proximity.AlertWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		proximity.AlertAlert:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		proximity.AlertAlarm:   lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("196")).Bold(true),
	}
)

type tickMsg time.Time

type snapshotMsg struct {
	airport string
	snap    *snapshot.Snapshot
	err     error
}

type model struct {
	svc      snapshotter
	airports []config.AirportConfig
	current  int
	interval time.Duration

	snap         *snapshot.Snapshot
	rows         []proximity.AircraftRecord
	selected     int
	conflictOnly bool
	fetching     bool
	err          error
}

func newModel(svc snapshotter, airports []config.AirportConfig, start string, interval time.Duration) model {
	m := model{svc: svc, airports: airports, interval: interval}
	for i, a := range airports {
		if strings.EqualFold(a.Code, start) {
			m.current = i
		}
	}
	return m
}

func (m model) airport() string {
	if len(m.airports) == 0 {
		return ""
	}
	return strings.ToUpper(m.airports[m.current].Code)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetch loads a snapshot; refresh bypasses the cache.
func fetch(svc snapshotter, code string, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		var (
			snap *snapshot.Snapshot
			err  error
		)
		if refresh {
			snap, err = svc.Refresh(ctx, code)
		} else {
			snap, err = svc.Snapshot(ctx, code)
		}
		return snapshotMsg{airport: code, snap: snap, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetch(m.svc, m.airport(), false), tick(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		case "right", "l", "tab":
			return m.switchAirport(1)
		case "left", "h", "shift+tab":
			return m.switchAirport(-1)
		case "r":
			m.fetching = true
			return m, fetch(m.svc, m.airport(), true)
		case "c":
			m.conflictOnly = !m.conflictOnly
			m.rows = boardRows(m.snap, m.conflictOnly)
			m.selected = 0
		}

	case tickMsg:
		m.fetching = true
		return m, tea.Batch(fetch(m.svc, m.airport(), true), tick(m.interval))

	case snapshotMsg:
		// drop results for an airport we already left
		if msg.airport != m.airport() {
			return m, nil
		}
		m.fetching = false
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.rows = boardRows(m.snap, m.conflictOnly)
			if m.selected >= len(m.rows) {
				m.selected = max(len(m.rows)-1, 0)
			}
		}
	}

	return m, nil
}

func (m model) switchAirport(step int) (tea.Model, tea.Cmd) {
	if len(m.airports) == 0 {
		return m, nil
	}
	m.current = (m.current + step + len(m.airports)) % len(m.airports)
	m.snap = nil
	m.rows = nil
	m.selected = 0
	m.err = nil
	m.fetching = true
	return m, fetch(m.svc, m.airport(), false)
}

// boardRows orders records most severe first, optionally keeping only
// records with a conflict.
func boardRows(snap *snapshot.Snapshot, conflictOnly bool) []proximity.AircraftRecord {
	if snap == nil {
		return nil
	}
	rows := snap.BySeverity()
	if !conflictOnly {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if r.AlertLevel > proximity.AlertNone {
			out = append(out, r)
		}
	}
	return out
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("ADS-B PROXIMITY MONITOR"))
	s.WriteString("  ")
	s.WriteString(headerStyle.Render(m.airport()))
	if m.fetching {
		s.WriteString(helpStyle.Render("  refreshing..."))
	}
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	if m.snap == nil {
		s.WriteString(helpStyle.Render("  Waiting for data..."))
		s.WriteString("\n")
	} else {
		s.WriteString(renderSummary(m.snap))
		s.WriteString("\n")
		s.WriteString(renderList(m.rows, m.selected, visibleRows))
		if m.selected < len(m.rows) {
			s.WriteString(renderConflicts(m.rows[m.selected]))
		}
	}

	s.WriteString("\n")
	filter := "C: Conflicts only"
	if m.conflictOnly {
		filter = "C: Show all"
	}
	s.WriteString(helpStyle.Render("↑/↓: Select  ←/→: Airport  R: Refresh  " + filter + "  Q: Quit"))
	s.WriteString("\n")
	return s.String()
}

func renderSummary(snap *snapshot.Snapshot) string {
	var b strings.Builder
	counts := snap.LevelCounts()

	b.WriteString(fmt.Sprintf("%d aircraft from %s at %s",
		len(snap.Records), snap.Source, snap.FetchedAt.Local().Format("15:04:05")))
	if snap.Excluded > 0 {
		b.WriteString(fmt.Sprintf(", %d without position", snap.Excluded))
	}
	b.WriteString("\n")

	for _, lvl := range []proximity.AlertLevel{proximity.AlertAlarm, proximity.AlertAlert, proximity.AlertWarning, proximity.AlertNone} {
		b.WriteString(levelStyles[lvl].Render(fmt.Sprintf(" %s %d ", lvl, counts[lvl])))
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf(" airborne %d, grounded %d\n", snap.Stats.Airborne, snap.Stats.Grounded))
	return b.String()
}

// renderList lists up to limit rows, scrolled to keep selected in view.
func renderList(rows []proximity.AircraftRecord, selected, limit int) string {
	var list strings.Builder

	list.WriteString(headerStyle.Render(fmt.Sprintf("%-2s %-7s  %-8s  %-8s  %8s  %7s  %-9s  %7s",
		"", "LEVEL", "CALLSIGN", "ID", "ALT ft", "GS kt", "STATUS", "DIST nm")))
	list.WriteString("\n")

	if len(rows) == 0 {
		list.WriteString(helpStyle.Render("  No aircraft"))
		list.WriteString("\n")
		return list.String()
	}

	start := 0
	if selected > limit/2 && len(rows) > limit {
		start = min(selected-limit/2, len(rows)-limit)
	}
	end := min(start+limit, len(rows))

	for i := start; i < end; i++ {
		r := rows[i]

		prefix := "  "
		if i == selected {
			prefix = "→ "
		}

		line := fmt.Sprintf("%s%s  %-8s  %-8s  %8.0f  %7.0f  %-9s  %7.1f",
			prefix,
			levelStyles[r.AlertLevel].Render(fmt.Sprintf("%-7s", r.AlertLevel)),
			truncate(r.Callsign, 8),
			truncate(r.Identifier, 8),
			r.Altitude/coordinates.FeetToMeters,
			r.GroundSpeed/coordinates.KnotsToMetersPerSecond,
			r.State,
			r.DistanceFromReference/coordinates.MetersPerNauticalMile,
		)
		if i == selected {
			line = selectedStyle.Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	if len(rows) > limit {
		list.WriteString(helpStyle.Render(fmt.Sprintf("  showing %d-%d of %d", start+1, end, len(rows))))
		list.WriteString("\n")
	}
	return list.String()
}

func renderConflicts(r proximity.AircraftRecord) string {
	if len(r.Conflicts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("Conflicts for %s:", r.Callsign)))
	b.WriteString("\n")
	for _, c := range r.Conflicts {
		b.WriteString(fmt.Sprintf("  %s  %-8s  %5d m  %s\n",
			levelStyles[c.Alert].Render(fmt.Sprintf("%-7s", c.Alert)),
			c.Callsign, c.Distance, c.Category))
	}
	return b.String()
}

// renderReport is the one-shot text output for -once.
func renderReport(snap *snapshot.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ADS-B PROXIMITY REPORT " + snap.Airport))
	b.WriteString("\n\n")
	b.WriteString(renderSummary(snap))
	b.WriteString("\n")

	rows := boardRows(snap, false)
	b.WriteString(renderList(rows, -1, len(rows)))

	for _, r := range rows {
		b.WriteString(renderConflicts(r))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
