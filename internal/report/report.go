// Package report renders the dashboard views as plain text.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"nlbwdash/internal/aggregator"
	"nlbwdash/internal/calendar"
	"nlbwdash/internal/compare"
	"nlbwdash/internal/dashboard"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/format"
)

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

func deviceTable(w io.Writer, devices []aggregator.DeviceTotal) {
	fmt.Fprintf(w, "%-4s %-24s %-17s %-15s %12s %12s %12s\n",
		"#", "Device", "MAC", "IP", "Download", "Upload", "Connections")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 102))
	for i, d := range devices {
		fmt.Fprintf(w, "%-4d %-24s %-17s %-15s %12s %12s %12s\n",
			i+1, truncate(d.Name(), 24), d.MAC, d.IP,
			format.Bytes(d.Downloaded), format.Bytes(d.Uploaded), format.Number(d.Connections))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func Dashboard(w io.Writer, m *dashboard.DashboardModel) {
	fmt.Fprintf(w, "\nBandwidth usage for period: %s to %s\n", m.From, m.To)

	header(w, "Overview")
	fmt.Fprintf(w, "Downloaded:     %s\n", format.Bytes(m.TotalDownloaded))
	fmt.Fprintf(w, "Uploaded:       %s\n", format.Bytes(m.TotalUploaded))
	fmt.Fprintf(w, "Total Traffic:  %s\n", format.Bytes(m.TotalTraffic))
	fmt.Fprintf(w, "Active Devices: %d\n", m.DeviceCount)
	fmt.Fprintf(w, "Days:           %d with data of %d\n", m.DaysWithData, m.DaysInRange)

	header(w, fmt.Sprintf("Top %d Devices", dashboard.TopDevices))
	if len(m.TopDevices) == 0 {
		fmt.Fprintf(w, "No data available\n")
		return
	}
	deviceTable(w, m.TopDevices)
}

func Devices(w io.Writer, m *dashboard.DevicesModel) {
	header(w, fmt.Sprintf("Devices %s to %s", m.From, m.To))
	if len(m.Devices) == 0 {
		fmt.Fprintf(w, "No data available\n")
		return
	}
	deviceTable(w, m.Devices)
}

func Protocols(w io.Writer, m *dashboard.ProtocolsModel) {
	header(w, fmt.Sprintf("Protocols of %s, %s to %s", m.Name, m.From, m.To))
	fmt.Fprintf(w, "Days fetched: %d\n", m.Days)
	if len(m.Skipped) > 0 {
		fmt.Fprintf(w, "Days skipped: %s\n", strings.Join(m.Skipped, ", "))
	}
	if len(m.Protocols) == 0 {
		fmt.Fprintf(w, "No data available\n")
		return
	}

	fmt.Fprintf(w, "\n%-14s %12s %12s %12s %12s %12s\n",
		"Protocol", "Download", "Upload", "RX Packets", "TX Packets", "Connections")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
	for _, p := range m.Protocols {
		fmt.Fprintf(w, "%-14s %12s %12s %12s %12s %12s\n",
			aggregator.Label(p),
			format.Bytes(p.Downloaded), format.Bytes(p.Uploaded),
			format.Number(p.RxPackets), format.Number(p.TxPackets), format.Number(p.Connections))
	}

	var total uint64
	for _, p := range m.Top {
		total += p.Downloaded
	}
	if total == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop %d by download:\n", len(m.Top))
	for _, p := range m.Top {
		share := float64(p.Downloaded) / float64(total) * 100
		fmt.Fprintf(w, "  %-14s %5.1f%% %s\n", aggregator.Label(p), share, bar(share, 40))
	}
}

func bar(percent float64, width int) string {
	n := int(percent/100*float64(width) + 0.5)
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}

func Charts(w io.Writer, m *dashboard.ChartsModel) {
	header(w, fmt.Sprintf("Daily traffic %s to %s (%s)", m.From, m.To, m.FilterLabel))
	if len(m.Points) == 0 {
		fmt.Fprintf(w, "No data available\n")
		return
	}

	var peak uint64
	for _, p := range m.Points {
		if t := p.Downloaded + p.Uploaded; t > peak {
			peak = t
		}
	}

	fmt.Fprintf(w, "%-10s %12s %12s\n", "Date", "Download", "Upload")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 76))
	for _, p := range m.Points {
		share := 0.0
		if peak > 0 {
			share = float64(p.Downloaded+p.Uploaded) / float64(peak) * 100
		}
		fmt.Fprintf(w, "%-10s %12s %12s %s\n",
			p.Date, format.Bytes(p.Downloaded), format.Bytes(p.Uploaded), bar(share, 40))
	}

	if len(m.Picker) > 0 {
		fmt.Fprintf(w, "\nDevices by total traffic:\n")
		for _, d := range m.Picker {
			fmt.Fprintf(w, "  %-24s %-17s %12s\n", truncate(d.Name(), 24), d.MAC, format.Megabytes(d.Total()))
		}
	}
}

// glyphs are indexed by calendar.ColorLevel.
var glyphs = []rune(" ░▒▓█")

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func Activity(w io.Writer, m *dashboard.ActivityModel) {
	header(w, "Activity")
	fmt.Fprintf(w, "Active Days:     %d\n", m.Summary.ActiveDays)
	fmt.Fprintf(w, "Total Traffic:   %s\n", format.Bytes(m.Summary.TotalTraffic))
	fmt.Fprintf(w, "Daily Average:   %s\n", format.Bytes(m.Summary.AverageTraffic))
	if m.Summary.ActiveDays > 0 {
		fmt.Fprintf(w, "First/Last Day:  %s / %s\n", m.Summary.First, m.Summary.Last)
	}

	if len(m.Heatmap) == 0 {
		fmt.Fprintf(w, "\nNo data available\n")
		return
	}
	for _, y := range m.Heatmap {
		yearGrid(w, y)
	}
	fmt.Fprintf(w, "\nLevels: %s\n", legend())
}

func legend() string {
	parts := []string{
		"'" + string(glyphs[0]) + "' none",
		string(glyphs[1]) + " <1 GiB",
		string(glyphs[2]) + " <5 GiB",
		string(glyphs[3]) + " <15 GiB",
		string(glyphs[4]) + " more",
	}
	return strings.Join(parts, "  ")
}

// yearGrid draws one year as week columns by weekday rows.
func yearGrid(w io.Writer, y calendar.HeatmapYear) {
	fmt.Fprintf(w, "\n%s  (%s down, %s up)\n", y.Year,
		format.Bytes(y.Totals.Downloaded), format.Bytes(y.Totals.Uploaded))

	jan1, err := time.Parse(daterange.ISO, y.Year+"-01-01")
	if err != nil {
		return
	}
	offset := int(jan1.Weekday())
	weeks := (offset+366)/7 + 1

	grid := make([][]rune, 7)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", weeks))
	}
	for _, c := range y.Cells {
		d, err := time.Parse(daterange.ISO, c.Date[:10])
		if err != nil || d.Year() != jan1.Year() {
			continue
		}
		idx := offset + d.YearDay() - 1
		grid[idx%7][idx/7] = glyphs[c.Level]
	}

	for i, row := range grid {
		fmt.Fprintf(w, "%s %s\n", weekdays[i], strings.TrimRight(string(row), " "))
	}
}

func Comparison(w io.Writer, c *compare.Comparison) {
	header(w, "Period Comparison")
	fmt.Fprintf(w, "Period 1: %s to %s (%d days with data)\n", c.Period1.From, c.Period1.To, c.Period1.Days)
	fmt.Fprintf(w, "Period 2: %s to %s (%d days with data)\n\n", c.Period2.From, c.Period2.To, c.Period2.Days)

	fmt.Fprintf(w, "%-10s %12s %12s %9s\n", "", "Period 1", "Period 2", "Change")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 46))
	row := func(label string, ch compare.Change) {
		fmt.Fprintf(w, "%-10s %12s %12s %9s\n", label,
			format.Bytes(ch.Before), format.Bytes(ch.After), format.Percent(ch.Percent))
	}
	row("Download", c.Downloaded)
	row("Upload", c.Uploaded)
	row("Total", c.Total)
}

func Achievements(w io.Writer, m *dashboard.AchievementsModel) {
	header(w, "Achievements")
	fmt.Fprintf(w, "Unlocked: %d / %d (%d%%)\n", m.TotalUnlocked, len(m.Achievements), m.Percent())

	for i, a := range m.Achievements {
		if i > 0 && i == m.FirstLocked {
			fmt.Fprintf(w, "\nLocked:\n")
		}
		if a.Unlocked {
			when := ""
			if a.UnlockedAt != nil {
				when = a.UnlockedAt.Format("2006-01-02")
			}
			fmt.Fprintf(w, "  [x] %-28s %s  %s\n", a.Achievement.Name, when, a.Achievement.Description)
			continue
		}
		fmt.Fprintf(w, "  [ ] %-28s %3.0f%%  %s\n", a.Achievement.Name, a.Progress*100, a.Achievement.Description)
	}
}
