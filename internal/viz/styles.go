package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dhruv3/CudaCode/internal/device"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	PrimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	Warning = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffaa00"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)
)

// Metric renders a "label value" pair with a fixed label column.
func Metric(label string, value any) string {
	return MetricLabel.Width(18).Render(label) + MetricValue.Render(fmt.Sprint(value))
}

// RenderCapability draws a device descriptor and the width derived from it.
func RenderCapability(c device.Capability, width int) string {
	mode := MetricValue.Render(c.Mode.String())
	if c.Mode == device.ComputeProhibited {
		mode = ErrorStyle.Render(c.Mode.String())
	}

	features := "-"
	if len(c.Features) > 0 {
		features = strings.Join(c.Features, " ")
	}

	lines := []string{
		Title.Render(c.Name),
		"",
		Metric("compute", c.Version()),
		MetricLabel.Width(18).Render("mode") + mode,
		Metric("units", c.Units),
		Metric("lanes/group max", c.MaxLanesPerGroup),
		Metric("groups max", c.MaxGroups),
		Metric("memory", formatBytes(c.TotalMemory)),
		Metric("features", features),
		"",
		Metric("lane width", width),
	}
	return Panel.Render(strings.Join(lines, "\n"))
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
