package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dhruv3/CudaCode/internal/sieve"
)

const (
	minBound     = 2
	maxShown     = 24
	defaultWidth = 80
)

type sievedMsg struct {
	bound  int
	result *sieve.Result
	err    error
}

// Explorer is an interactive view that re-sieves whenever the bound changes.
type Explorer struct {
	eng      *sieve.Engine
	bound    int
	maxBound int
	result   *sieve.Result
	primes   []int
	err      error
	running  bool
	showPlot bool
	width    int
}

func NewExplorer(eng *sieve.Engine, bound, maxBound int) Explorer {
	if bound < minBound {
		bound = minBound
	}
	return Explorer{eng: eng, bound: bound, maxBound: maxBound, width: defaultWidth}
}

func (m Explorer) Init() tea.Cmd {
	return m.sieve()
}

func (m Explorer) sieve() tea.Cmd {
	eng, bound := m.eng, m.bound
	return func() tea.Msg {
		res, err := eng.Run(context.Background(), bound)
		return sievedMsg{bound: bound, result: res, err: err}
	}
}

func (m Explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case sievedMsg:
		// Drop results for bounds the user has already moved past.
		if msg.bound != m.bound {
			return m, nil
		}
		m.running = false
		m.result, m.err = msg.result, msg.err
		m.primes = nil
		if msg.result != nil {
			m.primes = msg.result.Primes()
		}
		return m, nil
	}
	return m, nil
}

func (m Explorer) handleKey(msg tea.KeyMsg) (Explorer, tea.Cmd) {
	bound := m.bound
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		bound *= 2
	case "down", "j":
		bound /= 2
	case "right", "l":
		bound++
	case "left", "h":
		bound--
	case "p":
		m.showPlot = !m.showPlot
		return m, nil
	case "r":
		m.running = true
		return m, m.sieve()
	default:
		return m, nil
	}
	return m.setBound(bound)
}

func (m Explorer) setBound(bound int) (Explorer, tea.Cmd) {
	bound = max(bound, minBound)
	if m.maxBound > 0 {
		bound = min(bound, m.maxBound)
	}
	if bound == m.bound {
		return m, nil
	}
	m.bound = bound
	m.running = true
	return m, m.sieve()
}

func (m Explorer) View() string {
	var b strings.Builder

	b.WriteString(Title.Render("gpusieve explorer"))
	b.WriteString("\n\n")
	b.WriteString(Metric("bound", m.bound) + "\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render("error: "+m.err.Error()) + "\n")
	case m.result != nil:
		res := m.result
		b.WriteString(Metric("device", res.Capability.Name) + "\n")
		b.WriteString(Metric("launch", fmt.Sprintf("%s (%d lanes)", res.Launch, res.Launch.Lanes())) + "\n")
		b.WriteString(Metric("elapsed", res.Elapsed.Round(time.Microsecond)) + "\n")
		b.WriteString(Metric("primes", len(m.primes)) + "\n\n")
		b.WriteString(m.renderPrimes() + "\n")
		if m.showPlot {
			b.WriteString("\n" + PlotPrimeCounting(m.primes, res.Bound) + "\n")
		}
	}
	if m.running {
		b.WriteString(Warning.Render("sieving...") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(KeyHint.Render("↑/↓ double/halve  ←/→ step  p plot  r rerun  q quit"))
	return b.String()
}

// renderPrimes shows the largest primes found, wrapped to the window width.
func (m Explorer) renderPrimes() string {
	shown := m.primes
	prefix := ""
	if len(shown) > maxShown {
		shown = shown[len(shown)-maxShown:]
		prefix = Subtle.Render("… ")
	}
	if len(shown) == 0 {
		return Subtle.Render("no primes")
	}

	words := make([]string, len(shown))
	for i, p := range shown {
		words[i] = PrimeStyle.Render(fmt.Sprint(p))
	}
	return lipgloss.NewStyle().Width(m.width).Render(prefix + strings.Join(words, " "))
}

func RunExplorer(eng *sieve.Engine, bound, maxBound int) error {
	_, err := tea.NewProgram(NewExplorer(eng, bound, maxBound), tea.WithAltScreen()).Run()
	return err
}
