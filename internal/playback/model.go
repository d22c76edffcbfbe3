package playback

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultStride   = 2
	DefaultTrail    = 300
	DefaultInterval = 10 * time.Millisecond

	canvasWidth  = 60
	canvasHeight = 20
	scrubFrames  = 20
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

type Options struct {
	Stride   int
	Trail    int
	Interval time.Duration
}

func DefaultOptions() Options {
	return Options{Stride: DefaultStride, Trail: DefaultTrail, Interval: DefaultInterval}
}

// Model replays sampled frames: every tick advances Stride frames and the
// view shows the last Trail frames of each body's path.
type Model struct {
	name      string
	opts      Options
	times     []float64
	positions [][]r3.Vec
	sep       []float64
	bodies    int

	minX, maxX, minY, maxY float64

	frame   int
	running bool
	done    bool
	canvas  *Canvas
}

// NewModel reads every frame once up front; frames are not consulted again.
func NewModel(name string, frames dynamo.Frames, opts Options) Model {
	def := DefaultOptions()
	if opts.Stride <= 0 {
		opts.Stride = def.Stride
	}
	if opts.Trail <= 0 {
		opts.Trail = def.Trail
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}

	n := frames.SampleCount()
	m := Model{
		name:      name,
		opts:      opts,
		times:     make([]float64, n),
		positions: make([][]r3.Vec, n),
		sep:       make([]float64, n),
		running:   n > 0,
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		minX:      math.Inf(1),
		maxX:      math.Inf(-1),
		minY:      math.Inf(1),
		maxY:      math.Inf(-1),
	}

	for i := 0; i < n; i++ {
		x := frames.StateAt(i)
		m.bodies = len(x) / 6
		m.times[i] = frames.TimeAt(i)
		m.positions[i] = make([]r3.Vec, m.bodies)
		for b := range m.positions[i] {
			p := physics.Position(x, b)
			m.positions[i][b] = p
			m.minX, m.maxX = math.Min(m.minX, p.X), math.Max(m.maxX, p.X)
			m.minY, m.maxY = math.Min(m.minY, p.Y), math.Max(m.maxY, p.Y)
		}
		if m.bodies >= 2 {
			m.sep[i] = r3.Norm(r3.Sub(m.positions[i][1], m.positions[i][0]))
		}
	}
	return m
}

func (m Model) Frame() int    { return m.frame }
func (m Model) Running() bool { return m.running }
func (m Model) Done() bool    { return m.done }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			if m.done {
				m.frame, m.done = 0, false
			}
			m.running = !m.running && len(m.times) > 0
		case "left", "h":
			m.seek(m.frame - scrubFrames*m.opts.Stride)
		case "right", "l":
			m.seek(m.frame + scrubFrames*m.opts.Stride)
		case "home", "r":
			m.seek(0)
		case "end":
			m.seek(len(m.times) - 1)
		}
	case TickMsg:
		if m.running {
			m.seek(m.frame + m.opts.Stride)
			if m.done {
				m.running = false
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) seek(frame int) {
	last := len(m.times) - 1
	if last < 0 {
		return
	}
	m.frame = max(0, min(frame, last))
	m.done = m.frame == last
}

// Progress is the progress line printed under the playback.
func (m Model) Progress() string {
	pct := 0.0
	if len(m.times) > 0 {
		pct = float64(m.frame+1) / float64(len(m.times))
	}
	return fmt.Sprintf("Progress: %.1f%% | 100.0 %%", 100*pct)
}

func (m Model) window() int {
	return max(0, m.frame-m.opts.Trail)
}

// project maps model x/y into canvas dots, keeping the aspect ratio.
func (m Model) project(p r3.Vec) (int, int) {
	cw, ch := m.canvas.Pixels()
	span := math.Max(m.maxX-m.minX, m.maxY-m.minY)
	if !(span > 0) {
		return cw / 2, ch / 2
	}
	scale := float64(min(cw, ch)-1) / span
	cx := (m.minX + m.maxX) / 2
	cy := (m.minY + m.maxY) / 2
	return cw/2 + int((p.X-cx)*scale), ch/2 - int((p.Y-cy)*scale)
}

func (m Model) draw() {
	m.canvas.Clear()
	if len(m.times) == 0 {
		return
	}
	for b := 0; b < m.bodies; b++ {
		for i := m.window(); i < m.frame; i++ {
			x0, y0 := m.project(m.positions[i][b])
			x1, y1 := m.project(m.positions[i+1][b])
			m.canvas.DrawLine(x0, y0, x1, y1)
		}
		x, y := m.project(m.positions[m.frame][b])
		m.canvas.Dot(x, y, 1)
	}
}

func (m Model) View() string {
	if len(m.times) == 0 {
		return "no frames to play\n"
	}
	m.draw()

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")

	status := "PLAYING"
	switch {
	case m.done:
		status = "DONE"
	case !m.running:
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.3f", m.times[m.frame])) + "\n")
	s.WriteString(labelStyle.Render("Frame") + valueStyle.Render(fmt.Sprintf("%d/%d", m.frame+1, len(m.times))) + "\n\n")

	for b, p := range m.positions[m.frame] {
		s.WriteString(labelStyle.Render(fmt.Sprintf("body %d", b)) +
			valueStyle.Render(fmt.Sprintf("%8.3f %8.3f %8.3f", p.X, p.Y, p.Z)) + "\n")
	}

	if m.bodies >= 2 && m.frame > m.window() {
		chart := asciigraph.Plot(m.sep[m.window():m.frame+1],
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("separation"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause  ←/→:Scrub  R:Restart  Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.canvas.String()), statsStyle.Render(s.String()))
	return view + "\n" + m.Progress() + "\n"
}

// Run plays frames in the terminal until the user quits.
func Run(name string, frames dynamo.Frames, opts Options) error {
	_, err := tea.NewProgram(NewModel(name, frames, opts), tea.WithAltScreen()).Run()
	return err
}
