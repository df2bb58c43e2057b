package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one step of a run
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// Step is one entry of a progress display
type Step struct {
	Name   string
	Status StepStatus
	Detail string
	Err    error
}

// StepProgress displays the progress of a sequence of steps
type StepProgress interface {
	// Start shows the steps, all pending
	Start(names []string)
	// Update changes the state of step idx
	Update(idx int, status StepStatus, detail string, err error)
	// Complete finalizes the display and prints a summary
	Complete()
}

// NewStepProgress creates an animated display on a terminal and a
// line-by-line one otherwise.
func NewStepProgress(splog *Splog) StepProgress {
	if IsTTY() {
		return NewTTYStepProgress(splog)
	}
	return NewSimpleStepProgress(splog)
}

func newSteps(names []string) []Step {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name, Status: StepPending}
	}
	return steps
}

func summarize(steps []Step) (done, skipped, failed int) {
	for _, s := range steps {
		switch s.Status {
		case StepDone:
			done++
		case StepSkipped:
			skipped++
		case StepFailed:
			failed++
		}
	}
	return done, skipped, failed
}

// SimpleStepProgress prints one line per state change
type SimpleStepProgress struct {
	splog *Splog
	steps []Step
}

// NewSimpleStepProgress creates a line-by-line progress display
func NewSimpleStepProgress(splog *Splog) *SimpleStepProgress {
	return &SimpleStepProgress{splog: splog}
}

func (p *SimpleStepProgress) Start(names []string) {
	p.steps = newSteps(names)
}

func (p *SimpleStepProgress) Update(idx int, status StepStatus, detail string, err error) {
	if idx < 0 || idx >= len(p.steps) {
		return
	}
	step := &p.steps[idx]
	step.Status, step.Detail, step.Err = status, detail, err

	switch status {
	case StepRunning:
		p.splog.Info("  ⋯ %s...", step.Name)
	case StepDone:
		p.splog.Info("  ✓ %s %s", step.Name, detail)
	case StepSkipped:
		p.splog.Info("  - %s skipped %s", step.Name, detail)
	case StepFailed:
		p.splog.Info("  ✗ %s failed: %v", step.Name, err)
	}
}

func (p *SimpleStepProgress) Complete() {
	done, skipped, failed := summarize(p.steps)
	p.splog.Newline()
	if failed > 0 {
		p.splog.Info("Completed: %d, Skipped: %d, Failed: %d", done, skipped, failed)
		return
	}
	p.splog.Info("✓ All %d steps finished (%d skipped)", done+skipped, skipped)
}

// TTYStepProgress animates the steps with bubbletea
type TTYStepProgress struct {
	splog   *Splog
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewTTYStepProgress creates an animated progress display
func NewTTYStepProgress(splog *Splog) *TTYStepProgress {
	return &TTYStepProgress{splog: splog}
}

func (p *TTYStepProgress) Start(names []string) {
	p.program = tea.NewProgram(newStepModel(newSteps(names)),
		tea.WithInput(os.Stdin), tea.WithOutput(outputOf(p.splog)))
	p.done = make(chan struct{})
	p.splog.SetQuiet(true)

	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

func outputOf(splog *Splog) io.Writer {
	if splog == nil {
		return os.Stdout
	}
	return splog.Writer()
}

func (p *TTYStepProgress) Update(idx int, status StepStatus, detail string, err error) {
	if p.program == nil {
		return
	}
	p.program.Send(stepUpdateMsg{idx: idx, status: status, detail: detail, err: err})
}

func (p *TTYStepProgress) Complete() {
	if p.program == nil {
		return
	}
	p.once.Do(func() {
		p.program.Send(stepsCompleteMsg{})
		<-p.done
		p.splog.SetQuiet(false)
	})
}

type stepUpdateMsg struct {
	idx    int
	status StepStatus
	detail string
	err    error
}

type stepsCompleteMsg struct{}

type stepStyles struct {
	running lipgloss.Style
	done    lipgloss.Style
	failed  lipgloss.Style
	name    lipgloss.Style
	dim     lipgloss.Style
}

type stepModel struct {
	steps   []Step
	spinner spinner.Model
	done    bool
	styles  stepStyles
}

func newStepModel(steps []Step) *stepModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &stepModel{
		steps:   steps,
		spinner: s,
		styles: stepStyles{
			running: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
			done:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			name:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
			dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func (m *stepModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *stepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stepUpdateMsg:
		if msg.idx >= 0 && msg.idx < len(m.steps) {
			step := &m.steps[msg.idx]
			step.Status, step.Detail, step.Err = msg.status, msg.detail, msg.err
		}
		return m, nil

	case stepsCompleteMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *stepModel) View() string {
	var b strings.Builder
	b.WriteString("\n")

	for _, step := range m.steps {
		var icon, status string
		switch step.Status {
		case StepPending:
			icon = m.styles.dim.Render("○")
			status = m.styles.dim.Render("pending")
		case StepRunning:
			icon = m.spinner.View()
			status = m.styles.running.Render("running...")
		case StepDone:
			icon = m.styles.done.Render("✓")
			status = m.styles.done.Render(step.Detail)
		case StepSkipped:
			icon = m.styles.dim.Render("-")
			status = m.styles.dim.Render("skipped " + step.Detail)
		case StepFailed:
			icon = m.styles.failed.Render("✗")
			status = m.styles.failed.Render(fmt.Sprintf("failed: %v", step.Err))
		}
		fmt.Fprintf(&b, "  %s %s %s\n", icon, m.styles.name.Render(step.Name), status)
	}

	if m.done {
		done, skipped, failed := summarize(m.steps)
		b.WriteString("\n")
		if failed > 0 {
			b.WriteString(m.styles.failed.Render(fmt.Sprintf("Completed: %d, Skipped: %d, Failed: %d", done, skipped, failed)))
		} else {
			b.WriteString(m.styles.done.Render(fmt.Sprintf("✓ All %d steps finished (%d skipped)", done+skipped, skipped)))
		}
		b.WriteString("\n")
	}
	return b.String()
}
