// cmd/server/tui.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
)

var errInterrupted = errors.New("interrupted")

type progressMsg services.ProgressUpdate

type doneMsg struct {
	result *models.GenerationResult
	err    error
}

// generateModel 在生成期间显示 spinner 和三个阶段的状态
type generateModel struct {
	spinner spinner.Model
	percent int
	stage   string
	message string
	done    map[string]bool
	result  *models.GenerationResult
	err     error
}

func newGenerateModel() generateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))
	return generateModel{
		spinner: s,
		message: "Starting...",
		done:    make(map[string]bool),
	}
}

func (m generateModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m generateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.err = errInterrupted
			return m, tea.Quit
		}
	case progressMsg:
		m.percent = msg.Progress
		m.message = msg.Message
		// 进入下一阶段时上一阶段已完成
		if m.stage != "" && msg.Stage != m.stage {
			m.done[m.stage] = true
		}
		if msg.Stage != "" {
			m.stage = msg.Stage
		}
		return m, nil
	case doneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m generateModel) View() string {
	if m.result != nil || m.err != nil {
		return ""
	}

	var b strings.Builder
	for _, section := range models.AllSections {
		marker := " "
		switch {
		case m.done[string(section)]:
			marker = okStyle.Render("✓")
		case m.stage == string(section):
			marker = m.spinner.View()
		}
		fmt.Fprintf(&b, " %s %s\n", marker, section.Title())
	}
	fmt.Fprintf(&b, "%s\n", subtleStyle.Render(fmt.Sprintf("%3d%% %s  (ctrl+c to cancel)", m.percent, m.message)))
	return b.String()
}

// generateInteractive 在后台运行生成，把进度转发给 bubbletea 程序
func generateInteractive(ctx context.Context, gen *services.GenerationService, progress *services.ProgressService, sess *models.Session, idea string) (*models.GenerationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newGenerateModel())

	updates := progress.Subscribe(sess.ID)
	go func() {
		for u := range updates {
			p.Send(progressMsg(u))
		}
	}()

	go func() {
		result, err := gen.Generate(ctx, sess, idea)
		progress.Unsubscribe(sess.ID, updates)
		p.Send(doneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	m := final.(generateModel)
	return m.result, m.err
}
