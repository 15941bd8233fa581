// Package tui provides the interactive terminal chat view.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// turn is one rendered question/answer exchange.
type turn struct {
	question string
	answer   string
	evidence []domain.Evidence
}

// answerReceived carries a completed answer into the update loop.
type answerReceived struct {
	answer *domain.Answer
}

// answerFailed carries a failed answer into the update loop.
type answerFailed struct {
	err error
}

// App is the bubbletea model for the chat session.
type App struct {
	chat    driving.ChatService
	ctx     context.Context
	session string
	styles  *Styles

	input    textinput.Model
	viewport viewport.Model

	turns   []turn
	pending string
	waiting bool
	err     error
	ready   bool
	width   int
	height  int
}

// New creates the chat app for one session.
func New(chat driving.ChatService, session string) *App {
	input := textinput.New()
	input.Placeholder = "Ask a question..."
	input.CharLimit = 2000
	input.Focus()

	return &App{
		chat:    chat,
		ctx:     context.Background(),
		session: session,
		styles:  DefaultStyles(),
		input:   input,
		width:   80,
		height:  24,
	}
}

// WithContext sets the context used for chat requests.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return a, tea.Quit
		case tea.KeyEnter:
			return a, a.submit()
		}

	case answerReceived:
		a.waiting = false
		a.err = nil
		a.turns = append(a.turns, turn{
			question: a.pending,
			answer:   msg.answer.Text,
			evidence: msg.answer.Evidence,
		})
		a.pending = ""
		a.refreshTranscript()
		a.viewport.GotoBottom()
		return a, nil

	case answerFailed:
		a.waiting = false
		a.pending = ""
		a.err = msg.err
		return a, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// submit sends the typed question to the chat service.
func (a *App) submit() tea.Cmd {
	question := strings.TrimSpace(a.input.Value())
	if question == "" || a.waiting {
		return nil
	}

	a.input.Reset()
	a.pending = question
	a.waiting = true
	a.err = nil

	return func() tea.Msg {
		answer, err := a.chat.Answer(a.ctx, a.session, question, domain.RetrieveOptions{})
		if err != nil {
			return answerFailed{err: err}
		}
		return answerReceived{answer: answer}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("sercha chat"))
	b.WriteString("\n\n")

	if a.ready {
		b.WriteString(a.viewport.View())
		b.WriteString("\n")
	}

	if a.waiting {
		b.WriteString(a.styles.Waiting.Render("Thinking..."))
		b.WriteString("\n")
	}
	if a.err != nil {
		b.WriteString(a.styles.Error.Render("Error: " + a.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(a.styles.InputBox.Width(a.width - 4).Render(a.input.View()))
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("enter: send • ↑/↓: scroll • ctrl+c: quit"))

	return b.String()
}

// resize fits the viewport to the window, leaving room for the title,
// input box and help line.
func (a *App) resize() {
	reserved := 8
	height := a.height - reserved
	if height < 3 {
		height = 3
	}

	if !a.ready {
		a.viewport = viewport.New(a.width, height)
		a.ready = true
	} else {
		a.viewport.Width = a.width
		a.viewport.Height = height
	}
	a.input.Width = a.width - 8
	a.refreshTranscript()
}

// refreshTranscript re-renders all turns into the viewport.
func (a *App) refreshTranscript() {
	if !a.ready {
		return
	}

	var b strings.Builder
	for i := range a.turns {
		t := &a.turns[i]
		b.WriteString(a.styles.UserLabel.Render("You: "))
		b.WriteString(t.question)
		b.WriteString("\n\n")
		b.WriteString(a.styles.BotLabel.Render("Sercha: "))
		b.WriteString(t.answer)
		b.WriteString("\n")
		if len(t.evidence) > 0 {
			for j := range t.evidence {
				line := fmt.Sprintf("  [%d] %s (%.2f)", j+1, t.evidence[j].ChunkID, t.evidence[j].Similarity)
				b.WriteString(a.styles.Evidence.Render(line))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	a.viewport.SetContent(b.String())
}
