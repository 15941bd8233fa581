package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-core/internal/adapters/driving/tui"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch an interactive chat session",
	Long: `Launch an interactive terminal chat grounded on the indexed documents.

Each answer shows the evidence chunks it was grounded on. Use --session
to resume an earlier conversation.

Controls:
  Enter    - Send question
  ↑/↓      - Scroll transcript
  Ctrl+C   - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session token to resume a conversation")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("chat requires an interactive terminal; use 'sercha ask' for scripted usage")
	}

	session := chatSession
	if session == "" {
		session = uuid.New().String()
	}

	app := tui.New(chatService, session)
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
