package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute("ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_PrintsAnswerAndEvidence(t *testing.T) {
	_, _, chat, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ask", "what is the policy?")
	require.NoError(t, err)

	assert.Equal(t, "what is the policy?", chat.gotQuestion)
	assert.NotEmpty(t, chat.gotSession)
	assert.Contains(t, out, "stub answer")
	assert.Contains(t, out, "chunk-1")
	assert.Contains(t, out, "Session:")
}

func TestAskCmd_SessionFlagContinuesConversation(t *testing.T) {
	_, _, chat, cleanup := setupTestServices()
	defer cleanup()
	defer func() { askSession = "" }()

	out, err := execute("ask", "--session", "session-42", "follow-up")
	require.NoError(t, err)

	assert.Equal(t, "session-42", chat.gotSession)
	assert.NotContains(t, out, "Session:")
}

func TestAskCmd_ForwardsRetrievalFlags(t *testing.T) {
	_, _, chat, cleanup := setupTestServices()
	defer cleanup()
	defer func() {
		askDocument = ""
		askMatchCount = 0
		askThreshold = -1
	}()

	_, err := execute("ask", "--document", "doc-7", "--limit", "3", "--threshold", "0.8", "question")
	require.NoError(t, err)

	assert.Equal(t, "doc-7", chat.gotOpts.DocumentID)
	assert.Equal(t, 3, chat.gotOpts.MatchCount)
	assert.Equal(t, 0.8, chat.gotOpts.Threshold)
	assert.True(t, chat.gotOpts.ThresholdSet)
}

func TestAskCmd_JSONOutput(t *testing.T) {
	_, _, _, cleanup := setupTestServices()
	defer cleanup()
	defer func() { askJSON = false }()

	out, err := execute("ask", "--json", "question")
	require.NoError(t, err)

	assert.Contains(t, out, `"answer": "stub answer"`)
	assert.Contains(t, out, `"chunk_id": "chunk-1"`)
	assert.Contains(t, out, `"conversation_id": "conv-1"`)
}

func TestAskCmd_FailsWithoutService(t *testing.T) {
	SetServices(Services{})

	_, err := execute("ask", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat service not configured")
}
