package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octvision/util/common"
)

// newMockService returns a client pointed at a fake chat-completions
// endpoint and a pointer to the last prompt the endpoint received.
func newMockService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key")
	client.BaseURL = server.URL
	return client
}

func completionHandler(t *testing.T, reply string, lastPrompt *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		*lastPrompt = req.Messages[len(req.Messages)-1].Content

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestAnswerSelectsTemplateByRole(t *testing.T) {
	var lastPrompt string
	client := newMockService(t, completionHandler(t, "an answer", &lastPrompt))
	g := NewGenerator(client)

	_, err := g.Answer(context.Background(), 1, "DME", "What is this?", true)
	require.NoError(t, err)
	assert.Contains(t, lastPrompt, "doctor or researcher")
	assert.Contains(t, lastPrompt, "diagnosed with DME")

	_, err = g.Answer(context.Background(), 2, "DME", "What is this?", false)
	require.NoError(t, err)
	assert.Contains(t, lastPrompt, "simple terms")
}

func TestAnswerRecordsHistoryPerScan(t *testing.T) {
	var lastPrompt string
	client := newMockService(t, completionHandler(t, "an answer", &lastPrompt))
	g := NewGenerator(client)

	answer, err := g.Answer(context.Background(), 5, "CNV", "Is it serious?", false)
	require.NoError(t, err)
	assert.Equal(t, "an answer", answer)

	history := g.History(5)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Contains(t, history[0].Content, "Is it serious?")
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "an answer", history[1].Content)

	// Another scan's history stays empty.
	assert.Empty(t, g.History(6))

	// The second question carries the first exchange in its prompt.
	_, err = g.Answer(context.Background(), 5, "CNV", "What next?", false)
	require.NoError(t, err)
	assert.Contains(t, lastPrompt, "Is it serious?")
	assert.Len(t, g.History(5), 4)
}

func TestAnswerFailureLeavesHistoryUntouched(t *testing.T) {
	client := newMockService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	g := NewGenerator(client)

	_, err := g.Answer(context.Background(), 9, "AMD", "Why?", false)
	assert.ErrorIs(t, err, common.ErrService)
	assert.Empty(t, g.History(9))
}

func TestCompleteTimeout(t *testing.T) {
	client := newMockService(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	client.Timeout = 50 * time.Millisecond

	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, common.ErrService)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	client := newMockService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, common.ErrService)
}

func TestRenderPromptFlattensHistory(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	prompt := renderPrompt("DR", "second question", history, true)
	assert.Contains(t, prompt, "user: first question\nassistant: first answer")
	assert.Contains(t, prompt, "second question")
}
