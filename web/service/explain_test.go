package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octvision/database/model"
	"octvision/llm"
)

func newTestExplainService(t *testing.T, scanService *ScanService, handler http.HandlerFunc) *ExplainService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := llm.NewClient("test-key")
	client.BaseURL = server.URL
	return NewExplainService(llm.NewGenerator(client), scanService)
}

func TestAskRecordsQuestionAndAnswer(t *testing.T) {
	setupTestDB(t)
	s := newTestScanService(t)

	var lastPrompt string
	explain := newTestExplainService(t, s, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		lastPrompt = req.Messages[len(req.Messages)-1].Content

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "a helpful answer"}},
			},
		})
	})

	result, err := s.ProcessUpload(1, "scan.png", openTestImage(t))
	require.NoError(t, err)
	scan := result.Scan

	answer := explain.Ask(context.Background(), scan, model.RolePatient, "Is it treatable?")
	assert.Equal(t, "a helpful answer", answer)

	// The upstream prompt wraps the question in the on-topic directive.
	assert.Contains(t, lastPrompt, "Answer only the following question about the diagnosis")
	assert.Contains(t, lastPrompt, "Is it treatable?")
	assert.Contains(t, lastPrompt, "simple terms")

	// The explanation log keeps the question as asked, not the wrapped prompt.
	loaded, err := s.GetScan(scan.Id, 1)
	require.NoError(t, err)
	assert.Contains(t, loaded.Explanation, "Question: Is it treatable?")
	assert.Contains(t, loaded.Explanation, "Answer: a helpful answer")
	assert.NotContains(t, loaded.Explanation, "Answer only the following question")
}

func TestAskClinicalRoleGetsClinicalPrompt(t *testing.T) {
	setupTestDB(t)
	s := newTestScanService(t)

	var lastPrompt string
	explain := newTestExplainService(t, s, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastPrompt = req.Messages[len(req.Messages)-1].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "clinical detail"}},
			},
		})
	})

	result, err := s.ProcessUpload(1, "scan.png", openTestImage(t))
	require.NoError(t, err)

	explain.Ask(context.Background(), result.Scan, model.RoleDoctor, "Pathophysiology?")
	assert.Contains(t, lastPrompt, "doctor or researcher")
}

func TestAskServiceFailureRendersInline(t *testing.T) {
	setupTestDB(t)
	s := newTestScanService(t)

	explain := newTestExplainService(t, s, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	})

	result, err := s.ProcessUpload(1, "scan.png", openTestImage(t))
	require.NoError(t, err)

	answer := explain.Ask(context.Background(), result.Scan, model.RolePatient, "Why?")
	assert.Contains(t, answer, "Error generating explanation:")

	// The failed exchange is still logged on the scan.
	loaded, err := s.GetScan(result.Scan.Id, 1)
	require.NoError(t, err)
	assert.Contains(t, loaded.Explanation, "Question: Why?")
	assert.Contains(t, loaded.Explanation, "Error generating explanation:")
}
