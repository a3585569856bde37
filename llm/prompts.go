package llm

import (
	"fmt"
	"strings"
)

// The two fixed prompt templates. Both take exactly the diagnosis, the
// conversation history and the question. Doctors and researchers get the
// clinical template, patients get the plain-language one.
const (
	clinicalTemplate = "You are a medical AI assistant providing detailed scientific information to a doctor or researcher. The patient has been diagnosed with %s based on an OCT scan. Conversation history: %s. Answer the following question: %s. Provide a comprehensive explanation including the pathophysiology, risk factors, clinical implications, treatment options, and any relevant research findings."

	plainTemplate = "You are a medical AI assistant helping a patient understand their condition in simple terms. The patient has been diagnosed with %s based on an OCT scan. Conversation history: %s. Answer the following question: %s. Provide a simple explanation including what the disease is, how it occurs, precautions to take, food to eat or avoid, and whether they should see a doctor. Use plain language and avoid technical jargon."
)

// Turn is one entry of a conversation history.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// renderPrompt fills a template with the diagnosis, flattened history and
// question.
func renderPrompt(diagnosis, question string, history []Turn, clinical bool) string {
	template := plainTemplate
	if clinical {
		template = clinicalTemplate
	}

	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return fmt.Sprintf(template, diagnosis, b.String(), question)
}
