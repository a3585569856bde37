package service

import (
	"context"
	"fmt"

	"octvision/database/model"
	"octvision/llm"
	"octvision/logger"
)

// ExplainService answers follow-up questions about a scan's diagnosis and
// appends each question/answer pair to the scan's explanation log. Service
// failures come back as displayable text so the page still renders.
type ExplainService struct {
	generator   *llm.Generator
	scanService *ScanService
}

func NewExplainService(generator *llm.Generator, scanService *ScanService) *ExplainService {
	return &ExplainService{generator: generator, scanService: scanService}
}

// Ask answers one question about the scan for the given role and records
// the exchange on the scan. The question is wrapped in a directive that
// keeps the model on topic; the log keeps the question as asked. The
// returned string is always displayable: upstream failures are rendered
// inline, never raised to the page.
func (s *ExplainService) Ask(ctx context.Context, scan *model.Scan, role model.Role, question string) string {
	prompt := fmt.Sprintf("Answer only the following question about the diagnosis '%s': %s. Do not provide any additional information beyond what is asked.", scan.Prediction, question)
	answer, err := s.generator.Answer(ctx, scan.Id, scan.Prediction, prompt, role.IsClinical())
	if err != nil {
		logger.Warningf("explanation service failed for scan %d: %v", scan.Id, err)
		answer = fmt.Sprintf("Error generating explanation: %v", err)
	}

	entry := fmt.Sprintf("\n\nQuestion: %s\nAnswer: %s", question, answer)
	if err := s.scanService.AppendExplanation(scan.Id, entry); err != nil {
		logger.Warningf("failed to append explanation for scan %d: %v", scan.Id, err)
	}
	return answer
}
