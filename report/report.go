// Package report renders scan records as a fixed-layout PDF and exports
// scan history as CSV.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"octvision/database/model"
	"octvision/util/common"
)

const (
	// The PDF holds at most this many explanation lines; anything beyond is
	// silently dropped. No pagination.
	maxExplanationLines = 10

	dateFormat = "2006-01-02 15:04:05"
)

// RenderPDF renders one scan as a single-page report: title, user id,
// date, prediction, confidence to two decimals and the first ten lines of
// the explanation, each at a fixed vertical position.
func RenderPDF(scan *model.Scan) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "OCTVision AI - Scan Report")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("User ID: %d", scan.UserId))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", scan.CreatedAt.Format(dateFormat)))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Prediction: %s", scan.Prediction))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Confidence: %.2f%%", scan.Confidence))
	pdf.Ln(10)

	pdf.Cell(0, 8, "Explanation:")
	pdf.Ln(8)
	lines := strings.Split(scan.Explanation, "\n")
	if len(lines) > maxExplanationLines {
		lines = lines[:maxExplanationLines]
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, common.WrapError(common.ErrReport, err)
	}
	return buf.Bytes(), nil
}
