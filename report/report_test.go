package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octvision/database/model"
)

func testScan() *model.Scan {
	return &model.Scan{
		Id:          1,
		UserId:      3,
		ImagePath:   "data/uploads/abc.png",
		Prediction:  "DME",
		Confidence:  97.4312,
		Explanation: "The scan shows signs of DME with 97.43% confidence.",
		CreatedAt:   time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(testScan())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output is not a PDF")
	assert.Greater(t, len(data), 500)
}

func TestRenderPDFTruncatesExplanation(t *testing.T) {
	scan := testScan()
	scan.Explanation = strings.Repeat("line\n", 50)
	data, err := RenderPDF(scan)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderCSV(t *testing.T) {
	scans := []model.Scan{
		*testScan(),
		{
			Prediction:  "NORMAL",
			Confidence:  88.5,
			Explanation: "No anomalies.\n\nQuestion: what now?\nAnswer: nothing, really",
			CreatedAt:   time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC),
		},
	}

	data, err := RenderCSV(scans)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Date", "Prediction", "Confidence", "Explanation"}, records[0])
	assert.Equal(t, "2026-05-14 10:30:00", records[1][0])
	assert.Equal(t, "DME", records[1][1])
	assert.Equal(t, "97.43", records[1][2])
	// Embedded newlines survive quoting.
	assert.Contains(t, records[2][3], "Question: what now?")
}

func TestRenderCSVEmptyHistory(t *testing.T) {
	data, err := RenderCSV(nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
