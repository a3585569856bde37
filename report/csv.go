package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"octvision/database/model"
	"octvision/util/common"
)

// RenderCSV exports scan history as UTF-8 CSV with one header row. Embedded
// commas and newlines in explanations survive the round trip through
// standard CSV quoting.
func RenderCSV(scans []model.Scan) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Date", "Prediction", "Confidence", "Explanation"}); err != nil {
		return nil, common.WrapError(common.ErrReport, err)
	}
	for _, scan := range scans {
		record := []string{
			scan.CreatedAt.Format(dateFormat),
			scan.Prediction,
			fmt.Sprintf("%.2f", scan.Confidence),
			scan.Explanation,
		}
		if err := w.Write(record); err != nil {
			return nil, common.WrapError(common.ErrReport, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, common.WrapError(common.ErrReport, err)
	}
	return buf.Bytes(), nil
}
