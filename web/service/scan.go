package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"octvision/database"
	"octvision/database/model"
	"octvision/logger"
	"octvision/report"
	"octvision/util/common"
	"octvision/vision"
	"octvision/web/websocket"
)

// MaxUploadBytes caps uploaded scan images at 5 MiB. The web layer rejects
// oversized bodies before the pipeline sees them.
const MaxUploadBytes = 5 << 20

var (
	allowedExtensions = map[string]bool{
		".png":  true,
		".jpg":  true,
		".jpeg": true,
	}
	allowedContentTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
	}
)

// ScanService runs the scan-processing pipeline and owns access to scan
// records. Per upload the pipeline is linear with no back-edges:
// Received -> Stored -> Classified -> Persisted -> ReportAttempted -> Done.
// Failures up to persistence are fatal to the request; the report step is
// best-effort.
type ScanService struct {
	model     *vision.Model
	uploadDir string
	hub       *websocket.Hub
}

// NewScanService wires the pipeline to the loaded classifier, the upload
// directory and the progress hub.
func NewScanService(m *vision.Model, uploadDir string, hub *websocket.Hub) *ScanService {
	return &ScanService{model: m, uploadDir: uploadDir, hub: hub}
}

// UploadResult reports a completed upload. ReportErr carries a non-fatal
// PDF failure for the caller to surface as a warning.
type UploadResult struct {
	Scan      *model.Scan
	ReportErr error
}

// ValidateUpload checks the filename extension and declared content type
// against the allow-lists. Rejected uploads never reach the disk.
func (s *ScanService) ValidateUpload(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return common.WrapErrorf(common.ErrValidation, "file type %q is not allowed", ext)
	}
	if !allowedContentTypes[contentType] {
		return common.WrapErrorf(common.ErrValidation, "content type %q is not allowed", contentType)
	}
	return nil
}

// sanitizeFilename strips any path components and characters that could
// escape the upload directory.
func sanitizeFilename(filename string) string {
	base := filepath.Base(filepath.ToSlash(filename))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ProcessUpload drives one upload through the pipeline. The caller has
// already validated and size-capped the body. Classification or decode
// failure fails the upload and leaves neither a file nor a Scan row
// behind; a report failure is returned in the result, not as an error.
func (s *ScanService) ProcessUpload(userId int, filename string, src io.Reader) (*UploadResult, error) {
	s.hub.Progress(userId, websocket.StageReceived, "Uploading image...")

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	storedName := uuid.NewString() + "_" + sanitizeFilename(filename)
	imagePath := filepath.Join(s.uploadDir, storedName)

	dst, err := os.Create(imagePath)
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(imagePath)
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(imagePath)
		return nil, common.WrapError(common.ErrPersistence, err)
	}

	s.hub.Progress(userId, websocket.StageProcessing, "Processing image...")

	label, confidence, err := s.model.Classify(imagePath)
	if err != nil {
		os.Remove(imagePath)
		return nil, err
	}
	confidencePct := confidence * 100

	s.hub.Progress(userId, websocket.StageClassified, "Prediction complete!")

	scan := &model.Scan{
		UserId:      userId,
		ImagePath:   imagePath,
		Prediction:  label,
		Confidence:  confidencePct,
		Explanation: fmt.Sprintf("The scan shows signs of %s with %.2f%% confidence.", label, confidencePct),
	}
	if err := database.GetDB().Create(scan).Error; err != nil {
		os.Remove(imagePath)
		return nil, common.WrapError(common.ErrPersistence, err)
	}

	result := &UploadResult{Scan: scan}
	if _, err := s.writeReport(scan); err != nil {
		logger.Warningf("report generation failed for scan %d: %v", scan.Id, err)
		result.ReportErr = err
	}

	s.hub.Progress(userId, websocket.StageComplete, "Upload complete!")
	return result, nil
}

// GetScan loads a scan and enforces ownership. A record belonging to a
// different user is an authorization error and leaks nothing about the
// record.
func (s *ScanService) GetScan(scanId, userId int) (*model.Scan, error) {
	db := database.GetDB()
	scan := &model.Scan{}
	if err := db.First(scan, scanId).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, common.WrapErrorf(common.ErrValidation, "scan %d not found", scanId)
		}
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	if scan.UserId != userId {
		return nil, common.WrapErrorf(common.ErrAuthorization, "scan %d does not belong to user %d", scanId, userId)
	}
	return scan, nil
}

// ListScans returns the user's scans, newest first.
func (s *ScanService) ListScans(userId int) ([]model.Scan, error) {
	db := database.GetDB()
	var scans []model.Scan
	err := db.Model(model.Scan{}).
		Where("user_id = ?", userId).
		Order("created_at desc").
		Find(&scans).
		Error
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	return scans, nil
}

// AppendExplanation appends text to a scan's explanation log. Existing
// content is never replaced.
func (s *ScanService) AppendExplanation(scanId int, text string) error {
	db := database.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		scan := &model.Scan{}
		if err := tx.First(scan, scanId).Error; err != nil {
			return common.WrapError(common.ErrPersistence, err)
		}
		scan.Explanation += text
		if err := tx.Model(scan).Update("explanation", scan.Explanation).Error; err != nil {
			return common.WrapError(common.ErrPersistence, err)
		}
		return nil
	})
}

// PredictionCounts tallies the user's scans per diagnostic category over
// the fixed label set.
func (s *ScanService) PredictionCounts(scans []model.Scan) map[string]int {
	counts := make(map[string]int, len(s.model.Labels()))
	for _, label := range s.model.Labels() {
		counts[label] = 0
	}
	for _, scan := range scans {
		if _, ok := counts[scan.Prediction]; ok {
			counts[scan.Prediction]++
		}
	}
	return counts
}

// Heatmap generates (or regenerates) the saliency overlay for a scan and
// returns its path. The target path is stable per scan id.
func (s *ScanService) Heatmap(scan *model.Scan) (string, error) {
	return s.model.GenerateHeatmap(scan.ImagePath, scan.Id, s.uploadDir)
}

// ReportFile returns the path of the scan's PDF report, generating it if
// it does not exist yet.
func (s *ScanService) ReportFile(scan *model.Scan) (string, error) {
	path := s.reportPath(scan.Id)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return s.writeReport(scan)
}

func (s *ScanService) reportPath(scanId int) string {
	return filepath.Join(s.uploadDir, fmt.Sprintf("report_%d.pdf", scanId))
}

func (s *ScanService) writeReport(scan *model.Scan) (string, error) {
	data, err := report.RenderPDF(scan)
	if err != nil {
		return "", err
	}
	path := s.reportPath(scan.Id)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.WrapError(common.ErrReport, err)
	}
	return path, nil
}

// ExportCSV renders the user's full history as CSV.
func (s *ScanService) ExportCSV(userId int) ([]byte, error) {
	scans, err := s.ListScans(userId)
	if err != nil {
		return nil, err
	}
	return report.RenderCSV(scans)
}
