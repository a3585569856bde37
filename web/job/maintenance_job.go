// Package job contains the scheduled maintenance tasks run by the web
// server's cron scheduler.
package job

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"octvision/database"
	"octvision/database/model"
	"octvision/logger"
)

// MaintenanceJob checkpoints the sqlite WAL and removes heatmap files
// whose scan rows no longer resolve. Scan rows themselves are never
// deleted by the application; orphans appear only after manual database
// surgery, but sweeping them keeps the upload directory honest.
type MaintenanceJob struct {
	uploadDir string
}

func NewMaintenanceJob(uploadDir string) *MaintenanceJob {
	return &MaintenanceJob{uploadDir: uploadDir}
}

func (j *MaintenanceJob) Run() {
	if err := database.Checkpoint(); err != nil {
		logger.Warning("WAL checkpoint failed:", err)
	}
	j.sweepOrphanHeatmaps()
}

func (j *MaintenanceJob) sweepOrphanHeatmaps() {
	entries, err := os.ReadDir(j.uploadDir)
	if err != nil {
		return
	}

	var ids []int
	if err := database.GetDB().Model(model.Scan{}).Pluck("id", &ids).Error; err != nil {
		logger.Warning("maintenance sweep could not list scans:", err)
		return
	}
	known := make(map[int]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "heatmap_") || !strings.HasSuffix(name, ".png") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "heatmap_"), ".png"))
		if err != nil || known[id] {
			continue
		}
		if err := os.Remove(filepath.Join(j.uploadDir, name)); err != nil {
			logger.Warningf("failed to remove orphan heatmap %s: %v", name, err)
		} else {
			logger.Infof("removed orphan heatmap %s", name)
		}
	}
}
