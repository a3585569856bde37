package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"octvision/database/model"
	"octvision/logger"
	"octvision/util/common"
	"octvision/web/service"
	"octvision/web/session"

	"github.com/gin-gonic/gin"
)

// ScanController handles the authenticated scan routes: dashboard, upload,
// history, heatmap, report download, questions and CSV export.
type ScanController struct {
	BaseController

	scanService    *service.ScanService
	explainService *service.ExplainService
}

// NewScanController creates a ScanController and registers its routes
// behind the login check.
func NewScanController(g *gin.RouterGroup, scanService *service.ScanService, explainService *service.ExplainService) *ScanController {
	a := &ScanController{
		scanService:    scanService,
		explainService: explainService,
	}
	a.initRouter(g)
	return a
}

func (a *ScanController) initRouter(g *gin.RouterGroup) {
	g.Use(a.checkLogin)

	g.GET("/dashboard", a.dashboard)
	g.GET("/upload", a.uploadPage)
	g.POST("/upload", a.upload)
	g.GET("/history", a.history)
	g.GET("/heatmap/:id", a.heatmap)
	g.GET("/report/:id", a.downloadReport)
	g.POST("/ask/:id", a.askQuestion)
	g.GET("/export", a.exportHistory)
	g.GET("/logs", a.logs)
}

func (a *ScanController) dashboard(c *gin.Context) {
	user := session.GetLoginUser(c)
	scans, err := a.scanService.ListScans(user.Id)
	if err != nil {
		logger.Warning("list scans failed:", err)
	}
	html(c, "dashboard.html", "Dashboard", gin.H{
		"scans":            scans,
		"predictionCounts": a.scanService.PredictionCounts(scans),
	})
}

func (a *ScanController) uploadPage(c *gin.Context) {
	html(c, "upload.html", "Upload Scan", nil)
}

func (a *ScanController) upload(c *gin.Context) {
	user := session.GetLoginUser(c)

	// Oversized bodies fail here, before the pipeline runs.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		session.SetFlash(c, "No file selected or file too large")
		c.Redirect(http.StatusSeeOther, "/upload")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if err := a.scanService.ValidateUpload(fileHeader.Filename, contentType); err != nil {
		session.SetFlash(c, err.Error())
		c.Redirect(http.StatusSeeOther, "/upload")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		session.SetFlash(c, "Failed to read uploaded file")
		c.Redirect(http.StatusSeeOther, "/upload")
		return
	}
	defer src.Close()

	result, err := a.scanService.ProcessUpload(user.Id, fileHeader.Filename, src)
	if err != nil {
		logger.Warningf("upload failed for user %d: %v", user.Id, err)
		if errors.Is(err, common.ErrDecode) {
			session.SetFlash(c, "The uploaded file could not be read as an image")
		} else {
			session.SetFlash(c, "Upload failed, please try again")
		}
		c.Redirect(http.StatusSeeOther, "/upload")
		return
	}

	msg := "Upload successful! Check the dashboard to ask questions about this scan."
	if result.ReportErr != nil {
		msg += fmt.Sprintf(" Warning: failed to generate PDF report: %v", result.ReportErr)
	}
	session.SetFlash(c, msg)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (a *ScanController) history(c *gin.Context) {
	user := session.GetLoginUser(c)
	scans, err := a.scanService.ListScans(user.Id)
	if err != nil {
		logger.Warning("list scans failed:", err)
	}
	html(c, "history.html", "Scan History", gin.H{"scans": scans})
}

// scanFromParam loads the scan named in the URL and enforces ownership.
// The redirect for foreign records matches the one for other dashboard
// failures so nothing about the record leaks.
func (a *ScanController) scanFromParam(c *gin.Context) *model.Scan {
	user := session.GetLoginUser(c)
	scanId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return nil
	}

	scan, err := a.scanService.GetScan(scanId, user.Id)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			c.AbortWithStatus(http.StatusNotFound)
		case errors.Is(err, common.ErrAuthorization):
			session.SetFlash(c, "Unauthorized access")
			c.Redirect(http.StatusSeeOther, "/dashboard")
			c.Abort()
		default:
			logger.Warning("load scan failed:", err)
			c.AbortWithStatus(http.StatusInternalServerError)
		}
		return nil
	}
	return scan
}

func (a *ScanController) heatmap(c *gin.Context) {
	scan := a.scanFromParam(c)
	if scan == nil {
		return
	}

	path, err := a.scanService.Heatmap(scan)
	if err != nil {
		logger.Warningf("heatmap generation failed for scan %d: %v", scan.Id, err)
		session.SetFlash(c, "Failed to generate heatmap")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.File(path)
}

func (a *ScanController) downloadReport(c *gin.Context) {
	scan := a.scanFromParam(c)
	if scan == nil {
		return
	}

	path, err := a.scanService.ReportFile(scan)
	if err != nil {
		logger.Warningf("report generation failed for scan %d: %v", scan.Id, err)
		session.SetFlash(c, "Failed to generate PDF report")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.FileAttachment(path, fmt.Sprintf("report_%d.pdf", scan.Id))
}

func (a *ScanController) askQuestion(c *gin.Context) {
	scan := a.scanFromParam(c)
	if scan == nil {
		return
	}
	user := session.GetLoginUser(c)

	question := c.PostForm("question")
	if question == "" {
		if isAjax(c) {
			jsonMsg(c, "ask question", common.NewErrorf("question must not be empty"))
			return
		}
		session.SetFlash(c, "Question must not be empty")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}

	answer := a.explainService.Ask(c.Request.Context(), scan, user.Role, question)
	if isAjax(c) {
		jsonMsgObj(c, "Question answered", answer, nil)
		return
	}

	session.SetFlash(c, "Question answered! Check the dashboard for the response.")
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// logs returns recent buffered log entries for quick diagnostics.
func (a *ScanController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "50"))
	if err != nil || count <= 0 {
		count = 50
	}
	level := c.DefaultQuery("level", "info")
	jsonMsgObj(c, "", logger.GetLogs(count, level), nil)
}

func (a *ScanController) exportHistory(c *gin.Context) {
	user := session.GetLoginUser(c)
	data, err := a.scanService.ExportCSV(user.Id)
	if err != nil {
		logger.Warning("history export failed:", err)
		session.SetFlash(c, "Failed to export history")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="history.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
