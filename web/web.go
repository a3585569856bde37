package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"

	"octvision/config"
	"octvision/llm"
	"octvision/logger"
	"octvision/util/common"
	"octvision/vision"
	"octvision/web/controller"
	"octvision/web/job"
	"octvision/web/service"
	"octvision/web/websocket"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

//go:embed html/*
var htmlFS embed.FS

// Server is the web panel. It owns the HTTP listener, the progress hub
// and the cron scheduler, and wires the services into the controllers.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	model *vision.Model
	hub   *websocket.Hub
	cron  *cron.Cron

	index *controller.IndexController
	scan  *controller.ScanController
	ws    *controller.WebSocketController

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(model *vision.Model) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		model:  model,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	secret := config.GetSecretKey()
	if secret == "" {
		logger.Warning("OCTV_SECRET_KEY is not set, using an insecure default")
		secret = "octvision-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	engine.Use(sessions.Sessions("octvision", store))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	templates, err := template.New("").ParseFS(htmlFS, "html/*.html")
	if err != nil {
		return nil, err
	}
	engine.SetHTMLTemplate(templates)

	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "404 page not found")
	})

	s.hub = websocket.NewHub()

	uploadDir := config.GetUploadFolder()
	if err := os.MkdirAll(uploadDir, fs.ModePerm); err != nil {
		return nil, err
	}

	scanService := service.NewScanService(s.model, uploadDir, s.hub)
	generator := llm.NewGenerator(llm.NewClient(config.GetGroqAPIKey()))
	explainService := service.NewExplainService(generator, scanService)

	g := engine.Group("/")
	s.index = controller.NewIndexController(g)
	s.scan = controller.NewScanController(g, scanService, explainService)
	s.ws = controller.NewWebSocketController(g, s.hub)

	return engine, nil
}

func (s *Server) startTask() {
	s.cron.AddJob("@daily", job.NewMaintenanceJob(config.GetUploadFolder()))
}

func (s *Server) Start() (err error) {
	// Release resources from a partial start on failure.
	defer func() {
		if err != nil {
			s.Stop()
		}
	}()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	s.cron = cron.New()
	s.startTask()
	s.cron.Start()

	listenAddr := net.JoinHostPort(config.GetListen(), config.GetPort())
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	s.listener = listener

	logger.Info("web server running HTTP on", s.listener.Addr())

	s.httpServer = &http.Server{
		Handler: engine,
	}

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server error:", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	s.cancel()

	if s.hub != nil {
		s.hub.Stop()
	}
	if s.cron != nil {
		s.cron.Stop()
	}

	var err1 error
	var err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(s.ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}
