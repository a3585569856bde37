package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"octvision/config"
	"octvision/database"
	"octvision/logger"
	"octvision/vision"
	"octvision/web"
	"octvision/web/service"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func runWebServer() {
	_ = godotenv.Load()

	log.Printf("Starting %v %v", config.GetName(), config.GetVersion())

	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatalf("Unknown log level: %v", config.GetLogLevel())
	}

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer database.CloseDB()

	model, err := vision.LoadModel(config.GetModelPath())
	if err != nil {
		log.Fatalf("Error loading classifier model from %v: %v", config.GetModelPath(), err)
	}
	logger.Infof("loaded classifier %q (%d labels, input %dx%d)",
		model.Name(), len(model.Labels()), model.InputSize(), model.InputSize())

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals, SIGHUP restarts the server in place.
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)

	server := web.NewServer(model)
	if err := server.Start(); err != nil {
		log.Fatalf("Error starting web server: %v", err)
	}

	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting servers...")

			if err := server.Stop(); err != nil {
				logger.Warning("error stopping web server:", err)
			}
			server = web.NewServer(model)
			if err := server.Start(); err != nil {
				log.Fatalf("Error restarting web server: %v", err)
			}
			logger.Info("web server restarted successfully")
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("error stopping web server:", err)
			}
			logger.CloseLogger()
			return
		}
	}
}

func runSetting(show bool, username, password string) {
	_ = godotenv.Load()

	if show {
		fmt.Println("listen:       ", config.GetListen())
		fmt.Println("port:         ", config.GetPort())
		fmt.Println("database:     ", config.GetDBPath())
		fmt.Println("uploads:      ", config.GetUploadFolder())
		fmt.Println("model:        ", config.GetModelPath())
		fmt.Println("log folder:   ", config.GetLogFolder())
		fmt.Println("log level:    ", config.GetLogLevel())
	}

	if username != "" {
		if err := database.InitDB(config.GetDBPath()); err != nil {
			log.Fatalf("Error initializing database: %v", err)
		}
		defer database.CloseDB()

		userService := service.UserService{}
		if err := userService.ResetPassword(username, password); err != nil {
			log.Fatalf("Error resetting password: %v", err)
		}
		fmt.Printf("Password for %q has been reset\n", username)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "octvision",
		Short: "OCTVision AI retinal scan analysis server",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetVersion())
		},
	})

	var show bool
	var resetUsername string
	var resetPassword string
	settingCmd := &cobra.Command{
		Use:   "setting",
		Short: "Inspect configuration or reset an account password",
		Run: func(cmd *cobra.Command, args []string) {
			runSetting(show, resetUsername, resetPassword)
		},
	}
	settingCmd.Flags().BoolVar(&show, "show", false, "print the effective configuration")
	settingCmd.Flags().StringVar(&resetUsername, "username", "", "account to reset the password for")
	settingCmd.Flags().StringVar(&resetPassword, "password", "", "new password")
	rootCmd.AddCommand(settingCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
