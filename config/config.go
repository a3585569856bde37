// Package config exposes the environment-driven configuration surface of
// octvision: paths, credentials and log level. Values are read from OCTV_*
// environment variables with sensible defaults; nothing is hard-coded.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("OCTV_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("OCTV_DEBUG") == "true"
}

// GetSecretKey returns the session cookie signing key.
func GetSecretKey() string {
	return os.Getenv("OCTV_SECRET_KEY")
}

// GetGroqAPIKey returns the credential for the hosted text-generation API.
func GetGroqAPIKey() string {
	return os.Getenv("OCTV_GROQ_API_KEY")
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("OCTV_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "data"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return filepath.Join(GetDBFolderPath(), GetName()+".db")
}

// GetUploadFolder returns the directory where uploaded scans, heatmaps and
// generated reports are written. Created on demand by the web server.
func GetUploadFolder() string {
	uploadFolder := os.Getenv("OCTV_UPLOAD_FOLDER")
	if uploadFolder == "" {
		uploadFolder = filepath.Join("data", "uploads")
	}
	return uploadFolder
}

// GetModelPath returns the path of the classifier model artifact.
func GetModelPath() string {
	modelPath := os.Getenv("OCTV_MODEL_PATH")
	if modelPath == "" {
		modelPath = filepath.Join("model", "retinal_oct.octm")
	}
	return modelPath
}

func GetListen() string {
	return os.Getenv("OCTV_LISTEN")
}

func GetPort() string {
	port := os.Getenv("OCTV_PORT")
	if port == "" {
		port = "8080"
	}
	return port
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("OCTV_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "log"
	}
	return logFolderPath
}
