package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swanpat/elmscan/logger"
)

const VERSION = "0.1.0"

func main() {

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(quiet bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if quiet {
		level = zapcore.WarnLevel
	}
	return logger.New(level)
}

// dataDir resolves the reference data directory from the environment, with
// a logged default fallback.
func dataDir(log *zap.Logger) string {

	// Try load env
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env found, using local environment")
	}

	dir := os.Getenv("ELMSCAN_DATA")
	if dir == "" {
		log.Warn("No local environment (ELMSCAN_DATA), using default value (./data)")
		dir = "./data"
	}

	return dir
}
