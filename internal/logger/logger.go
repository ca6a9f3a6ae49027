package logger

import (
	"os"

	"go.uber.org/zap"
)

// New builds the service logger. LOG_LEVEL=debug switches to the development
// config; everything else gets the JSON production encoder.
func New() (*zap.Logger, error) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
