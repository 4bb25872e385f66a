package utils

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger creates the application logger. APP_ENV=development selects
// the human-readable console encoder.
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
