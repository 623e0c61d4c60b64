package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger. Development environments get a
// human-readable console encoder, everything else the JSON production config.
func NewLogger(serviceName, environment string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if environment == "development" {
		config = zap.NewDevelopmentConfig()
	}
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// WithOfficer returns a logger with officer field
func WithOfficer(logger *zap.Logger, officer string) *zap.Logger {
	return logger.With(zap.String("officer", officer))
}
