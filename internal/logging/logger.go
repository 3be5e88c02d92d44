package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithCommand returns a logger tagged with the command's request id and type
func WithCommand(logger *zap.Logger, requestID, commandType string) *zap.Logger {
	return logger.With(
		zap.String("request_id", requestID),
		zap.String("command", commandType),
	)
}
