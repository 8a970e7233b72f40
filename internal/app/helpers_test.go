package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/observability"
)

func observabilityContext(l *zap.Logger) context.Context {
	return observability.WithLogger(context.Background(), l)
}
