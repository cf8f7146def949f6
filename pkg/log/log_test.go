package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitLogsLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, InitLogs("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, InitLogs("WARN").GetLevel())
	assert.Equal(t, logrus.InfoLevel, InitLogs("chatty").GetLevel())
}

func TestWithReqIDFromCtx(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithReqIDFromCtx(ctx, logger).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
