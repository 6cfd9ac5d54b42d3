package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// MiddlewareTestSuite 是监控中间件的测试套件
type MiddlewareTestSuite struct {
	suite.Suite
	logger *zap.Logger
}

func (suite *MiddlewareTestSuite) SetupTest() {
	suite.logger = zap.NewNop()

	// 设置 OpenTelemetry 提供者
	otel.SetTracerProvider(nooptrace.NewTracerProvider())
	otel.SetMeterProvider(noop.NewMeterProvider())
}

func (suite *MiddlewareTestSuite) TestMonitoringMiddleware() {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wrapped := MonitoringMiddleware(suite.logger)(handler)

	req := httptest.NewRequest(http.MethodGet, "/signup", nil)
	recorder := httptest.NewRecorder()
	wrapped.ServeHTTP(recorder, req)

	assert.Equal(suite.T(), http.StatusOK, recorder.Code)
	assert.Equal(suite.T(), "OK", recorder.Body.String())
}

func (suite *MiddlewareTestSuite) TestMonitoringMiddleware_ErrorStatus() {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	wrapped := MonitoringMiddleware(suite.logger)(handler)

	req := httptest.NewRequest(http.MethodPost, "/verify", nil)
	recorder := httptest.NewRecorder()
	wrapped.ServeHTTP(recorder, req)

	assert.Equal(suite.T(), http.StatusConflict, recorder.Code)
}

func (suite *MiddlewareTestSuite) TestResponseWriter() {
	recorder := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: recorder, statusCode: http.StatusOK}

	wrapped.WriteHeader(http.StatusNotFound)
	assert.Equal(suite.T(), http.StatusNotFound, wrapped.statusCode)

	// 状态码只写一次
	wrapped.WriteHeader(http.StatusOK)
	assert.Equal(suite.T(), http.StatusNotFound, wrapped.statusCode)

	n, err := wrapped.Write([]byte("test"))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, n)
	assert.Equal(suite.T(), "test", recorder.Body.String())
}

func TestMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareTestSuite))
}
