// Package http assembles the public HTTP server of the chat gateway.
package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/service"
	v1 "github.com/spaceboy202105/chatbot-test/internal/transport/http/v1"
	"github.com/spaceboy202105/chatbot-test/internal/transport/ws"
)

// Server is the public HTTP server.
type Server struct {
	echo   *echo.Echo
	logger *slog.Logger
}

// NewServer builds the echo instance with middleware, the REST API under
// cfg.APIPrefix, the WebSocket relay and, when enabled, /metrics.
func NewServer(cfg *config.Config, svc *service.Service, wsServer *ws.Server, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(requestContext())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(observe(collector))

	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}

	api := e.Group(cfg.APIPrefix)
	v1.NewHandler(svc, collector, logger).RegisterRoutes(api)
	if wsServer != nil {
		wsServer.RegisterRoutes(api)
	}

	return &Server{
		echo:   e,
		logger: logger,
	}
}

// Handler exposes the underlying echo instance.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestContext copies the echo request id into the request context.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

// observe records request counts and latency per route template.
func observe(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			collector.ObserveHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
