package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/command"
	"github.com/saker-ai/robodog-server/internal/protocol"
	"github.com/saker-ai/robodog-server/webassets"
)

// Dispatcher runs a text command.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) command.Result
}

// Streamer serves the live MJPEG stream to one viewer.
type Streamer interface {
	Serve(ctx context.Context, w http.ResponseWriter, remoteAddr string) error
}

// Deps holds what the HTTP surface needs from the runtime.
type Deps struct {
	Dispatcher Dispatcher
	Streamer   Streamer
	Status     func() protocol.Status
	StatusWS   http.HandlerFunc
}

// NewRouter executes the newRouter function.
func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	indexHTML, err := webassets.IndexHTML()
	if err != nil && logger != nil {
		logger.Warn("missing embedded control panel", zap.Error(err))
	}
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/index.html")
	})
	router.GET("/index.html", func(c *gin.Context) {
		if indexHTML == nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	if deps.Streamer != nil {
		router.GET("/stream.mjpg", func(c *gin.Context) {
			_ = deps.Streamer.Serve(c.Request.Context(), c.Writer, c.ClientIP())
		})
	}

	if deps.Dispatcher != nil {
		handle := processCommand(deps.Dispatcher, logger)
		router.POST("/process_command", handle)
		router.POST("/zoom", handle)
		commands := command.Commands()
		router.GET("/commands", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"commands": commands})
		})
	}

	if deps.Status != nil {
		router.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Status())
		})
	}

	if deps.StatusWS != nil {
		router.GET("/ws/status", func(c *gin.Context) {
			deps.StatusWS(c.Writer, c.Request)
		})
	}

	router.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	return router
}

// processCommand answers 204 once every matched intent has run. A missing
// or malformed body is a 400 and reaches no actuator.
func processCommand(d Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req protocol.CommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if errors.Is(err, io.EOF) {
				c.String(http.StatusBadRequest, "empty body")
				return
			}
			c.String(http.StatusBadRequest, "invalid json")
			return
		}
		if req.Text == nil {
			c.String(http.StatusBadRequest, `missing "text"`)
			return
		}
		// The client hanging up must not cut a command sequence short.
		res := d.Dispatch(context.WithoutCancel(c.Request.Context()), *req.Text)
		if logger != nil && res.Matched() {
			logger.Debug("command processed",
				zap.Strings("intents", res.Intents),
				zap.Strings("failed", res.Failed),
			)
		}
		c.Status(http.StatusNoContent)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
