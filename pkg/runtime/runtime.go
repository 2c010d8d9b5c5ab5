// Package runtime assembles the robot server from configuration and runs it.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saker-ai/robodog-server/internal/actuator"
	"github.com/saker-ai/robodog-server/internal/actuator/bridge"
	"github.com/saker-ai/robodog-server/internal/camera"
	"github.com/saker-ai/robodog-server/internal/camera/device"
	"github.com/saker-ai/robodog-server/internal/command"
	appconfig "github.com/saker-ai/robodog-server/internal/config"
	"github.com/saker-ai/robodog-server/internal/frame"
	apphttp "github.com/saker-ai/robodog-server/internal/http"
	applogger "github.com/saker-ai/robodog-server/internal/logger"
	"github.com/saker-ai/robodog-server/internal/motion"
	"github.com/saker-ai/robodog-server/internal/protocol"
	"github.com/saker-ai/robodog-server/internal/speech"
	"github.com/saker-ai/robodog-server/internal/stream"
	"github.com/saker-ai/robodog-server/internal/ws"
)

const statusPushInterval = 2 * time.Second

// Options override values from the config file.
type Options struct {
	Mock     *bool
	LogLevel string
}

// Server represents a server.
type Server struct {
	cfg    appconfig.Config
	logger *zap.Logger
	server *http.Server

	frames      *frame.Buffer
	camera      camera.Source
	actuator    actuator.Actuator
	bridge      *bridge.Client
	motion      *motion.Machine
	router      *command.Router
	broadcaster *stream.Broadcaster
	hub         *ws.Handler
	listener    speech.Listener
	closers     []io.Closer

	// baseCtx ends open streams on shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New loads configuration and builds every component. A camera that cannot
// be opened is an error; a speech engine that cannot start is only logged.
func New(ctx context.Context, configPath string, opts Options) (*Server, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load robodog config: %w", err)
	}
	if opts.Mock != nil {
		cfg.Mock = *opts.Mock
	}
	cfg.ApplyMock()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load robodog config: %w", err)
	}
	cfg.Log = applogger.WithLevel(cfg.Log, opts.LogLevel)

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("robodog logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	logger.Info("robodog config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("mock", cfg.Mock),
		zap.String("camera", cfg.Camera.Source),
		zap.String("actuator", cfg.Actuator.Driver),
		zap.String("speech", cfg.Speech.Engine),
	)

	s := &Server{cfg: cfg, logger: logger, frames: frame.NewBuffer()}

	if err := s.buildCamera(); err != nil {
		s.closeAll()
		return nil, err
	}
	s.buildActuator()

	s.motion = motion.New(s.actuator, motion.Options{
		WalkInterval: cfg.Motion.WalkInterval,
		WalkSpeed:    cfg.Motion.WalkSpeed,
	}, logger.Named("motion"))
	s.router = command.NewRouter(s.actuator, s.motion, command.Options{
		HeadSpeed:   cfg.Motion.HeadSpeed,
		SettleDelay: cfg.Motion.SettleDelay,
	}, logger.Named("command"))
	s.broadcaster = stream.NewBroadcaster(s.frames, nil, logger.Named("stream"))
	s.hub = ws.NewHandler(logger.Named("ws"), s.Status, s.router)

	s.motion.OnChange(func(motion.State) { s.hub.BroadcastStatus() })
	s.router.OnDispatch(s.hub.BroadcastCommand)

	s.buildSpeech(ctx)

	router := apphttp.NewRouter(apphttp.Deps{
		Dispatcher: s.router,
		Streamer:   s.broadcaster,
		Status:     s.Status,
		StatusWS:   s.hub.Handle,
	}, logger)
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.server = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}
	return s, nil
}

func (s *Server) buildCamera() error {
	c := s.cfg.Camera
	switch c.Source {
	case camera.SourceDevice:
		dev, err := device.Open(c.Device, c.Width, c.Height, c.FPS, c.Quality, s.logger.Named("camera"))
		if err != nil {
			return fmt.Errorf("camera init: %w", err)
		}
		s.camera = dev
		s.closers = append(s.closers, dev)
	case camera.SourceMJPEG:
		s.camera = camera.NewMJPEG(c.URL, s.logger.Named("camera"))
	default:
		s.camera = camera.NewSynthetic(c.Width, c.Height, c.FPS, c.Quality)
	}
	return nil
}

func (s *Server) buildActuator() {
	a := s.cfg.Actuator
	if a.Driver == "bridge" {
		s.bridge = bridge.NewClient(bridge.Config{
			URL:            a.BridgeURL,
			RequestTimeout: a.RequestTimeout,
			ReconnectMax:   a.ReconnectMax,
		}, s.logger.Named("bridge"))
		s.actuator = s.bridge
		return
	}
	s.actuator = actuator.NewSimulator(s.logger.Named("actuator"), 1)
}

func (s *Server) buildSpeech(ctx context.Context) {
	sc := s.cfg.Speech
	phrases, err := appconfig.LoadPhrases(sc.PhrasesFile, sc.Boost)
	if err != nil {
		s.logger.Warn("phrase list unreadable; using defaults", zap.String("path", sc.PhrasesFile), zap.Error(err))
		phrases = appconfig.BoostedDefaults(sc.Boost)
	}
	listener, err := speech.New(ctx, sc, phrases, s.logger.Named("speech"))
	if err != nil {
		s.logger.Warn("speech disabled", zap.String("engine", sc.Engine), zap.Error(err))
		return
	}
	if c, ok := listener.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	s.listener = listener
}

// Status reports the live state pushed to dashboards.
func (s *Server) Status() protocol.Status {
	reg := s.broadcaster.Registry()
	status := protocol.Status{
		Motion:     s.motion.Snapshot(),
		Viewers:    reg.Count(),
		ViewerList: reg.List(),
		FrameSeq:   s.frames.Seq(),
	}
	if last := s.router.Last(); last.Matched() {
		status.LastCommand = &last
	}
	return status
}

// Run serves until ctx is done or a fatal component fails, then shuts down.
// Hardware is released only after every goroutine that uses it has returned.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		err := listen(s.server, s.cfg, s.logger)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		if err := s.camera.Run(ctx, s.frames); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		return nil
	})

	if s.bridge != nil {
		s.bridge.Connect(ctx)
	}

	if s.listener != nil {
		eg.Go(func() error {
			err := s.listener.Listen(ctx, func(text string) {
				s.router.Dispatch(context.WithoutCancel(ctx), text)
			})
			if err != nil {
				s.logger.Warn("speech listener stopped", zap.Error(err))
			}
			return nil
		})
	}

	eg.Go(func() error {
		ticker := time.NewTicker(statusPushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if s.hub.Count() > 0 {
					s.hub.BroadcastStatus()
				}
			}
		}
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	s.release()
	return err
}

// Addr executes the addr method.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Shutdown stops the HTTP server, waiting for in-flight commands, and then
// stops the walker for good. Hardware stays open until Run returns.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.cancelBase()
	err := ignoreServerClosed(s.server.Shutdown(ctx))
	s.motion.Close()
	return err
}

func (s *Server) release() {
	s.motion.Close()
	if err := s.actuator.Close(); err != nil {
		s.logger.Warn("actuator close failed", zap.Error(err))
	}
	s.closeAll()
	s.logger.Info("robodog hardware released")
}

func (s *Server) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
	s.closers = nil
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
