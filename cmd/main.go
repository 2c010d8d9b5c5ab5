package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/pkg/runtime"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to conf.yaml (defaults to conf.yaml under the root dir)",
	EnvVars: []string{"ROBODOG_CONFIG"},
}

var mockFlag = &cli.BoolFlag{
	Name:  "mock",
	Usage: "Use the synthetic camera, simulated actuator and simulated speech",
	Value: true,
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "Override log.level (debug, info, warn, error)",
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "robodog-server",
		Usage: "Stream the robot camera and drive the robot from text or voice commands",
		Flags: []cli.Flag{configFlag, mockFlag, logLevelFlag},
		Action: func(cCtx *cli.Context) error {
			ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := runtime.Options{LogLevel: cCtx.String(logLevelFlag.Name)}
			if cCtx.IsSet(mockFlag.Name) {
				mock := cCtx.Bool(mockFlag.Name)
				opts.Mock = &mock
			}
			srv, err := runtime.New(ctx, cCtx.String(configFlag.Name), opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Error("robodog server exited", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
