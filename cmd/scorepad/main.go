package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"scorepad/internal/cli"
	"scorepad/internal/constants"
	fxmodules "scorepad/internal/fx"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.StopTimeout(constants.ShutdownTimeout),
		fx.Invoke(runCLI),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "scorepad:", err)
		os.Exit(1)
	}
	app.Run()
}

func runCLI(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	app *cli.App,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				runCtx, cancel := context.WithTimeout(context.Background(), constants.CommandTimeout)
				defer cancel()

				code := 0
				if err := app.Run(runCtx, os.Args); err != nil {
					logger.Debug().Err(err).Msg("command failed")
					fmt.Fprintln(os.Stderr, "scorepad:", err)
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error().Err(err).Msg("shutdown failed")
					os.Exit(code)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}
