package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type contextKey string

const startedAtKey contextKey = "started_at"

// InvocationID tags each command run with an id and a logger carrying it,
// the way a request id tags an HTTP request.
func InvocationID(logger zerolog.Logger) cli.BeforeFunc {
	return func(c *cli.Context) error {
		invocationID := uuid.New().String()

		ctx := context.WithValue(c.Context, startedAtKey, time.Now())

		loggerWithID := logger.With().Str("invocation_id", invocationID).Logger()
		c.Context = loggerWithID.WithContext(ctx)

		loggerWithID.Debug().
			Strs("args", c.Args().Slice()).
			Msg("command started")
		return nil
	}
}

// Completed logs the end of a command run started by InvocationID.
func Completed(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)
	ev := logger.Debug()
	if start, ok := c.Context.Value(startedAtKey).(time.Time); ok {
		duration := time.Since(start)
		ev = ev.Int64("duration_ms", duration.Milliseconds()).Dur("duration", duration)
	}
	ev.Msg("command completed")
	return nil
}
