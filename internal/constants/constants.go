package constants

import "time"

const (
	SessionsKey = "scorepad.sessions.v1"
	ActiveKey   = "scorepad.activeSessionId.v1"
)

const (
	DefaultTTLHours   = 24
	DefaultAccent     = "#6ee7ff"
	DefaultMinPlayers = 2
	DefaultMaxPlayers = 10
	PseudoMaxLen      = 12
)

const (
	DatabaseTimeout = 5 * time.Second
	CommandTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ExportFilePrefix = "scorepad_export_"
)
