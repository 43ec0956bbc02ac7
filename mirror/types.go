package mirror

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Queue names, used as metric labels and in logs.
const (
	QueueV2Stale    = "v2_stale"
	QueueV3Config   = "v3_config"
	QueueV3Stale    = "v3_stale"
	QueueV4NotFound = "v4_not_found"
)
