package ports

// Logger defines the interface for logging.
//
//go:generate mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	// Info logs an informational message.
	Info(msg string)
	// Warn logs a recoverable problem the operator should know about.
	Warn(msg string)
	// Error logs an error together with its cause chain.
	Error(err error)
}
