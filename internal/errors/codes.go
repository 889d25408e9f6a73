package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig        ErrorCode = "invalid_configuration"
	ErrReadConfig           ErrorCode = "read_config_failed"
	ErrInvalidInterval      ErrorCode = "invalid_interval"
	ErrInvalidDailyTime     ErrorCode = "invalid_daily_time"
	ErrInvalidTimezone      ErrorCode = "invalid_timezone"
	ErrInvalidBootstrapDate ErrorCode = "invalid_bootstrap_date"
	ErrInvalidTargetDays    ErrorCode = "invalid_target_days"
	ErrInvalidRange         ErrorCode = "invalid_range"
	ErrInvalidDriver        ErrorCode = "invalid_driver"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Lifecycle errors
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrNotRunning     ErrorCode = "not_running"

	// Application errors
	ErrInitApp   ErrorCode = "init_app_failed"
	ErrMainLoop  ErrorCode = "main_loop_failed"
	ErrCycle     ErrorCode = "cycle_failed"
	ErrHealthBad ErrorCode = "health_check_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrUnavailable:          "Service unavailable",
	ErrInvalidConfig:        "Invalid configuration",
	ErrReadConfig:           "Failed to read configuration",
	ErrInvalidInterval:      "Invalid interval value",
	ErrInvalidDailyTime:     "Invalid daily time",
	ErrInvalidTimezone:      "Invalid timezone",
	ErrInvalidBootstrapDate: "Invalid bootstrap date",
	ErrInvalidTargetDays:    "Invalid target days",
	ErrInvalidRange:         "Invalid range",
	ErrInvalidDriver:        "Unsupported database driver",
	ErrInvalidLogLevel:      "Invalid log level",
	ErrInitFailed:           "Initialization failed",
	ErrShutdownFailed:       "Shutdown failed",
	ErrAlreadyRunning:       "Already running",
	ErrNotRunning:           "Not running",
	ErrInitApp:              "Failed to initialize application",
	ErrMainLoop:             "Error in main loop",
	ErrCycle:                "Rotation cycle failed",
	ErrHealthBad:            "Health check failed",
	ErrOperationFailed:      "Operation failed",
	ErrTimeout:              "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
