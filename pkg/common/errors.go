package common

// ConfigError is returned when a workload configuration is invalid.
type ConfigError struct {
	Message string
}

func (ce ConfigError) Error() string {
	return ce.Message
}

// NewConfigError creates a new instance of ConfigError with the given message.
func NewConfigError(message string) ConfigError {
	return ConfigError{
		Message: message,
	}
}
