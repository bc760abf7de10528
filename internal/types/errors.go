package types

type (
	// ConfigurationError reports missing or unusable backup configuration
	ConfigurationError struct {
		Message string
	}

	// ValidationError reports a request that cannot be honoured for the given input
	ValidationError struct {
		Message  string
		NotFound bool
	}
)

var (
	ErrBackupNotConfigured = &ConfigurationError{Message: "backup not configured"}
	ErrBackupNotFound      = &ValidationError{Message: "backup not found", NotFound: true}
	ErrIncompleteBackup    = &ValidationError{Message: "cannot restore from incomplete backup"}
)

func (e *ConfigurationError) Error() string {
	return e.Message
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
