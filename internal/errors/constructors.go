package errors

// Convenience constructors for common error patterns.

// TransformFailed marks a per-item transform failure. It is carried as a
// task's Err value and never aborts sibling items.
func TransformFailed(key string, cause error) *BuildError {
	return Wrap(cause, CategoryTransform, SeverityError, "item transform failed").
		WithContext("key", key)
}

// ResourceActivationFailed marks a lazy resource that could not activate.
// The owning source degrades to non-incremental operation.
func ResourceActivationFailed(resource string, cause error) *BuildError {
	return Wrap(cause, CategoryResource, SeverityWarning, "resource activation failed").
		WithContext("resource", resource)
}

// WatchFailed marks a filesystem watch that could not be established.
func WatchFailed(path string, cause error) *BuildError {
	return Wrap(cause, CategoryWatch, SeverityWarning, "filesystem watch failed").
		WithContext("path", path)
}

// ConfigNotFound marks a missing configuration file.
func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

// ValidationFailed marks invalid configuration or input.
func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// StoreFailed marks an artifact persistence failure.
func StoreFailed(path string, cause error) *BuildError {
	return Wrap(cause, CategoryStorage, SeverityError, "artifact store failed").
		WithContext("path", path)
}

// NotifyFailed marks a change-notification delivery failure.
func NotifyFailed(subject string, cause error) *BuildError {
	return Wrap(cause, CategoryNotify, SeverityWarning, "change notification failed").
		WithContext("subject", subject)
}
