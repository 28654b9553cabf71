package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PacklerError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *PacklerError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *PacklerError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// BucketNotConfigured is returned by deploy when no upload bucket is set.
func BucketNotConfigured() *PacklerError {
	return New(CategoryConfig, SeverityFatal, "cannot deploy assets: no bucket configured").
		WithContext("field", "bucket.name")
}

// Input errors

func EntryPointMissing(entrypoint string) *PacklerError {
	return New(CategoryInput, SeverityError, "entrypoint does not exist").
		WithContext("entrypoint", entrypoint)
}

// External tool errors

func CompilerSpawn(tool string, cause error) *PacklerError {
	return Wrap(cause, CategoryTool, SeverityError, "error spawning "+tool+" call").
		WithContext("tool", tool)
}

func CompilerFailed(tool string, exitCode int, cause error) *PacklerError {
	return Wrap(cause, CategoryTool, SeverityError, tool+" call returned a bad status").
		WithContext("tool", tool).
		WithContext("exit_code", exitCode)
}

func ToolUnavailable(tool, version string, cause error) *PacklerError {
	return Wrap(cause, CategoryTool, SeverityFatal, "could not provision "+tool).
		WithContext("tool", tool).
		WithContext("version", version)
}

// Filesystem errors

func FileSystem(operation, path string, cause error) *PacklerError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "filesystem operation failed").
		WithContext("operation", operation).
		WithContext("path", path)
}

// Manifest errors

func ManifestEncode(cause error) *PacklerError {
	return Wrap(cause, CategorySerialization, SeverityFatal, "could not serialize asset manifest")
}

func ManifestWrite(path string, cause error) *PacklerError {
	return Wrap(cause, CategorySerialization, SeverityFatal, "could not write asset manifest").
		WithContext("path", path)
}

// Upload errors

func UploadFailed(key string, cause error) *PacklerError {
	return WrapRetryable(cause, CategoryUpload, SeverityWarning, "object upload failed").
		WithContext("key", key)
}

// UploadRejected is an upload the store refused for a reason a retry cannot
// change, such as denied access or a missing bucket.
func UploadRejected(key string, cause error) *PacklerError {
	return Wrap(cause, CategoryUpload, SeverityWarning, "object upload rejected").
		WithContext("key", key)
}

func CORSFailed(bucket string, cause error) *PacklerError {
	return Wrap(cause, CategoryUpload, SeverityWarning, "could not set bucket CORS configuration").
		WithContext("bucket", bucket)
}

// Build outcome errors

func PartialFailure(action string, failed int) *PacklerError {
	return New(CategoryPartial, SeverityWarning, action+" completed with failures").
		WithContext("failed", failed)
}

func BuildFailed(stage string, cause error) *PacklerError {
	return Wrap(cause, CategoryBuild, SeverityFatal, "build failed").
		WithContext("stage", stage)
}

// Runtime errors

func OutputLocked(path string, cause error) *PacklerError {
	return Wrap(cause, CategoryLock, SeverityFatal, "another packler instance holds the output lock").
		WithContext("path", path)
}

func NotImplemented(action, component string) *PacklerError {
	return New(CategoryNotImplemented, SeverityError, action+" is not implemented for component "+component).
		WithContext("action", action).
		WithContext("component", component)
}

func InternalError(message string, cause error) *PacklerError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
