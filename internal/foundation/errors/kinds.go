package errors

// Kind names a member of the docstream error taxonomy. Every kind maps to a
// stable code that is safe to expose to clients.
type Kind string

const (
	KindNone                 Kind = ""
	KindConfigValidation     Kind = "ConfigValidationError"
	KindDataValidation       Kind = "DataValidationError"
	KindConcurrentRun        Kind = "ConcurrentRunError"
	KindCapacityExceeded     Kind = "CapacityExceededError"
	KindAITimeout            Kind = "AITimeoutError"
	KindAIRequestFailed      Kind = "AIRequestFailedError"
	KindAIResponseValidation Kind = "AIResponseValidationError"
	KindExportFailed         Kind = "ExportFailedError"
	KindStream               Kind = "StreamError"
	KindAuthentication       Kind = "AuthenticationError"
	KindPlugin               Kind = "PluginError"
)

// kindCodes is initialized once and never mutated.
var kindCodes = map[Kind]string{
	KindConfigValidation:     "DS_001",
	KindDataValidation:       "DS_002",
	KindExportFailed:         "DS_003",
	KindAIRequestFailed:      "DS_004",
	KindStream:               "DS_005",
	KindPlugin:               "DS_007",
	KindAIResponseValidation: "DS_009",
	KindAITimeout:            "DS_011",
	KindAuthentication:       "DS_012",
	KindConcurrentRun:        "DS_013",
	KindCapacityExceeded:     "DS_014",
}

// Code returns the stable error code for the kind, or "" for KindNone.
func (k Kind) Code() string {
	return kindCodes[k]
}

// String returns the taxonomy name.
func (k Kind) String() string {
	return string(k)
}

// ConfigValidationError reports an invalid RunConfig.
func ConfigValidationError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).WithKind(KindConfigValidation).Fatal()
}

// DataValidationError reports a malformed document model.
func DataValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).WithKind(KindDataValidation).Fatal()
}

// ConcurrentRunError reports a second generation on a busy generator.
func ConcurrentRunError(message string) *ErrorBuilder {
	return NewError(CategoryConcurrency, message).WithKind(KindConcurrentRun).Immediate()
}

// CapacityExceededError reports that the hub refused a new client.
func CapacityExceededError(message string) *ErrorBuilder {
	return NewError(CategoryCapacity, message).WithKind(KindCapacityExceeded).RateLimit()
}

// AITimeoutError reports a provider call that outlived its deadline.
func AITimeoutError(message string) *ErrorBuilder {
	return NewError(CategoryAI, message).WithKind(KindAITimeout).Retryable()
}

// AIRequestFailedError reports a provider call that failed after all retries.
func AIRequestFailedError(message string) *ErrorBuilder {
	return NewError(CategoryAI, message).WithKind(KindAIRequestFailed)
}

// AIResponseValidationError reports provider output of the wrong shape.
func AIResponseValidationError(message string) *ErrorBuilder {
	return NewError(CategoryAI, message).WithKind(KindAIResponseValidation)
}

// ExportFailedError reports that no requested export format succeeded.
func ExportFailedError(message string) *ErrorBuilder {
	return NewError(CategoryExport, message).WithKind(KindExportFailed)
}

// StreamError reports a delivery fault for a single client.
func StreamError(message string) *ErrorBuilder {
	return NewError(CategoryStream, message).WithKind(KindStream).Warning()
}

// AuthenticationError reports a missing or wrong token.
func AuthenticationError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).WithKind(KindAuthentication).UserAction()
}

// PluginError reports a failing plugin transformer.
func PluginError(message string) *ErrorBuilder {
	return NewError(CategoryPlugin, message).WithKind(KindPlugin)
}
