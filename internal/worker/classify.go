package worker

import "strings"

// permanentPatterns match failures that retrying can never fix: bad
// credentials, malformed or unsupported input, missing resources, oversized
// payloads. Checked first and wins over the retryable set when both match.
var permanentPatterns = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid_api_key",
	"invalid api key",
	"authentication",
	"api key not configured",
	"400",
	"bad request",
	"invalid_request_error",
	"unsupported format",
	"invalid file format",
	"decode",
	"404",
	"not found",
	"413",
	"payload too large",
	"file too large",
	"maximum content size",
}

// retryablePatterns match transient infrastructure failures.
var retryablePatterns = []string{
	"429",
	"rate limit",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network",
	"temporarily unavailable",
	"server error",
	"internal error",
	"500",
	"502",
	"503",
	"504",
}

// Retryable classifies a failure by case-insensitive pattern match over its
// normalized description. Unrecognized errors default to retryable: the
// retry ceiling bounds the damage, whereas dropping a transient failure
// loses work silently.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return true
}
