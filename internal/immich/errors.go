package immich

import "errors"

// Sentinel errors classifying remote-API failures. Match with errors.Is.
var (
	// ErrAuth is returned for 401/403 responses. It is fatal for the whole
	// run: the key applies to every call, so nothing after it can succeed.
	ErrAuth = errors.New("authentication rejected")

	// ErrNetwork covers transport failures and timeouts. Retryable.
	ErrNetwork = errors.New("network error")

	// ErrServer covers 5xx responses. Retryable with backoff.
	ErrServer = errors.New("server error")

	// ErrRejected covers non-auth 4xx responses. Terminal for the file,
	// never retried.
	ErrRejected = errors.New("request rejected")
)

// Retryable reports whether err is transient and worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}
