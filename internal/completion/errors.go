package completion

import "fmt"

// ConfigError reports missing provider configuration. It fails the request
// but never the process.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// RequestError reports a transcript the gateway cannot send.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// UpstreamError wraps a failure of the provider call itself.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
