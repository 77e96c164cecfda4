package contract

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by a fetch matches exactly one of these with errors.Is.
var (
	ErrTransport      = errors.New("transport error")
	ErrParse          = errors.New("parse error")
	ErrConfiguration  = errors.New("configuration error")
	ErrUnknownBackend = errors.New("unknown backend")
)

// FetchError describes a failed page retrieval or decode.
type FetchError struct {
	Kind       error  // ErrTransport or ErrParse
	URL        string // Requested resource
	Page       int    // Requested page number
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error  // Underlying cause, may be nil
}

// NewTransportError builds a FetchError of kind ErrTransport.
func NewTransportError(url string, page, statusCode int, cause error) *FetchError {
	return &FetchError{Kind: ErrTransport, URL: url, Page: page, StatusCode: statusCode, Err: cause}
}

// NewParseError builds a FetchError of kind ErrParse.
func NewParseError(url string, page int, cause error) *FetchError {
	return &FetchError{Kind: ErrParse, URL: url, Page: page, Err: cause}
}

// NewConfigurationError builds an error matching ErrConfiguration.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	switch {
	case e.URL != "":
		fmt.Fprintf(&b, " fetching %s", e.URL)
	case e.Page > 0:
		fmt.Fprintf(&b, " on page %d", e.Page)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts fetch and configuration errors to user-friendly messages.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var fetchErr *FetchError
	var certErr *tls.CertificateVerificationError

	switch {
	case errors.Is(err, ErrConfiguration):
		return &UserError{
			Message: "Invalid configuration",
			Hint:    "Pass the repository as <host>/<owner>/<name>, for example: github/chaoss/grimoirelab-perceval",
			Err:     err,
		}
	case errors.Is(err, ErrUnknownBackend):
		return &UserError{
			Message: "Unknown backend",
			Hint:    "Run 'covtrail backends' to list the available backends.",
			Err:     err,
		}
	case errors.As(err, &certErr):
		return &UserError{
			Message: "TLS certificate verification failed",
			Hint:    "If you trust the endpoint, rerun with --no-ssl-verify.",
			Err:     err,
		}
	case errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound:
		return &UserError{
			Message: "Repository not found on Coveralls",
			Hint:    "Check the repository path and that the repository has coverage reports.",
			Err:     err,
		}
	case errors.Is(err, ErrTransport):
		return &UserError{
			Message: "Could not retrieve coverage history",
			Hint:    "Check your network connection and the Coveralls status page.",
			Err:     err,
		}
	case errors.Is(err, ErrParse):
		return &UserError{
			Message: "Unexpected response from Coveralls",
			Err:     err,
		}
	}

	return err
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnknownBackend):
		return 2
	default:
		return 1
	}
}
