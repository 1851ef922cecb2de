package fantoccini

import (
	"encoding/json"
	"fmt"
)

// NewSessionError indicates that the session handshake failed: transport
// error, non-2xx response, malformed capabilities, or a response shape that
// could not be classified into either dialect.
type NewSessionError struct {
	Reason string
	Cause  error
}

func (e *NewSessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("new session: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("new session: %s", e.Reason)
}

func (e *NewSessionError) Unwrap() error { return e.Cause }

// Lost indicates a transport-level failure, or that the session actor has
// already exited.
type Lost struct {
	Cause error
}

func (e *Lost) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session lost: %v", e.Cause)
	}
	return "session lost"
}

func (e *Lost) Unwrap() error { return e.Cause }

// NotW3C is returned when a response was well-formed JSON but did not match
// the shape a command expected. The offending value is preserved verbatim
// for diagnostics.
type NotW3C struct {
	Value json.RawMessage
}

func (e *NotW3C) Error() string {
	return fmt.Sprintf("not a W3C-conformant response: %s", string(e.Value))
}

// webdriverError is shared by every tagged W3C/legacy error name below; it
// carries the server's message and, in Details, the W3C error's "data"
// field or the whole legacy error value. The stacktrace is not kept.
type webdriverError struct {
	kind    string
	Message string
	Details json.RawMessage
}

func (e *webdriverError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.kind, e.Message)
	}
	return e.kind
}

// NoSuchElement is returned when the server could not find the requested
// element.
type NoSuchElement struct{ webdriverError }

// NoSuchWindow is returned when the server could not find the requested
// window handle.
type NoSuchWindow struct{ webdriverError }

// NoSuchFrame is returned when the server could not find the requested
// frame.
type NoSuchFrame struct{ webdriverError }

// StaleElementReference is returned when an element reference is no longer
// attached to the DOM.
type StaleElementReference struct{ webdriverError }

// ElementNotInteractable is returned when an element exists but cannot
// currently receive the requested interaction.
type ElementNotInteractable struct{ webdriverError }

// InvalidSelector is returned when the locator strategy/value could not be
// compiled by the server (e.g. malformed XPath).
type InvalidSelector struct{ webdriverError }

// InvalidArgument is returned when a command argument failed server-side
// validation.
type InvalidArgument struct{ webdriverError }

// JavascriptError is returned when a script passed to Execute/ExecuteAsync
// threw or failed to compile.
type JavascriptError struct{ webdriverError }

// Timeout is returned when a script, page load, or element search exceeded
// its configured timeout.
type Timeout struct{ webdriverError }

// UnexpectedAlertOpen is returned when a command could not proceed because
// a JavaScript alert is blocking the page.
type UnexpectedAlertOpen struct{ webdriverError }

// UnknownError wraps any W3C/legacy error name this client does not have a
// dedicated type for.
type UnknownError struct {
	Name    string
	Message string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown webdriver error %q: %s", e.Name, e.Message)
}

// InvalidUrl is returned when a client-side URL parse or join failed.
type InvalidUrl struct {
	Input string
	Cause error
}

func (e *InvalidUrl) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.Input, e.Cause)
}

func (e *InvalidUrl) Unwrap() error { return e.Cause }

// ImageDecodeError is returned when a screenshot's base64 payload failed to
// decode.
type ImageDecodeError struct {
	Cause error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("image decode error: %v", e.Cause)
}

func (e *ImageDecodeError) Unwrap() error { return e.Cause }

// SessionClosed is returned when a command is submitted after the session
// has been shut down, explicitly or implicitly.
type SessionClosed struct{}

func (e *SessionClosed) Error() string { return "session is closed" }

// webdriver error names, from the W3C WebDriver spec and its legacy
// JSON-Wire numeric-code predecessor. The legacy table is grounded on
// querian-go-selenium/remote.go's errorCodes map.
const (
	errNameNoSuchElement          = "no such element"
	errNameNoSuchFrame            = "no such frame"
	errNameNoSuchWindow           = "no such window"
	errNameStaleElementReference  = "stale element reference"
	errNameElementNotInteractable = "element not interactable"
	errNameElementNotVisible      = "element not visible"
	errNameInvalidSelector        = "invalid selector"
	errNameInvalidArgument        = "invalid argument"
	errNameJavascriptError        = "javascript error"
	errNameTimeout                = "timeout"
	errNameScriptTimeout          = "script timeout"
	errNameUnexpectedAlertOpen    = "unexpected alert open"
)

var legacyErrorCodes = map[int]string{
	7:  errNameNoSuchElement,
	8:  errNameNoSuchFrame,
	9:  "unknown command",
	10: errNameStaleElementReference,
	11: errNameElementNotVisible,
	12: "invalid element state",
	13: "unknown error",
	15: "element is not selectable",
	17: errNameJavascriptError,
	19: "xpath lookup error",
	21: errNameTimeout,
	23: errNameNoSuchWindow,
	24: "invalid cookie domain",
	25: "unable to set cookie",
	26: errNameUnexpectedAlertOpen,
	27: "no alert open",
	28: errNameScriptTimeout,
	29: "invalid element coordinates",
	32: errNameInvalidSelector,
}

// mapErrorName translates a textual WebDriver error name into a typed
// ErrorKind. Names this client has no dedicated type for become
// *UnknownError, never a panic — an unrecognized name is a fact about the
// server, not a programming error.
func mapErrorName(name, message string, details json.RawMessage) error {
	base := webdriverError{kind: name, Message: message, Details: details}
	switch name {
	case errNameNoSuchElement:
		return &NoSuchElement{base}
	case errNameNoSuchWindow:
		return &NoSuchWindow{base}
	case errNameNoSuchFrame:
		return &NoSuchFrame{base}
	case errNameStaleElementReference:
		return &StaleElementReference{base}
	case errNameElementNotInteractable, errNameElementNotVisible:
		return &ElementNotInteractable{base}
	case errNameInvalidSelector:
		return &InvalidSelector{base}
	case errNameInvalidArgument:
		return &InvalidArgument{base}
	case errNameJavascriptError:
		return &JavascriptError{base}
	case errNameTimeout, errNameScriptTimeout:
		return &Timeout{base}
	case errNameUnexpectedAlertOpen:
		return &UnexpectedAlertOpen{base}
	default:
		return &UnknownError{Name: name, Message: message}
	}
}
