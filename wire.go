package fantoccini

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Dialect distinguishes the two WebDriver wire formats this client speaks.
// See spec.md §4.2.
type Dialect int

const (
	DialectW3C Dialect = iota
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "w3c"
}

// legacyElementKey and w3cElementKey are the two JSON object keys a
// WebElement reference can be serialized under, per the W3C spec's
// backwards-compatibility note and the legacy JSON-Wire protocol.
const (
	w3cElementKey    = "element-6066-11e4-a52e-4f735466cecf"
	legacyElementKey = "ELEMENT"
)

// encodeCommand translates a Command into an HTTP method, a path relative
// to the session root (e.g. "/url", "/element"), and a body to marshal as
// JSON (nil for bodyless requests). This is the Go realization of
// spec.md §4.1's "Wire codec" component; the endpoint table matches the
// teacher's remote.go one request-builder at a time, generalized to the
// full command set named in spec.md §6.
func encodeCommand(cmd Command, dialect Dialect) (method, path string, body interface{}) {
	switch c := cmd.(type) {
	case cmdGoto:
		return http.MethodPost, "/url", map[string]string{"url": c.URL}
	case cmdGetURL:
		return http.MethodGet, "/url", nil
	case cmdBack:
		return http.MethodPost, "/back", struct{}{}
	case cmdRefresh:
		return http.MethodPost, "/refresh", struct{}{}

	case cmdGetWindow:
		return http.MethodGet, "/window", nil
	case cmdWindows:
		return http.MethodGet, "/window/handles", nil
	case cmdNewWindow:
		typ := "window"
		if c.AsTab {
			typ = "tab"
		}
		return http.MethodPost, "/window/new", map[string]string{"type": typ}
	case cmdSwitchToWindow:
		return http.MethodPost, "/window", map[string]string{"handle": c.Window.ID}
	case cmdCloseWindow:
		return http.MethodDelete, "/window", nil
	case cmdEnterFrame:
		if c.Index == nil {
			return http.MethodPost, "/frame", map[string]interface{}{"id": nil}
		}
		return http.MethodPost, "/frame", map[string]interface{}{"id": *c.Index}
	case cmdEnterParentFrame:
		return http.MethodPost, "/frame/parent", struct{}{}
	case cmdSetRect:
		m := map[string]interface{}{}
		if c.X != nil {
			m["x"] = *c.X
		}
		if c.Y != nil {
			m["y"] = *c.Y
		}
		if c.Width != nil {
			m["width"] = *c.Width
		}
		if c.Height != nil {
			m["height"] = *c.Height
		}
		return http.MethodPost, "/window/rect", m
	case cmdGetRect:
		return http.MethodGet, "/window/rect", nil

	case cmdFind:
		return http.MethodPost, "/element", locatorBody(c.Locator)
	case cmdFindAll:
		return http.MethodPost, "/elements", locatorBody(c.Locator)
	case cmdFindWithin:
		return http.MethodPost, "/element/" + c.Within.ID + "/element", locatorBody(c.Locator)
	case cmdFindAllWithin:
		return http.MethodPost, "/element/" + c.Within.ID + "/elements", locatorBody(c.Locator)
	case cmdActiveElement:
		return http.MethodGet, "/element/active", nil

	case cmdSource:
		return http.MethodGet, "/source", nil
	case cmdExecute:
		return http.MethodPost, "/execute/sync", map[string]interface{}{
			"script": c.Script,
			"args":   fixupElementKeysOutgoing(nonNilArgs(c.Args), dialect),
		}
	case cmdExecuteAsync:
		return http.MethodPost, "/execute/async", map[string]interface{}{
			"script": c.Script,
			"args":   fixupElementKeysOutgoing(nonNilArgs(c.Args), dialect),
		}

	case cmdScreenshot:
		return http.MethodGet, "/screenshot", nil
	case cmdElementScreenshot:
		return http.MethodGet, "/element/" + c.Element.ID + "/screenshot", nil

	case cmdGetCookies:
		return http.MethodGet, "/cookie", nil

	default:
		panic(fmt.Sprintf("fantoccini: unencodable command %T", cmd))
	}
}

func nonNilArgs(args []interface{}) []interface{} {
	if args == nil {
		return []interface{}{}
	}
	return args
}

func locatorBody(l Locator) map[string]string {
	return map[string]string{"using": l.Using, "value": l.Value}
}

// w3cEnvelope and legacyEnvelope mirror the two response shapes a WebDriver
// server can return, per spec.md §4.2's dialect table.
type w3cEnvelope struct {
	Value json.RawMessage `json:"value"`
}

type w3cErrorValue struct {
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Stacktrace string          `json:"stacktrace"`
	Data       json.RawMessage `json:"data"`
}

type legacyEnvelope struct {
	SessionID string          `json:"sessionId"`
	Status    *int            `json:"status"`
	Value     json.RawMessage `json:"value"`
}

// decodeResponse unwraps a raw HTTP response body into the "value" payload,
// or a typed error, according to dialect. A non-2xx status with a body that
// doesn't parse into the expected envelope becomes *NotW3C, never a panic.
func decodeResponse(dialect Dialect, statusCode int, raw []byte) (json.RawMessage, error) {
	if dialect == DialectLegacy {
		return decodeLegacy(statusCode, raw)
	}
	return decodeW3C(statusCode, raw)
}

func decodeW3C(statusCode int, raw []byte) (json.RawMessage, error) {
	var env w3cEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &NotW3C{Value: raw}
	}
	if statusCode >= 200 && statusCode < 300 {
		return env.Value, nil
	}
	var ev w3cErrorValue
	if err := json.Unmarshal(env.Value, &ev); err != nil || ev.Error == "" {
		return nil, &NotW3C{Value: raw}
	}
	return nil, mapErrorName(ev.Error, ev.Message, ev.Data)
}

func decodeLegacy(statusCode int, raw []byte) (json.RawMessage, error) {
	var env legacyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &NotW3C{Value: raw}
	}
	if env.Status == nil {
		return nil, &NotW3C{Value: raw}
	}
	if *env.Status == 0 {
		return env.Value, nil
	}
	name, ok := legacyErrorCodes[*env.Status]
	if !ok {
		name = "unknown error"
	}
	message := stringFromLegacyValue(env.Value)
	return nil, mapErrorName(name, message, env.Value)
}

// stringFromLegacyValue extracts a human-readable message from a legacy
// error value, which is usually `{"message": "..."}` but occasionally a
// bare string.
func stringFromLegacyValue(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// fixupElementKeysOutgoing walks a script-argument tree, turns every
// Element/WebElement value into an element-reference object under the
// dialect's key, and, for the legacy dialect, rewrites the W3C
// element-reference key to the legacy "ELEMENT" key expected by pre-W3C
// servers. On the W3C dialect, other values pass through unchanged.
// Generalizes the teacher's single-level *remoteWE-to-map translation to
// arbitrarily nested object/array trees, per original_source's
// fixup_elements.
func fixupElementKeysOutgoing(args []interface{}, dialect Dialect) []interface{} {
	to := w3cElementKey
	if dialect == DialectLegacy {
		to = legacyElementKey
	}
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = rewriteElementKeys(a, w3cElementKey, to)
	}
	return out
}

// fixupElementKeysIncoming is the inverse of fixupElementKeysOutgoing,
// applied to a script's return value pulled off the wire from a legacy
// server, so callers always see the W3C key regardless of dialect.
func fixupElementKeysIncoming(value interface{}, dialect Dialect) interface{} {
	if dialect != DialectLegacy {
		return value
	}
	return rewriteElementKeys(value, legacyElementKey, w3cElementKey)
}

func rewriteElementKeys(v interface{}, from, to string) interface{} {
	switch t := v.(type) {
	case Element:
		return map[string]interface{}{to: t.ID}
	case WebElement:
		return map[string]interface{}{to: t.ID}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			key := k
			if k == from {
				key = to
			}
			out[key] = rewriteElementKeys(val, from, to)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = rewriteElementKeys(val, from, to)
		}
		return out
	default:
		return v
	}
}

// parseLookup extracts a WebElement id from a single find-element response
// value, accepting either key per spec.md invariant 2 (a server may answer
// in either dialect's shape regardless of the negotiated dialect for the
// session, in practice almost all do not, but this client does not assume).
func parseLookup(value json.RawMessage) (WebElement, error) {
	var m map[string]string
	if err := json.Unmarshal(value, &m); err != nil {
		return WebElement{}, &NotW3C{Value: value}
	}
	if id, ok := m[w3cElementKey]; ok {
		return WebElement{ID: id}, nil
	}
	if id, ok := m[legacyElementKey]; ok {
		return WebElement{ID: id}, nil
	}
	return WebElement{}, &NotW3C{Value: value}
}

// parseLookupAll extracts a slice of WebElements from a find-elements
// response value.
func parseLookupAll(value json.RawMessage) ([]WebElement, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(value, &raws); err != nil {
		return nil, &NotW3C{Value: value}
	}
	elems := make([]WebElement, 0, len(raws))
	for _, r := range raws {
		e, err := parseLookup(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}
