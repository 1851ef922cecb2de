package fantoccini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// newSessionRequest is the `POST /session` request body: the W3C
// "capabilities" shape and the legacy "desiredCapabilities" shape, sent
// together as a single dual-dialect payload per spec.md §4.2 so that one
// request suffices to both create the session and learn which dialect the
// server speaks.
type newSessionRequest struct {
	Capabilities    newSessionCapabilities `json:"capabilities"`
	DesiredCapabilities map[string]interface{} `json:"desiredCapabilities"`
}

type newSessionCapabilities struct {
	AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
}

// newSessionResponse is parsed loosely so we can classify the dialect from
// whichever fields are actually present, rather than failing to unmarshal.
type newSessionResponse struct {
	Value *struct {
		SessionID    string                 `json:"sessionId"`
		Capabilities map[string]interface{} `json:"capabilities"`
	} `json:"value"`
	SessionID    string                 `json:"sessionId"`
	Status       *int                   `json:"status"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// handshake performs the single `POST /session` dialect probe described in
// spec.md §4.2, classifying the response into DialectW3C, DialectLegacy, or
// returning *NotW3C / *NewSessionError when the shape matches neither.
func handshake(ctx context.Context, httpClient *http.Client, endpoint string, capabilities map[string]interface{}) (sessionID string, dialect Dialect, err error) {
	reqBody := newSessionRequest{
		Capabilities:        newSessionCapabilities{AlwaysMatch: capabilities},
		DesiredCapabilities: capabilities,
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, &NewSessionError{Reason: "encoding capabilities", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+"/session", bytes.NewReader(buf))
	if err != nil {
		return "", 0, &NewSessionError{Reason: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", 0, &NewSessionError{Reason: "dispatching request", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &NewSessionError{Reason: "reading response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &NewSessionError{Reason: fmt.Sprintf("server responded %d: %s", resp.StatusCode, string(body))}
	}

	var parsed newSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, &NewSessionError{Reason: "unparseable response", Cause: &NotW3C{Value: body}}
	}

	// W3C shape: {"value": {"sessionId": ..., "capabilities": {...}}}.
	if parsed.Value != nil && parsed.Value.SessionID != "" {
		return parsed.Value.SessionID, DialectW3C, nil
	}
	// Legacy shape: {"sessionId": ..., "status": 0, "value": {...}}.
	if parsed.SessionID != "" {
		return parsed.SessionID, DialectLegacy, nil
	}

	return "", 0, &NewSessionError{Reason: "response matched neither W3C nor legacy shape", Cause: &NotW3C{Value: body}}
}

// sessionCore is the shared state behind every Client clone of one session:
// the task channel, the actor's lifecycle flags, and the cached dialect
// that Clients read without a round trip (the UA override lives in the
// actor and is read through cmdGetUA). Exactly one actor goroutine
// owns the *http.Client and sessionID; everything else is read-only or
// atomic so clones never race.
type sessionCore struct {
	log      logrus.FieldLogger
	endpoint string
	dialect  Dialect

	// mu guards ingress/closedFlag together, so that a submit in progress
	// and the actor's terminal close-and-drain can never race: closing
	// ingress while a send to it is in flight would panic, so both close
	// and send take mu for their whole critical section.
	mu         sync.Mutex
	ingress    chan task
	closedFlag bool

	refs       int64 // atomic refcount of live Client handles
	persistent int64 // atomic bool: 1 once Persist has been submitted
}

// enqueue submits t unless the session is already closed, in which case it
// fails fast with *SessionClosed instead of sending on (or blocking
// forever behind) a channel the actor has torn down.
func (s *sessionCore) enqueue(ctx context.Context, t task) error {
	s.mu.Lock()
	if s.closedFlag {
		s.mu.Unlock()
		return &SessionClosed{}
	}
	defer s.mu.Unlock()
	select {
	case s.ingress <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isClosed reports whether Shutdown has already been processed.
func (s *sessionCore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedFlag
}

// closeSession marks the core closed and closes ingress so the queue pump
// drains whatever it's still holding and exits, instead of buffering
// forever. Safe to call only once, from the actor itself, after it has
// finished processing the terminal Shutdown task.
func (s *sessionCore) closeSession() {
	s.mu.Lock()
	s.closedFlag = true
	close(s.ingress)
	s.mu.Unlock()
}

// newTaskQueue builds an unbounded channel, the Go analogue of Rust's
// tokio::sync::mpsc::UnboundedSender: callers never block on submit, a
// background goroutine buffers anything the actor hasn't drained yet. This
// exists because Go's native chan is always bounded (even "unbuffered" is a
// bound of zero); spec.md §5 requires that submitting a command never
// blocks the caller on queue depth. The pump exits once ingress is closed
// and its buffer is drained, closing egress in turn — it does not run for
// the life of the process.
func newTaskQueue() (ingress chan task, egress <-chan task) {
	in := make(chan task)
	out := make(chan task)

	go func() {
		defer close(out)
		var buf []task
		for {
			if len(buf) == 0 {
				t, ok := <-in
				if !ok {
					return
				}
				buf = append(buf, t)
				continue
			}
			select {
			case t, ok := <-in:
				if !ok {
					// Drain remaining buffer before exiting.
					for _, t := range buf {
						out <- t
					}
					return
				}
				buf = append(buf, t)
			case out <- buf[0]:
				buf = buf[1:]
			}
		}
	}()

	return in, out
}

// startActor launches the goroutine that owns the session's *http.Client
// and sessionID, consuming tasks off the egress side of an unbounded queue
// in strict FIFO order (spec.md §4.3: "sequential dispatch ... no
// preemption"). Once it processes a cmdShutdown, it closes the queue and
// drains whatever was already behind it, failing each with *SessionClosed
// per spec.md §4.3, then exits.
func startActor(core *sessionCore, tasksOut <-chan task, httpClient *http.Client, sessionID string, persistent bool) {
	if persistent {
		atomic.StoreInt64(&core.persistent, 1)
	}
	go func() {
		ua := ""
		for t := range tasksOut {
			switch c := t.cmd.(type) {
			case cmdGetSessionID:
				t.reply <- taskResult{value: mustJSON(sessionID)}
			case cmdSetUA:
				ua = c.UA
				t.reply <- taskResult{value: mustJSON(nil)}
			case cmdGetUA:
				t.reply <- taskResult{value: mustJSON(ua)}
			case cmdPersist:
				atomic.StoreInt64(&core.persistent, 1)
				t.reply <- taskResult{value: mustJSON(nil)}
			case cmdShutdown:
				deleteReq, err := http.NewRequest(http.MethodDelete, sessionPath(core.endpoint, sessionID, ""), nil)
				var result taskResult
				if err != nil {
					result.err = &Lost{Cause: err}
				} else {
					resp, derr := httpClient.Do(deleteReq)
					if derr != nil {
						result.err = &Lost{Cause: derr}
					} else {
						resp.Body.Close()
					}
				}
				t.reply <- result
				core.closeSession()
				for drained := range tasksOut {
					drained.reply <- taskResult{err: &SessionClosed{}}
				}
				return
			case cmdRaw:
				resp, err := dispatchRaw(httpClient, c, ua)
				t.reply <- taskResult{rawResponse: resp, err: err}
			default:
				method, path, body := encodeCommand(t.cmd, core.dialect)
				value, err := dispatchWire(httpClient, core, sessionID, method, path, body, ua)
				t.reply <- taskResult{value: value, err: err}
			}
		}
	}()
}

func dispatchWire(httpClient *http.Client, core *sessionCore, sessionID, method, path string, body interface{}, ua string) (json.RawMessage, error) {
	logCommand(core.log, method, path)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, &InvalidArgument{webdriverError{kind: "invalid argument", Message: err.Error()}}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, sessionPath(core.endpoint, sessionID, path), reader)
	if err != nil {
		return nil, &Lost{Cause: err}
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &Lost{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Lost{Cause: err}
	}

	return decodeResponse(core.dialect, resp.StatusCode, raw)
}

func dispatchRaw(httpClient *http.Client, c cmdRaw, ua string) (*http.Response, error) {
	if c.applyUA && ua != "" {
		c.Request.Header.Set("User-Agent", ua)
	}
	resp, err := httpClient.Do(c.Request)
	if err != nil {
		return nil, &Lost{Cause: err}
	}
	return resp, nil
}

func sessionPath(endpoint, sessionID, suffix string) string {
	base := strings.TrimRight(endpoint, "/") + "/session/" + sessionID
	if suffix == "" {
		return base
	}
	return base + suffix
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// newHTTPClient builds the actor's transport, with a cookie jar: cookies set
// by responses to this client are sent back on its later requests to the
// same host. The raw request choreography (raw.go) does not read this jar;
// it takes the browser's cookies from GetCookies.
func newHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{Jar: jar}, nil
}
