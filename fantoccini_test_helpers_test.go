package fantoccini

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// mockServer is a minimal in-process WebDriver stand-in used across the
// property tests. It records requests in arrival order (for FIFO/ordering
// assertions) and lets each test install handlers for the paths it cares
// about; everything else 404s.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest

	sessionID string
	dialect   Dialect
	handlers  map[string]func(w http.ResponseWriter, r *http.Request)
}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func newMockServer(dialect Dialect, sessionID string) *mockServer {
	m := &mockServer{
		sessionID: sessionID,
		dialect:   dialect,
		handlers:  map[string]func(http.ResponseWriter, *http.Request){},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.route))
	return m
}

func (m *mockServer) route(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	m.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == "/session" {
		m.writeNewSession(w)
		return
	}

	sessionPrefix := "/session/" + m.sessionID
	if r.Method == http.MethodDelete && r.URL.Path == sessionPrefix {
		m.writeValue(w, 200, json.RawMessage("null"))
		return
	}

	key := r.Method + " " + stripSessionPrefix(r.URL.Path, sessionPrefix)
	if h, ok := m.handlers[key]; ok {
		h(w, r)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func stripSessionPrefix(path, prefix string) string {
	if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
		rest := path[len(prefix):]
		if rest == "" {
			return "/"
		}
		return rest
	}
	return path
}

func (m *mockServer) on(method, path string, fn func(w http.ResponseWriter, r *http.Request)) {
	m.handlers[method+" "+path] = fn
}

func (m *mockServer) writeNewSession(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if m.dialect == DialectLegacy {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": m.sessionID,
			"status":    0,
			"value":     map[string]interface{}{},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{
			"sessionId":    m.sessionID,
			"capabilities": map[string]interface{}{},
		},
	})
}

func (m *mockServer) writeValue(w http.ResponseWriter, status int, value json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if m.dialect == DialectLegacy {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": m.sessionID,
			"status":    0,
			"value":     value,
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
}

func (m *mockServer) recordedRequests() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
