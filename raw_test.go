package fantoccini

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRawRequestChoreography exercises spec.md §8 S5: navigate to a decoy
// URL, fetch cookies in scope, navigate back, then issue the caller's
// request carrying those cookies as a single Cookie header.
func TestRawRequestChoreography(t *testing.T) {
	srv := newMockServer(DialectW3C, "sess-raw")
	defer srv.Close()

	var gotURLs []string
	srv.on("GET", "/url", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`"`+srv.URL+`/start"`))
	})
	srv.on("POST", "/url", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotURLs = append(gotURLs, body.URL)
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})
	srv.on("GET", "/cookie", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`[{"name":"s","value":"1"},{"name":"t","value":"2"}]`))
	})
	srv.on("POST", "/back", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})

	var downloadHeader string
	download := newMockServer(DialectW3C, "unused")
	defer download.Close()
	download.on("GET", "/download", func(w http.ResponseWriter, r *http.Request) {
		downloadHeader = r.Header.Get("Cookie")
		w.WriteHeader(200)
	})

	ctx := context.Background()
	client, err := NewClient(ctx, Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Release()

	resp, err := client.RawRequest(ctx, "GET", download.URL+"/download", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, gotURLs, 1)
	assert.Contains(t, gotURLs[0], "/please_give_me_your_cookies")
	assert.Equal(t, "s=1; t=2", downloadHeader)
}

func TestRawRequestMalformedCookieFailsWholeOperation(t *testing.T) {
	srv := newMockServer(DialectW3C, "sess-raw2")
	defer srv.Close()

	srv.on("GET", "/url", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`"`+srv.URL+`/start"`))
	})
	srv.on("POST", "/url", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})
	srv.on("GET", "/cookie", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`[{"name":"s"}]`))
	})
	srv.on("POST", "/back", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})

	ctx := context.Background()
	client, err := NewClient(ctx, Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Release()

	_, err = client.RawRequest(ctx, "GET", srv.URL+"/download", nil)
	require.Error(t, err)
	var nw *NotW3C
	require.ErrorAs(t, err, &nw)
}

func TestRawRequestDoesNotGoBackWhenGetCookiesFails(t *testing.T) {
	srv := newMockServer(DialectW3C, "sess-raw3")
	defer srv.Close()

	backCalled := false
	srv.on("GET", "/url", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`"`+srv.URL+`/start"`))
	})
	srv.on("POST", "/url", func(w http.ResponseWriter, r *http.Request) {
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})
	srv.on("GET", "/cookie", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(500)
		w.Write([]byte(`{"value":{"error":"unknown error","message":"boom"}}`))
	})
	srv.on("POST", "/back", func(w http.ResponseWriter, r *http.Request) {
		backCalled = true
		srv.writeValue(w, 200, json.RawMessage(`null`))
	})

	ctx := context.Background()
	client, err := NewClient(ctx, Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Release()

	_, err = client.RawRequest(ctx, "GET", srv.URL+"/download", nil)
	require.Error(t, err)
	assert.False(t, backCalled)
}
