package fantoccini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Client is a cloneable handle onto a browser session (spec.md §4.4 "C4
// Handle"). Every clone shares the same underlying actor and task queue;
// cloning only bumps a refcount, it does not start a new session. The zero
// value is not usable — construct one with NewClient.
type Client struct {
	core *sessionCore
}

// Config describes how to reach a WebDriver endpoint and start a session.
// See SPEC_FULL.md §3 "Configuration".
type Config struct {
	Endpoint     string
	Capabilities map[string]interface{}
	UserAgent    string
	Persistent   bool
	Logger       logrus.FieldLogger
}

// NewClient performs the dialect-probe handshake against cfg.Endpoint and
// starts the session actor, returning a Client handle with a refcount of
// one. Callers own that reference and must eventually call Release or
// Close.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	httpClient, err := newHTTPClient()
	if err != nil {
		return Client{}, &NewSessionError{Reason: "building http client", Cause: err}
	}

	sessionID, dialect, err := handshake(ctx, httpClient, cfg.Endpoint, cfg.Capabilities)
	if err != nil {
		return Client{}, err
	}

	log := cfg.Logger
	if log == nil {
		log = defaultLogger
	}
	log = log.WithField("session_id", sessionID).WithField("dialect", dialect.String())

	ingress, egress := newTaskQueue()
	core := &sessionCore{
		ingress:  ingress,
		log:      log,
		endpoint: cfg.Endpoint,
		dialect:  dialect,
		refs:     1,
	}
	startActor(core, egress, httpClient, sessionID, cfg.Persistent)

	if cfg.UserAgent != "" {
		c := Client{core: core}
		if _, err := c.submit(ctx, cmdSetUA{UA: cfg.UserAgent}); err != nil {
			return Client{}, err
		}
	}

	return Client{core: core}, nil
}

// submit enqueues cmd and waits for its result, honoring ctx cancellation
// on the *waiting* side only: if ctx is done first, submit returns ctx's
// error but the actor still runs the command to completion and discards
// the reply, per spec.md §5.
func (c Client) submit(ctx context.Context, cmd Command) (json.RawMessage, error) {
	reply := make(chan taskResult, 1)
	t := task{cmd: cmd, reply: reply}

	if err := c.core.enqueue(ctx, t); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clone returns a new Client handle sharing this session, bumping the
// refcount. Each clone must eventually be Release'd.
func (c Client) Clone() Client {
	atomic.AddInt64(&c.core.refs, 1)
	return Client{core: c.core}
}

// Release drops this handle's reference. When the last reference to a
// non-persistent session is released, the session is shut down
// asynchronously. Go has no deterministic destructor (unlike the Rust
// client this is modeled on, which shuts the session down when its last
// handle is Dropped), so callers must call Release explicitly instead of
// relying on garbage collection; we deliberately do not use
// runtime.SetFinalizer here; see DESIGN.md.
func (c Client) Release() {
	if atomic.AddInt64(&c.core.refs, -1) == 0 && atomic.LoadInt64(&c.core.persistent) == 0 {
		go func() {
			_, _ = c.submit(context.Background(), cmdShutdown{})
		}()
	}
}

// Persist marks the session as persistent: releasing the last handle will
// no longer shut it down. Matches spec.md §4.3's "persist" control command.
func (c Client) Persist(ctx context.Context) error {
	_, err := c.submit(ctx, cmdPersist{})
	return err
}

// Close submits a shutdown regardless of persist state or refcount,
// unless the session is already closed, and is idempotent: calling it on
// an already-closed session
// returns nil, not an error. This matches spec.md §4.6's explicit
// idempotency requirement.
func (c Client) Close(ctx context.Context) error {
	if c.core.isClosed() {
		return nil
	}
	_, err := c.submit(ctx, cmdShutdown{})
	if _, ok := err.(*SessionClosed); ok {
		return nil
	}
	return err
}

// SessionID returns the server-assigned session identifier.
func (c Client) SessionID(ctx context.Context) (string, error) {
	raw, err := c.submit(ctx, cmdGetSessionID{})
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", &NotW3C{Value: raw}
	}
	return id, nil
}

// SetUA overrides the User-Agent header sent with every subsequent wire
// request on this session, including the raw-request choreography.
func (c Client) SetUA(ctx context.Context, ua string) error {
	_, err := c.submit(ctx, cmdSetUA{UA: ua})
	return err
}

// GetUA returns the currently configured User-Agent override, if any.
func (c Client) GetUA(ctx context.Context) (string, error) {
	raw, err := c.submit(ctx, cmdGetUA{})
	if err != nil {
		return "", err
	}
	var ua string
	if err := json.Unmarshal(raw, &ua); err != nil {
		return "", &NotW3C{Value: raw}
	}
	return ua, nil
}

// Goto resolves target against the current browser URL (about:blank if
// the session has no current URL yet) using standard URL join semantics,
// then navigates the current top-level browsing context there. Per
// spec.md §6 "URL handling" and testable property §8(7), Goto("")
// resolves to about:blank on a fresh session.
func (c Client) Goto(ctx context.Context, target string) error {
	base, err := c.CurrentURL(ctx)
	if err != nil {
		return err
	}
	resolved, err := resolveURL(base, target)
	if err != nil {
		return err
	}
	_, err = c.submit(ctx, cmdGoto{URL: resolved})
	return err
}

// CurrentURL returns the URL of the current top-level browsing context,
// substituting "about:blank" for a session that hasn't navigated anywhere
// yet (an empty string from the wire), following original_source's
// current_url_ helper.
func (c Client) CurrentURL(ctx context.Context) (string, error) {
	raw, err := c.submit(ctx, cmdGetURL{})
	if err != nil {
		return "", err
	}
	var u string
	if err := json.Unmarshal(raw, &u); err != nil {
		return "", &NotW3C{Value: raw}
	}
	if u == "" {
		return "about:blank", nil
	}
	return u, nil
}

// resolveURL joins target against base per standard URL reference
// resolution (RFC 3986 §5), matching original_source's `base.join(&url)`.
func resolveURL(base, target string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", &InvalidUrl{Input: base, Cause: err}
	}
	resolved, err := baseURL.Parse(target)
	if err != nil {
		return "", &InvalidUrl{Input: target, Cause: err}
	}
	return resolved.String(), nil
}

// Back navigates the session one entry back in its history.
func (c Client) Back(ctx context.Context) error {
	_, err := c.submit(ctx, cmdBack{})
	return err
}

// Refresh reloads the current page.
func (c Client) Refresh(ctx context.Context) error {
	_, err := c.submit(ctx, cmdRefresh{})
	return err
}

// Window returns the handle of the current window.
func (c Client) Window(ctx context.Context) (WebWindow, error) {
	raw, err := c.submit(ctx, cmdGetWindow{})
	if err != nil {
		return WebWindow{}, err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return WebWindow{}, &NotW3C{Value: raw}
	}
	return WebWindow{ID: id}, nil
}

// Windows returns every open window handle.
func (c Client) Windows(ctx context.Context) ([]WebWindow, error) {
	raw, err := c.submit(ctx, cmdWindows{})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, &NotW3C{Value: raw}
	}
	out := make([]WebWindow, len(ids))
	for i, id := range ids {
		out[i] = WebWindow{ID: id}
	}
	return out, nil
}

// NewWindow opens a new top-level browsing context, a tab if asTab is
// true, a window otherwise, and returns its handle.
func (c Client) NewWindow(ctx context.Context, asTab bool) (WebWindow, error) {
	raw, err := c.submit(ctx, cmdNewWindow{AsTab: asTab})
	if err != nil {
		return WebWindow{}, err
	}
	var v struct {
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return WebWindow{}, &NotW3C{Value: raw}
	}
	return WebWindow{ID: v.Handle}, nil
}

// SwitchToWindow makes w the current window.
func (c Client) SwitchToWindow(ctx context.Context, w WebWindow) error {
	_, err := c.submit(ctx, cmdSwitchToWindow{Window: w})
	return err
}

// CloseWindow closes the current window.
func (c Client) CloseWindow(ctx context.Context) error {
	_, err := c.submit(ctx, cmdCloseWindow{})
	return err
}

// EnterFrame switches the session into the frame at index (nil selects the
// page's single default content frame). Consumes and returns Client by
// value, mirroring the self-consuming chaining idiom of the Rust client
// this is modeled on (spec.md §4.4, §9): the returned Client is the same
// handle, scoped to the new frame context.
func (c Client) EnterFrame(ctx context.Context, index *uint16) (Client, error) {
	_, err := c.submit(ctx, cmdEnterFrame{Index: index})
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// EnterParentFrame switches the session into the parent of the current
// frame.
func (c Client) EnterParentFrame(ctx context.Context) (Client, error) {
	_, err := c.submit(ctx, cmdEnterParentFrame{})
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// Rect is a window position and size, per spec.md §3's window-rect type.
type Rect struct {
	X, Y, Width, Height int
}

// SetWindowRect sets the current window's position and size in one call.
func (c Client) SetWindowRect(ctx context.Context, r Rect) error {
	_, err := c.submit(ctx, cmdSetRect{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height})
	return err
}

// GetWindowRect returns the current window's position and size.
func (c Client) GetWindowRect(ctx context.Context) (Rect, error) {
	raw, err := c.submit(ctx, cmdGetRect{})
	if err != nil {
		return Rect{}, err
	}
	var r Rect
	if err := json.Unmarshal(raw, &r); err != nil {
		return Rect{}, &NotW3C{Value: raw}
	}
	return r, nil
}

// SetWindowSize is a convenience over SetWindowRect that leaves position
// untouched, following original_source's set_window_size helper (not named
// in spec.md's distilled command set, supplemented per SPEC_FULL.md §5).
func (c Client) SetWindowSize(ctx context.Context, width, height int) error {
	_, err := c.submit(ctx, cmdSetRect{Width: &width, Height: &height})
	return err
}

// SetWindowPosition is a convenience over SetWindowRect that leaves size
// untouched.
func (c Client) SetWindowPosition(ctx context.Context, x, y int) error {
	_, err := c.submit(ctx, cmdSetRect{X: &x, Y: &y})
	return err
}

// Find locates the first element matching loc within the current context.
func (c Client) Find(ctx context.Context, loc Locator) (Element, error) {
	raw, err := c.submit(ctx, cmdFind{Locator: loc})
	if err != nil {
		return Element{}, err
	}
	we, err := parseLookup(raw)
	if err != nil {
		return Element{}, err
	}
	return Element{client: c, WebElement: we}, nil
}

// FindAll locates every element matching loc within the current context.
func (c Client) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	raw, err := c.submit(ctx, cmdFindAll{Locator: loc})
	if err != nil {
		return nil, err
	}
	wes, err := parseLookupAll(raw)
	if err != nil {
		return nil, err
	}
	elems := make([]Element, len(wes))
	for i, we := range wes {
		elems[i] = Element{client: c, WebElement: we}
	}
	return elems, nil
}

// ActiveElement returns the element currently focused in the page.
func (c Client) ActiveElement(ctx context.Context) (Element, error) {
	raw, err := c.submit(ctx, cmdActiveElement{})
	if err != nil {
		return Element{}, err
	}
	we, err := parseLookup(raw)
	if err != nil {
		return Element{}, err
	}
	return Element{client: c, WebElement: we}, nil
}

// Source returns the current page's serialized HTML.
func (c Client) Source(ctx context.Context) (string, error) {
	raw, err := c.submit(ctx, cmdSource{})
	if err != nil {
		return "", err
	}
	var src string
	if err := json.Unmarshal(raw, &src); err != nil {
		return "", &NotW3C{Value: raw}
	}
	return src, nil
}

// Execute runs script synchronously in the page, passing args (which may
// contain Element/WebElement values understood by both dialects), and
// decodes the result into out.
func (c Client) Execute(ctx context.Context, script string, args []interface{}, out interface{}) error {
	raw, err := c.submit(ctx, cmdExecute{Script: script, Args: args})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeExecuteResult(raw, c.core.dialect, out)
}

// ExecuteAsync runs script asynchronously: the script receives an extra
// trailing callback argument and the command completes when that callback
// is invoked.
func (c Client) ExecuteAsync(ctx context.Context, script string, args []interface{}, out interface{}) error {
	raw, err := c.submit(ctx, cmdExecuteAsync{Script: script, Args: args})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeExecuteResult(raw, c.core.dialect, out)
}

// decodeExecuteResult unmarshals a script's return value into out, first
// rewriting any legacy "ELEMENT" element keys to the W3C key so callers
// never need to branch on dialect to read an element reference back out of
// a script result, mirroring fixupElementKeysOutgoing on the way in.
func decodeExecuteResult(raw json.RawMessage, dialect Dialect, out interface{}) error {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return &NotW3C{Value: raw}
	}
	fixed, err := json.Marshal(fixupElementKeysIncoming(generic, dialect))
	if err != nil {
		return &NotW3C{Value: raw}
	}
	if err := json.Unmarshal(fixed, out); err != nil {
		return &NotW3C{Value: raw}
	}
	return nil
}

// Screenshot captures the current page as PNG-encoded bytes.
func (c Client) Screenshot(ctx context.Context) ([]byte, error) {
	raw, err := c.submit(ctx, cmdScreenshot{})
	if err != nil {
		return nil, err
	}
	return decodeScreenshot(raw)
}

func decodeScreenshot(raw json.RawMessage) ([]byte, error) {
	var b64 string
	if err := json.Unmarshal(raw, &b64); err != nil {
		return nil, &NotW3C{Value: raw}
	}
	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &ImageDecodeError{Cause: err}
	}
	return img, nil
}

// WaitForNavigation blocks until the current document's readyState
// reaches "complete", polling via Execute, following original_source's
// wait_for_navigation helper (supplemented per SPEC_FULL.md §5; not named
// in spec.md's distilled command set, since it composes Execute rather
// than adding a new wire command).
func (c Client) WaitForNavigation(ctx context.Context) error {
	for {
		var state string
		if err := c.Execute(ctx, "return document.readyState", nil, &state); err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// WaitForFind retries Find until it succeeds, ctx is cancelled, or a
// non-NoSuchElement error occurs, matching spec.md §8 S7's "wait_for_find
// retry" property.
func (c Client) WaitForFind(ctx context.Context, loc Locator) (Element, error) {
	for {
		elem, err := c.Find(ctx, loc)
		if err == nil {
			return elem, nil
		}
		var nse *NoSuchElement
		if !isNoSuchElement(err, &nse) {
			return Element{}, err
		}
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		default:
		}
	}
}

func isNoSuchElement(err error, target **NoSuchElement) bool {
	nse, ok := err.(*NoSuchElement)
	if ok {
		*target = nse
	}
	return ok
}
