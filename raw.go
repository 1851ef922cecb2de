package fantoccini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// rawCookie is the shape this client expects a GetCookies entry to match;
// any other field (path, secure, domain, ...) is ignored, per spec.md §4.5
// step 8 — filtering was already the browser's job.
type rawCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawRequest fetches target the way the browser itself would: carrying
// exactly the cookies in scope for target and, if set, the session's
// User-Agent override, without letting the browser navigate to target
// (which may be arbitrarily large). before, if non-nil, may mutate the
// constructed *http.Request before it is dispatched (extra headers, a
// body, a different method). This is the ten-step choreography of
// spec.md §4.5 ("C5 Raw-request choreography"), matching
// original_source's raw_client_for/with_raw_client_for.
func (c Client) RawRequest(ctx context.Context, method, target string, before func(*http.Request)) (*http.Response, error) {
	old, err := c.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveURL(old, target)
	if err != nil {
		return nil, err
	}
	targetURL, err := url.Parse(resolved)
	if err != nil {
		return nil, &InvalidUrl{Input: resolved, Cause: err}
	}

	decoyURL, err := targetURL.Parse("/please_give_me_your_cookies")
	if err != nil {
		return nil, &InvalidUrl{Input: target, Cause: err}
	}

	if err := c.Goto(ctx, decoyURL.String()); err != nil {
		return nil, err
	}

	raw, err := c.submit(ctx, cmdGetCookies{})
	if err != nil {
		// Known hazard (spec.md §4.5, Open Question 1): we do not attempt
		// to navigate Back here if GetCookies failed, leaving the browser
		// on the decoy URL. The original error is preserved as-is.
		return nil, err
	}

	if backErr := c.Back(ctx); backErr != nil {
		return nil, backErr
	}

	ua, err := c.GetUA(ctx)
	if err != nil {
		return nil, err
	}

	cookies, err := decodeRawCookies(raw)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL.String(), nil)
	if err != nil {
		return nil, &Lost{Cause: err}
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", cookieHeaderValue(cookies))
	}
	if before != nil {
		before(req)
	}

	resultCh := make(chan taskResult, 1)
	t := task{cmd: cmdRaw{Request: req, applyUA: ua != ""}, reply: resultCh}
	if err := c.core.enqueue(ctx, t); err != nil {
		return nil, err
	}
	select {
	case res := <-resultCh:
		return res.rawResponse, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func decodeRawCookies(raw json.RawMessage) ([]rawCookie, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &NotW3C{Value: raw}
	}
	cookies := make([]rawCookie, 0, len(entries))
	for _, e := range entries {
		name, ok := jsonString(e["name"])
		if !ok {
			return nil, &NotW3C{Value: raw}
		}
		value, ok := jsonString(e["value"])
		if !ok {
			return nil, &NotW3C{Value: raw}
		}
		cookies = append(cookies, rawCookie{Name: name, Value: value})
	}
	return cookies, nil
}

// jsonString reports whether raw is present and decodes as a JSON string,
// per spec.md §4.5 step 8: a cookie entry is only valid if both "name" and
// "value" are present and are JSON strings.
func jsonString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// cookieHeaderValue renders cookies as a single RFC 6265 Cookie header
// value: "name=value" pairs joined by "; ".
func cookieHeaderValue(cookies []rawCookie) string {
	pairs := make([]string, len(cookies))
	for i, c := range cookies {
		pairs[i] = (&http.Cookie{Name: c.Name, Value: c.Value}).String()
	}
	return strings.Join(pairs, "; ")
}
