package fantoccini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	method, path, body := encodeCommand(cmdGoto{URL: "http://example.com"}, DialectW3C)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/url", path)
	assert.Equal(t, map[string]string{"url": "http://example.com"}, body)

	method, path, _ = encodeCommand(cmdGetURL{}, DialectW3C)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/url", path)

	method, path, body = encodeCommand(cmdNewWindow{AsTab: true}, DialectW3C)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/window/new", path)
	assert.Equal(t, map[string]string{"type": "tab"}, body)

	method, path, _ = encodeCommand(cmdFindWithin{Within: WebElement{ID: "e1"}, Locator: ByCSS("a")}, DialectW3C)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/element/e1/element", path)
}

func TestDecodeResponseW3CSuccess(t *testing.T) {
	body := []byte(`{"value":"http://example.com"}`)
	value, err := decodeResponse(DialectW3C, 200, body)
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(value, &s))
	assert.Equal(t, "http://example.com", s)
}

func TestDecodeResponseW3CError(t *testing.T) {
	body := []byte(`{"value":{"error":"no such element","message":"not found"}}`)
	_, err := decodeResponse(DialectW3C, 404, body)
	require.Error(t, err)
	var nse *NoSuchElement
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, "not found", nse.Message)
}

func TestDecodeResponseLegacySuccess(t *testing.T) {
	body := []byte(`{"sessionId":"abc","status":0,"value":42}`)
	value, err := decodeResponse(DialectLegacy, 200, body)
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(value, &n))
	assert.Equal(t, 42, n)
}

func TestDecodeResponseLegacyError(t *testing.T) {
	body := []byte(`{"sessionId":"abc","status":7,"value":{"message":"boom"}}`)
	_, err := decodeResponse(DialectLegacy, 500, body)
	require.Error(t, err)
	var nse *NoSuchElement
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, "boom", nse.Message)
}

func TestDecodeResponseMalformedIsNotW3C(t *testing.T) {
	_, err := decodeResponse(DialectW3C, 200, []byte(`not json at all`))
	require.Error(t, err)
	var nw *NotW3C
	require.ErrorAs(t, err, &nw)
}

func TestFixupElementKeysOutgoingLegacy(t *testing.T) {
	args := []interface{}{
		map[string]interface{}{
			w3cElementKey: "e1",
			"nested": map[string]interface{}{
				w3cElementKey: "e2",
			},
		},
	}
	out := fixupElementKeysOutgoing(args, DialectLegacy)
	top := out[0].(map[string]interface{})
	assert.Equal(t, "e1", top[legacyElementKey])
	assert.NotContains(t, top, w3cElementKey)
	nested := top["nested"].(map[string]interface{})
	assert.Equal(t, "e2", nested[legacyElementKey])
}

func TestFixupElementKeysOutgoingW3CPassthrough(t *testing.T) {
	args := []interface{}{map[string]interface{}{w3cElementKey: "e1"}}
	out := fixupElementKeysOutgoing(args, DialectW3C)
	assert.Equal(t, args, out)
}

func TestParseLookupAcceptsEitherKey(t *testing.T) {
	we, err := parseLookup(json.RawMessage(`{"` + w3cElementKey + `":"e1"}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", we.ID)

	we, err = parseLookup(json.RawMessage(`{"` + legacyElementKey + `":"e2"}`))
	require.NoError(t, err)
	assert.Equal(t, "e2", we.ID)
}

func TestParseLookupAllPropagatesElementError(t *testing.T) {
	_, err := parseLookupAll(json.RawMessage(`[{"bogus":"x"}]`))
	require.Error(t, err)
	var nw *NotW3C
	require.ErrorAs(t, err, &nw)
}
