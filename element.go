package fantoccini

import "context"

// Element pairs a server-assigned WebElement handle with the Client clone
// that found it, so element-scoped operations can be dispatched through
// the same session actor without the caller re-threading a Client
// everywhere. Interaction beyond lookup/screenshot (click, send keys, form
// filling) is out of scope per spec.md's Non-goals; Element only exposes
// what spec.md's command set names.
type Element struct {
	client Client
	WebElement
}

// Find locates the first descendant of e matching loc.
func (e Element) Find(ctx context.Context, loc Locator) (Element, error) {
	raw, err := e.client.submit(ctx, cmdFindWithin{Within: e.WebElement, Locator: loc})
	if err != nil {
		return Element{}, err
	}
	we, err := parseLookup(raw)
	if err != nil {
		return Element{}, err
	}
	return Element{client: e.client, WebElement: we}, nil
}

// FindAll locates every descendant of e matching loc.
func (e Element) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	raw, err := e.client.submit(ctx, cmdFindAllWithin{Within: e.WebElement, Locator: loc})
	if err != nil {
		return nil, err
	}
	wes, err := parseLookupAll(raw)
	if err != nil {
		return nil, err
	}
	elems := make([]Element, len(wes))
	for i, we := range wes {
		elems[i] = Element{client: e.client, WebElement: we}
	}
	return elems, nil
}

// Screenshot captures just this element's rendered box as PNG bytes.
func (e Element) Screenshot(ctx context.Context) ([]byte, error) {
	raw, err := e.client.submit(ctx, cmdElementScreenshot{Element: e.WebElement})
	if err != nil {
		return nil, err
	}
	return decodeScreenshot(raw)
}
