package fantoccini

// Locator selector strategies, from spec.md §6. The W3C set is always
// valid; the legacy-only strategies (id, name, class name) are accepted on
// the wire regardless of dialect and simply rejected by a legacy-unaware
// server, matching how the teacher (querian-go-selenium/selenium.go)
// exposes them as plain untyped constants rather than gating them on
// dialect at call time.
const (
	StrategyCSSSelector     = "css selector"
	StrategyLinkText        = "link text"
	StrategyPartialLinkText = "partial link text"
	StrategyTagName         = "tag name"
	StrategyXPath           = "xpath"
	StrategyID              = "id"
	StrategyName            = "name"
	StrategyClassName       = "class name"
)

// Locator identifies how and what to search for when finding elements.
type Locator struct {
	Using string
	Value string
}

// ByCSS builds a CSS selector Locator.
func ByCSS(selector string) Locator { return Locator{StrategyCSSSelector, selector} }

// ByLinkText builds an exact link-text Locator.
func ByLinkText(text string) Locator { return Locator{StrategyLinkText, text} }

// ByPartialLinkText builds a partial link-text Locator.
func ByPartialLinkText(text string) Locator { return Locator{StrategyPartialLinkText, text} }

// ByTagName builds a tag-name Locator.
func ByTagName(tag string) Locator { return Locator{StrategyTagName, tag} }

// ByXPath builds an XPath Locator.
func ByXPath(expr string) Locator { return Locator{StrategyXPath, expr} }

// ByID builds a legacy-dialect id Locator.
func ByID(id string) Locator { return Locator{StrategyID, id} }

// ByName builds a legacy-dialect name Locator.
func ByName(name string) Locator { return Locator{StrategyName, name} }

// ByClassName builds a legacy-dialect class-name Locator.
func ByClassName(class string) Locator { return Locator{StrategyClassName, class} }

// WebElement is an opaque, server-assigned element handle. Its identity is
// just the id string; Element (in element.go) pairs it with a Client clone
// so callers can act on it.
type WebElement struct {
	ID string
}

// WebWindow is an opaque, server-assigned window/tab handle.
type WebWindow struct {
	ID string
}
