// pkg/remote/by.go
package remote

import "fmt"

// Strategy names follow the WebDriver locator strategy vocabulary.
const (
	StrategyCSS   = "css selector"
	StrategyXPath = "xpath"
	StrategyID    = "id"
	StrategyName  = "name"
	StrategyTag   = "tag name"
	StrategyClass = "class name"
)

// By is a (strategy, pattern) pair identifying how to find matching elements.
type By struct {
	Strategy string
	Value    string
}

// String renders the pair as "(strategy, pattern)".
func (b By) String() string {
	return fmt.Sprintf("(%s, %s)", b.Strategy, b.Value)
}

func ByCSS(selector string) By { return By{Strategy: StrategyCSS, Value: selector} }
func ByXPath(expr string) By    { return By{Strategy: StrategyXPath, Value: expr} }
func ByID(id string) By         { return By{Strategy: StrategyID, Value: id} }
func ByName(name string) By     { return By{Strategy: StrategyName, Value: name} }
func ByTag(tag string) By       { return By{Strategy: StrategyTag, Value: tag} }
func ByClass(class string) By   { return By{Strategy: StrategyClass, Value: class} }

// CSS returns an equivalent CSS selector for the strategies that have one.
// XPath has no CSS form and reports ok=false.
func (b By) CSS() (selector string, ok bool) {
	switch b.Strategy {
	case StrategyCSS:
		return b.Value, true
	case StrategyID:
		return "#" + cssEscape(b.Value), true
	case StrategyClass:
		return "." + cssEscape(b.Value), true
	case StrategyName:
		return fmt.Sprintf(`[name=%q]`, b.Value), true
	case StrategyTag:
		return b.Value, true
	}
	return "", false
}

// Validate rejects strategies no driver understands.
func (b By) Validate() error {
	switch b.Strategy {
	case StrategyCSS, StrategyXPath, StrategyID, StrategyName, StrategyTag, StrategyClass:
	default:
		return fmt.Errorf("%w: unknown locator strategy %q", ErrInvalidSelector, b.Strategy)
	}
	if b.Value == "" {
		return fmt.Errorf("%w: empty pattern for %s", ErrInvalidSelector, b.Strategy)
	}
	return nil
}

// cssEscape escapes the characters that would otherwise terminate an
// identifier inside a compound selector.
func cssEscape(s string) string {
	out := make([]rune, 0, len(s))
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_', r > 0x7f:
			out = append(out, r)
		case r >= '0' && r <= '9':
			if i == 0 {
				out = append(out, []rune(fmt.Sprintf(`\%x `, r))...)
				continue
			}
			out = append(out, r)
		default:
			out = append(out, '\\', r)
		}
	}
	return string(out)
}
