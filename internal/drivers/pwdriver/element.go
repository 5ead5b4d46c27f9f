// internal/drivers/pwdriver/element.go
package pwdriver

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/asli/pkg/remote"
)

type element struct {
	b *Browser
	h playwright.ElementHandle
}

var _ remote.ElementRef = (*element)(nil)

const (
	positionJS = `el => {
	if (!el.isConnected) return null;
	const r = el.getBoundingClientRect();
	return {x: r.left + window.scrollX, y: r.top + window.scrollY};
}`
	attributeJS = `(el, name) => {
	if (!el.isConnected) return null;
	if (name === 'value' && 'value' in el) return {v: String(el.value)};
	const v = el.getAttribute(name);
	if (v === null) return {};
	if (['checked', 'selected', 'disabled', 'hidden', 'readonly', 'required', 'multiple', 'autofocus'].includes(name)) return {v: 'true'};
	return {v: v};
}`
	selectedJS = `el => el.isConnected ? !!(el.checked || el.selected) : null`
	tagJS      = `el => el.isConnected ? el.tagName.toLowerCase() : null`
)

// usable fails once the page is gone.
func (e *element) usable() error {
	_, err := e.b.current()
	return err
}

// evaluate runs fn with the element as its first argument. A null result means
// the element left the document.
func (e *element) evaluate(fn string, arg ...any) (any, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	v, err := e.h.Evaluate(fn, arg...)
	if err != nil {
		return nil, classify(err)
	}
	if v == nil {
		return nil, remote.ErrStaleElement
	}
	return v, nil
}

func (e *element) FindOne(by remote.By) (remote.ElementRef, error) {
	refs, err := e.FindAll(by)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, remote.Wrap("find", &by, remote.ErrNoSuchElement)
	}
	return refs[0], nil
}

func (e *element) FindAll(by remote.By) ([]remote.ElementRef, error) {
	if err := e.usable(); err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	sel, err := Selector(by)
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	if _, err := e.evaluate(`el => el.isConnected || null`); err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	handles, err := e.h.QuerySelectorAll(sel)
	if err != nil {
		return nil, remote.Wrap("find", &by, classify(err))
	}
	return e.b.wrap(handles), nil
}

func (e *element) Position() (remote.Point, error) {
	v, err := e.evaluate(positionJS)
	if err != nil {
		return remote.Point{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return remote.Point{}, fmt.Errorf("unexpected position result %T", v)
	}
	x, _ := toFloat(m["x"])
	y, _ := toFloat(m["y"])
	return remote.Point{X: x, Y: y}, nil
}

func (e *element) Click() error {
	if err := e.usable(); err != nil {
		return err
	}
	return classify(e.h.Click())
}

func (e *element) Hover() error {
	if err := e.usable(); err != nil {
		return err
	}
	return classify(e.h.Hover())
}

func (e *element) SetText(text string) error {
	if err := e.usable(); err != nil {
		return err
	}
	return classify(e.h.Fill(text))
}

func (e *element) Text() (string, error) {
	if err := e.usable(); err != nil {
		return "", err
	}
	s, err := e.h.InnerText()
	if err != nil {
		return "", classify(err)
	}
	return strings.Join(strings.Fields(s), " "), nil
}

func (e *element) IsDisplayed() (bool, error) {
	if err := e.usable(); err != nil {
		return false, err
	}
	v, err := e.h.IsVisible()
	return v, classify(err)
}

func (e *element) Attribute(name string) (string, bool, error) {
	v, err := e.evaluate(attributeJS, name)
	if err != nil {
		return "", false, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return "", false, fmt.Errorf("unexpected attribute result %T", v)
	}
	s, ok := m["v"].(string)
	return s, ok, nil
}

func (e *element) TagName() (string, error) {
	v, err := e.evaluate(tagJS)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *element) IsEnabled() (bool, error) {
	if err := e.usable(); err != nil {
		return false, err
	}
	v, err := e.h.IsEnabled()
	return v, classify(err)
}

func (e *element) IsSelected() (bool, error) {
	v, err := e.evaluate(selectedJS)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
