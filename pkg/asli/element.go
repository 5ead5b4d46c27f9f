// pkg/asli/element.go
package asli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

// Element is a lazy handle to a single remote element. The resolved reference is
// cached and re-resolved when the driver reports it stale.
type Element struct {
	locator *Locator

	cached    remote.ElementRef
	cachedGen uint64
}

func newElement(l *Locator) *Element {
	return &Element{locator: l}
}

// Locator returns the resolution step behind e.
func (e *Element) Locator() *Locator { return e.locator }

// Describe renders the locator chain, e.g. "Chrome -> (css selector, #login)".
func (e *Element) Describe() string { return e.locator.Describe() }

func (e *Element) String() string { return "Element by: " + e.Describe() }

// Browser returns the session at the root of the chain.
func (e *Element) Browser() *Session { return e.locator.browser() }

// Actual returns the resolved element. A cached reference is reused after a cheap
// position probe; any probe failure drops the cache and resolves again.
func (e *Element) Actual() (remote.ElementRef, error) {
	s := e.Browser()
	if e.cached != nil && s != nil && e.cachedGen == s.generation() {
		_, err := e.cached.Position()
		if err == nil {
			return e.cached, nil
		}
		s.log().Debug("Cached element is stale, resolving again.",
			zap.String("locator", e.Describe()), zap.Error(err))
	}
	e.cached = nil

	ref, err := e.locator.resolveOne()
	if err != nil {
		return nil, err
	}
	e.cached = ref
	if s != nil {
		e.cachedGen = s.generation()
	}
	return ref, nil
}

func (e *Element) finder() (remote.Finder, error) {
	return e.Actual()
}

// Element searches for the first descendant matching a CSS selector.
func (e *Element) Element(css string) *Element {
	return e.ElementBy(remote.ByCSS(css))
}

// ElementBy searches for the first descendant matching by.
func (e *Element) ElementBy(by remote.By) *Element {
	return newElement(newSingle(by, e))
}

// Elements searches for all descendants matching a CSS selector.
func (e *Element) Elements(css string) *Collection {
	return e.ElementsBy(remote.ByCSS(css))
}

// ElementsBy searches for all descendants matching by.
func (e *Element) ElementsBy(by remote.By) *Collection {
	return newCollection(newMultiple(by, e))
}

// Parent is the direct parent element.
func (e *Element) Parent() *Element {
	return e.ElementBy(remote.ByXPath(".."))
}

// Ancestors lists every ancestor, optionally narrowed by predicates.
func (e *Element) Ancestors(preds ...Predicate) *Collection {
	return narrow(e.ElementsBy(remote.ByXPath("ancestor::*")), preds)
}

// Neighbours lists the children of the parent, e included, optionally narrowed
// by predicates.
func (e *Element) Neighbours(preds ...Predicate) *Collection {
	return narrow(e.ElementsBy(remote.ByXPath("../*")), preds)
}

func narrow(c *Collection, preds []Predicate) *Collection {
	for _, p := range preds {
		c = c.Filter(p)
	}
	return c
}

// Exists reports whether the element currently resolves. A missing element is
// not an error; SessionNotReady and driver failures are.
func (e *Element) Exists() (bool, error) {
	_, err := e.Actual()
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsVisible reports whether the element exists and is displayed.
func (e *Element) IsVisible() (bool, error) {
	ref, err := e.Actual()
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, err
	}
	return ref.IsDisplayed()
}

// IsHidden is the negation of IsVisible.
func (e *Element) IsHidden() (bool, error) {
	visible, err := e.IsVisible()
	if err != nil {
		return false, err
	}
	return !visible, nil
}

// Click waits for the element to become visible, then clicks it.
func (e *Element) Click() error {
	return e.whenVisible(func(ref remote.ElementRef) error {
		return ref.Click()
	})
}

// Hover waits for the element to become visible, then moves the pointer over it.
func (e *Element) Hover() error {
	return e.whenVisible(func(ref remote.ElementRef) error {
		return ref.Hover()
	})
}

// SetText waits for the element to become visible, clears it and types text.
func (e *Element) SetText(text string) error {
	return e.whenVisible(func(ref remote.ElementRef) error {
		return ref.SetText(text)
	})
}

// Text waits for the element to become visible and returns its text.
func (e *Element) Text() (string, error) {
	var text string
	err := e.whenVisible(func(ref remote.ElementRef) error {
		var err error
		text, err = ref.Text()
		return err
	})
	return text, err
}

// rawText reads the text without waiting for visibility.
func (e *Element) rawText() (string, error) {
	ref, err := e.Actual()
	if err != nil {
		return "", err
	}
	return ref.Text()
}

func (e *Element) whenVisible(op func(remote.ElementRef) error) error {
	s := e.Browser()
	return s.guard(func() error {
		if err := e.assure(Visible, s.Timeout(), wait.Soft); err != nil {
			return err
		}
		ref, err := e.Actual()
		if err != nil {
			return err
		}
		return op(ref)
	})
}

// Attribute returns the named attribute. present is false when it is not set.
func (e *Element) Attribute(name string) (value string, present bool, err error) {
	ref, err := e.Actual()
	if err != nil {
		return "", false, err
	}
	return ref.Attribute(name)
}

// Value is the "value" attribute, empty when unset.
func (e *Element) Value() (string, error) {
	v, _, err := e.Attribute("value")
	return v, err
}

// TagName is the lower-case tag name.
func (e *Element) TagName() (string, error) {
	ref, err := e.Actual()
	if err != nil {
		return "", err
	}
	return ref.TagName()
}

// Enabled reports whether the element accepts interaction.
func (e *Element) Enabled() (bool, error) {
	ref, err := e.Actual()
	if err != nil {
		return false, err
	}
	return ref.IsEnabled()
}

// Disabled is the negation of Enabled. It is false when Enabled fails.
func (e *Element) Disabled() (bool, error) {
	enabled, err := e.Enabled()
	return !enabled && err == nil, err
}

// Selected reports whether a checkbox, radio or option is selected.
func (e *Element) Selected() (bool, error) {
	ref, err := e.Actual()
	if err != nil {
		return false, err
	}
	return ref.IsSelected()
}

// Assure waits up to the session timeout for cond and fails with ErrTimeout.
func (e *Element) Assure(cond Condition) error {
	return e.AssureWithin(cond, e.Browser().Timeout())
}

// AssureWithin waits up to timeout for cond and fails with ErrTimeout.
func (e *Element) AssureWithin(cond Condition, timeout time.Duration) error {
	return e.Browser().guard(func() error {
		return e.assure(cond, timeout, wait.Soft)
	})
}

// Should waits up to the session timeout for cond and fails with ErrAssertionFailed.
func (e *Element) Should(cond Condition) error {
	return e.ShouldWithin(cond, e.Browser().Timeout())
}

// ShouldWithin waits up to timeout for cond and fails with ErrAssertionFailed.
func (e *Element) ShouldWithin(cond Condition, timeout time.Duration) error {
	return e.Browser().guard(func() error {
		return e.assure(cond, timeout, wait.Hard)
	})
}

func (e *Element) assure(cond Condition, timeout time.Duration, sev wait.Severity) error {
	s := e.Browser()
	if _, err := s.Actual(); err != nil {
		return err
	}
	return s.poller().Assure(func() bool {
		return cond.Check(e)
	}, timeout, sev, fmt.Sprintf("%s for %s", cond, e))
}
