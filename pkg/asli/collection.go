// pkg/asli/collection.go
package asli

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

// Collection is a lazy handle to an ordered list of remote elements. It holds no
// cache: every access resolves the chain again.
type Collection struct {
	locator *Locator
}

func newCollection(l *Locator) *Collection {
	return &Collection{locator: l}
}

// Locator returns the resolution step behind c.
func (c *Collection) Locator() *Locator { return c.locator }

// Describe renders the locator chain, e.g. "Chrome -> [(css selector, li)][1:3]".
func (c *Collection) Describe() string { return c.locator.Describe() }

func (c *Collection) String() string { return "Element Collection by: " + c.Describe() }

// Browser returns the session at the root of the chain.
func (c *Collection) Browser() *Session { return c.locator.browser() }

// Actual resolves the collection. A collection that matches nothing is empty,
// not an error.
func (c *Collection) Actual() ([]remote.ElementRef, error) {
	return c.locator.resolveAll()
}

func (c *Collection) finder() (remote.Finder, error) {
	all, err := c.Actual()
	if err != nil {
		return nil, err
	}
	return multiFinder(all), nil
}

// Len resolves the collection and counts it.
func (c *Collection) Len() (int, error) {
	all, err := c.Actual()
	return len(all), err
}

// Index is the i-th element. Bounds are checked when the element resolves.
func (c *Collection) Index(i int) *Element {
	l := c.locator.derive(indexedElement)
	l.index = i
	return newElement(l)
}

// First is Index(0).
func (c *Collection) First() *Element { return c.Index(0) }

// Slice narrows the collection to r.
func (c *Collection) Slice(r Range) *Collection {
	l := c.locator.derive(slicedElements)
	l.span = r
	return newCollection(l)
}

// Filter keeps the elements matching p.
func (c *Collection) Filter(p Predicate) *Collection {
	l := c.locator.derive(filteredElements)
	l.pred = p
	return newCollection(l)
}

// Find is the first element matching p. The filter runs again on every resolution.
func (c *Collection) Find(p Predicate) *Element {
	l := c.locator.derive(foundElement)
	l.pred = p
	return newElement(l)
}

// All resolves the collection once and returns an indexed handle per element.
func (c *Collection) All() ([]*Element, error) {
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	out := make([]*Element, n)
	for i := range out {
		out[i] = c.Index(i)
	}
	return out, nil
}

// Texts returns the text of every element, in order.
func (c *Collection) Texts() ([]string, error) {
	all, err := c.Actual()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, el := range all {
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

// Element searches for the first match inside any element of the collection.
func (c *Collection) Element(css string) *Element {
	return c.ElementBy(remote.ByCSS(css))
}

// ElementBy is Element with an explicit selector.
func (c *Collection) ElementBy(by remote.By) *Element {
	return newElement(newSingle(by, c))
}

// Elements searches for all matches inside every element of the collection.
func (c *Collection) Elements(css string) *Collection {
	return c.ElementsBy(remote.ByCSS(css))
}

// ElementsBy is Elements with an explicit selector.
func (c *Collection) ElementsBy(by remote.By) *Collection {
	return newCollection(newMultiple(by, c))
}

// Assure waits up to the session timeout for cond and fails with ErrTimeout.
func (c *Collection) Assure(cond CollectionCondition) error {
	return c.AssureWithin(cond, c.Browser().Timeout())
}

// AssureWithin waits up to timeout for cond and fails with ErrTimeout.
func (c *Collection) AssureWithin(cond CollectionCondition, timeout time.Duration) error {
	return c.Browser().guard(func() error {
		return c.assure(cond, timeout, wait.Soft)
	})
}

// Should waits up to the session timeout for cond and fails with ErrAssertionFailed.
func (c *Collection) Should(cond CollectionCondition) error {
	return c.ShouldWithin(cond, c.Browser().Timeout())
}

// ShouldWithin waits up to timeout for cond and fails with ErrAssertionFailed.
func (c *Collection) ShouldWithin(cond CollectionCondition, timeout time.Duration) error {
	return c.Browser().guard(func() error {
		return c.assure(cond, timeout, wait.Hard)
	})
}

func (c *Collection) assure(cond CollectionCondition, timeout time.Duration, sev wait.Severity) error {
	s := c.Browser()
	if _, err := s.Actual(); err != nil {
		return err
	}
	return s.poller().Assure(func() bool {
		return cond.Check(c)
	}, timeout, sev, fmt.Sprintf("%s for %s", cond, c))
}
