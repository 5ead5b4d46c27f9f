// pkg/asli/locator.go
package asli

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/asli/pkg/remote"
)

type locatorKind int

const (
	singleElement locatorKind = iota
	multipleElements
	indexedElement
	slicedElements
	filteredElements
	foundElement
)

// Locator is one immutable resolution step. Single and multiple steps search
// inside a context; the other variants derive from a whole collection step.
type Locator struct {
	kind    locatorKind
	by      remote.By
	context Searchable
	whole   *Locator
	index   int
	span    Range
	pred    Predicate
}

func newSingle(by remote.By, ctx Searchable) *Locator {
	return &Locator{kind: singleElement, by: by, context: ctx}
}

func newMultiple(by remote.By, ctx Searchable) *Locator {
	return &Locator{kind: multipleElements, by: by, context: ctx}
}

func (l *Locator) derive(kind locatorKind) *Locator {
	return &Locator{kind: kind, whole: l}
}

// Selector returns the (strategy, pattern) pair of a single or multiple step.
// Derived steps report the selector of the collection they came from.
func (l *Locator) Selector() remote.By {
	for l.whole != nil {
		l = l.whole
	}
	return l.by
}

// Describe renders the chain from the session root to this step, e.g.
// "Chrome -> [(css selector, li)][1:3]".
func (l *Locator) Describe() string {
	switch l.kind {
	case singleElement:
		return fmt.Sprintf("%s -> %s", l.context.Describe(), l.by)
	case multipleElements:
		return fmt.Sprintf("%s -> [%s]", l.context.Describe(), l.by)
	case indexedElement:
		return fmt.Sprintf("%s[%d]", l.whole.Describe(), l.index)
	case slicedElements:
		return fmt.Sprintf("%s[%s]", l.whole.Describe(), l.span)
	case filteredElements:
		return fmt.Sprintf("%s.filter(%s)", l.whole.Describe(), l.pred)
	case foundElement:
		return fmt.Sprintf("%s.find(%s)", l.whole.Describe(), l.pred)
	}
	return "<invalid locator>"
}

func (l *Locator) String() string { return l.Describe() }

// browser walks the context chain up to the session root.
func (l *Locator) browser() *Session {
	cur := l
	for cur != nil {
		if cur.whole != nil {
			cur = cur.whole
			continue
		}
		switch ctx := cur.context.(type) {
		case *Session:
			return ctx
		case *Element:
			cur = ctx.locator
		case *Collection:
			cur = ctx.locator
		default:
			return nil
		}
	}
	return nil
}

// resolveOne runs a single-element step.
func (l *Locator) resolveOne() (remote.ElementRef, error) {
	switch l.kind {
	case singleElement:
		if err := l.by.Validate(); err != nil {
			return nil, err
		}
		f, err := l.context.finder()
		if err != nil {
			return nil, err
		}
		return f.FindOne(l.by)

	case indexedElement:
		all, err := l.whole.resolveAll()
		if err != nil {
			return nil, err
		}
		if l.index < 0 || l.index >= len(all) {
			return nil, fmt.Errorf("%w: index %d of %s with %d elements",
				ErrIndexOutOfRange, l.index, l.whole.Describe(), len(all))
		}
		return all[l.index], nil

	case foundElement:
		all, err := l.whole.resolveAll()
		if err != nil {
			return nil, err
		}
		for _, el := range all {
			if l.pred.matches(el) {
				return el, nil
			}
		}
		return nil, remote.Wrap("find", nil, fmt.Errorf("%w: nothing in %s matches %s",
			remote.ErrNoSuchElement, l.whole.Describe(), l.pred))
	}
	return nil, fmt.Errorf("locator %s does not resolve to a single element", l.Describe())
}

// resolveAll runs a collection step. It never fails with ErrNoSuchElement.
func (l *Locator) resolveAll() ([]remote.ElementRef, error) {
	switch l.kind {
	case multipleElements:
		if err := l.by.Validate(); err != nil {
			return nil, err
		}
		f, err := l.context.finder()
		if err != nil {
			return nil, err
		}
		return f.FindAll(l.by)

	case slicedElements:
		all, err := l.whole.resolveAll()
		if err != nil {
			return nil, err
		}
		idx := l.span.indices(len(all))
		out := make([]remote.ElementRef, 0, len(idx))
		for _, i := range idx {
			out = append(out, all[i])
		}
		return out, nil

	case filteredElements:
		all, err := l.whole.resolveAll()
		if err != nil {
			return nil, err
		}
		out := make([]remote.ElementRef, 0, len(all))
		for _, el := range all {
			if l.pred.matches(el) {
				out = append(out, el)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("locator %s does not resolve to a collection", l.Describe())
}

// Predicate selects resolved elements in Filter and Find.
type Predicate struct {
	name  string
	match func(remote.ElementRef) bool
}

// Matching builds a named predicate. The name appears in locator descriptions.
func Matching(name string, fn func(remote.ElementRef) bool) Predicate {
	return Predicate{name: name, match: fn}
}

func (p Predicate) String() string {
	if p.name == "" {
		return "predicate"
	}
	return p.name
}

func (p Predicate) matches(el remote.ElementRef) bool {
	return p.match != nil && p.match(el)
}

// WithText matches elements whose text equals text.
func WithText(text string) Predicate {
	return Matching(fmt.Sprintf("text=%q", text), func(el remote.ElementRef) bool {
		got, err := el.Text()
		return err == nil && strings.TrimSpace(got) == text
	})
}

// ContainingText matches elements whose text contains sub.
func ContainingText(sub string) Predicate {
	return Matching(fmt.Sprintf("text~%q", sub), func(el remote.ElementRef) bool {
		got, err := el.Text()
		return err == nil && strings.Contains(got, sub)
	})
}

// WithAttribute matches elements whose attribute name equals value.
func WithAttribute(name, value string) Predicate {
	return Matching(fmt.Sprintf("@%s=%q", name, value), func(el remote.ElementRef) bool {
		got, ok, err := el.Attribute(name)
		return err == nil && ok && got == value
	})
}

// WithTag matches elements by tag name, case-insensitively.
func WithTag(tag string) Predicate {
	return Matching("tag="+tag, func(el remote.ElementRef) bool {
		got, err := el.TagName()
		return err == nil && strings.EqualFold(got, tag)
	})
}

// Displayed matches elements the driver reports as displayed.
func Displayed() Predicate {
	return Matching("displayed", func(el remote.ElementRef) bool {
		ok, err := el.IsDisplayed()
		return err == nil && ok
	})
}
