// pkg/asli/conditions.go
package asli

import (
	"fmt"
	"strings"
)

// Condition is a named check over an element, polled by Assure and Should.
type Condition struct {
	name  string
	check func(*Element) (bool, error)
}

// NewCondition builds a named element condition.
func NewCondition(name string, check func(*Element) (bool, error)) Condition {
	return Condition{name: name, check: check}
}

func (c Condition) String() string { return c.name }

// Check evaluates the condition once. Errors count as "not yet".
func (c Condition) Check(e *Element) bool {
	if c.check == nil {
		return false
	}
	ok, err := c.check(e)
	return err == nil && ok
}

var (
	// Exist holds once the element is present in the DOM.
	Exist = NewCondition("exist", (*Element).Exists)
	// Visible holds once the element is present and displayed.
	Visible = NewCondition("visible", (*Element).IsVisible)
	// Hidden holds while the element is absent or not displayed.
	Hidden = NewCondition("hidden", (*Element).IsHidden)
)

// HasText holds when the element text contains sub.
func HasText(sub string) Condition {
	return NewCondition(fmt.Sprintf("has text %q", sub), func(e *Element) (bool, error) {
		text, err := e.rawText()
		return strings.Contains(text, sub), err
	})
}

// TextIs holds when the trimmed element text equals text.
func TextIs(text string) Condition {
	return NewCondition(fmt.Sprintf("text is %q", text), func(e *Element) (bool, error) {
		got, err := e.rawText()
		return strings.TrimSpace(got) == text, err
	})
}

// AttributeIs holds when the named attribute equals value.
func AttributeIs(name, value string) Condition {
	return NewCondition(fmt.Sprintf("attribute %s is %q", name, value), func(e *Element) (bool, error) {
		got, ok, err := e.Attribute(name)
		return ok && got == value, err
	})
}

// CollectionCondition is a named check over a collection.
type CollectionCondition struct {
	name  string
	check func(*Collection) (bool, error)
}

func (c CollectionCondition) String() string { return c.name }

// Check evaluates the condition once. Errors count as "not yet".
func (c CollectionCondition) Check(col *Collection) bool {
	ok, err := c.check(col)
	return err == nil && ok
}

// Size holds when the collection has exactly n elements.
func Size(n int) CollectionCondition {
	return CollectionCondition{name: fmt.Sprintf("size is %d", n), check: func(c *Collection) (bool, error) {
		got, err := c.Len()
		return got == n, err
	}}
}

// SizeAtLeast holds when the collection has n or more elements.
func SizeAtLeast(n int) CollectionCondition {
	return CollectionCondition{name: fmt.Sprintf("size is at least %d", n), check: func(c *Collection) (bool, error) {
		got, err := c.Len()
		return got >= n, err
	}}
}

// NotEmpty holds when the collection has at least one element.
var NotEmpty = CollectionCondition{name: "not empty", check: func(c *Collection) (bool, error) {
	got, err := c.Len()
	return got > 0, err
}}
