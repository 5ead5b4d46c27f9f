// internal/drivers/static/element.go
package static

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// element is a node of one page generation.
type element struct {
	b    *Browser
	node *html.Node
	gen  uint64
}

var _ remote.ElementRef = (*element)(nil)

// Tags that never render.
var invisibleTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "title": true,
	"meta": true, "link": true, "noscript": true, "base": true,
}

// Attributes reported as "true" when present, following WebDriver.
var booleanAttrs = map[string]bool{
	"checked": true, "selected": true, "disabled": true, "hidden": true,
	"readonly": true, "required": true, "multiple": true, "autofocus": true,
}

func (e *element) FindOne(by remote.By) (remote.ElementRef, error) {
	if err := e.b.live(e.gen); err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return findOne(e.b, e.node, e.gen, by)
}

func (e *element) FindAll(by remote.By) ([]remote.ElementRef, error) {
	if err := e.b.live(e.gen); err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return findAll(e.b, e.node, e.gen, by)
}

func (e *element) tag() string { return strings.ToLower(e.node.Data) }

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *element) inputType() string {
	t, _ := e.attr("type")
	return strings.ToLower(t)
}

// Text is the whitespace-collapsed text content.
func (e *element) Text() (string, error) {
	if err := e.b.live(e.gen); err != nil {
		return "", err
	}
	if !e.displayed() {
		return "", nil
	}
	return strings.Join(strings.Fields(goquery.NewDocumentFromNode(e.node).Text()), " "), nil
}

func (e *element) IsDisplayed() (bool, error) {
	if err := e.b.live(e.gen); err != nil {
		return false, err
	}
	return e.displayed(), nil
}

func (e *element) displayed() bool {
	if e.tag() == "input" && e.inputType() == "hidden" {
		return false
	}
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if invisibleTags[strings.ToLower(n.Data)] {
			return false
		}
		if _, ok := attrOf(n, "hidden"); ok {
			return false
		}
		if style, ok := attrOf(n, "style"); ok && hidesByStyle(style) {
			return false
		}
	}
	return true
}

func hidesByStyle(style string) bool {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden")
}

// Position is the document-order index of the node. Pages have no layout.
func (e *element) Position() (remote.Point, error) {
	if err := e.b.live(e.gen); err != nil {
		return remote.Point{}, err
	}
	root := e.node
	for root.Parent != nil {
		root = root.Parent
	}
	idx := 0
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n == e.node {
			return true
		}
		if n.Type == html.ElementNode {
			idx++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return remote.Point{Y: float64(idx)}, nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	if err := e.b.live(e.gen); err != nil {
		return "", false, err
	}
	name = strings.ToLower(name)
	if name == "value" && e.tag() == "textarea" {
		return htmlquery.InnerText(e.node), true, nil
	}
	v, ok := e.attr(name)
	if !ok {
		return "", false, nil
	}
	if booleanAttrs[name] {
		return "true", true, nil
	}
	return v, true, nil
}

func (e *element) TagName() (string, error) {
	if err := e.b.live(e.gen); err != nil {
		return "", err
	}
	return e.tag(), nil
}

func (e *element) IsEnabled() (bool, error) {
	if err := e.b.live(e.gen); err != nil {
		return false, err
	}
	return e.enabled(), nil
}

func (e *element) enabled() bool {
	if _, ok := e.attr("disabled"); ok {
		return false
	}
	for n := e.node.Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "fieldset") {
			if _, ok := attrOf(n, "disabled"); ok {
				return false
			}
		}
	}
	return true
}

func (e *element) IsSelected() (bool, error) {
	if err := e.b.live(e.gen); err != nil {
		return false, err
	}
	_, checked := e.attr("checked")
	_, selected := e.attr("selected")
	return checked || selected, nil
}

// Hover has no observable effect without scripts.
func (e *element) Hover() error {
	return e.b.live(e.gen)
}

// SetText replaces the value of an input or the content of a textarea.
func (e *element) SetText(text string) error {
	if err := e.b.live(e.gen); err != nil {
		return err
	}
	if !e.enabled() {
		return fmt.Errorf("element <%s> is disabled", e.tag())
	}
	if _, ro := e.attr("readonly"); ro {
		return fmt.Errorf("element <%s> is read-only", e.tag())
	}

	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	switch e.tag() {
	case "textarea":
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	case "input":
		setAttr(e.node, "value", text)
	default:
		if _, ok := e.attr("contenteditable"); !ok {
			return fmt.Errorf("element <%s> does not accept text", e.tag())
		}
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return nil
}

// Click follows links, toggles checkboxes and radios, and submits forms.
func (e *element) Click() error {
	if err := e.b.live(e.gen); err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	tag, typ := e.tag(), e.inputType()
	if link := e.closest("a"); link != nil {
		href, _ := attrOf(link, "href")
		if href != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			return e.b.Navigate(href)
		}
	}

	isSubmit := (tag == "button" && (typ == "submit" || typ == "")) ||
		(tag == "input" && (typ == "submit" || typ == "image"))
	if isSubmit {
		if form := e.form(); form != nil {
			return e.b.submit(form, e.node)
		}
		return nil
	}

	if tag == "input" {
		switch typ {
		case "checkbox":
			e.b.mu.Lock()
			if _, ok := e.attr("checked"); ok {
				removeAttr(e.node, "checked")
			} else {
				setAttr(e.node, "checked", "checked")
			}
			e.b.mu.Unlock()
			return nil
		case "radio":
			e.b.selectRadio(e.node)
			return nil
		}
	}
	if tag == "option" {
		e.b.selectOption(e.node)
		return nil
	}

	e.b.logger.Debug("Click has no effect without scripts.", zap.String("tag", tag))
	return nil
}

func (e *element) closest(tag string) *html.Node {
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
			return n
		}
	}
	return nil
}

// form is the owning form: the form attribute when present, else the nearest
// ancestor.
func (e *element) form() *html.Node {
	if id, ok := e.attr("form"); ok && id != "" {
		root := e.node
		for root.Parent != nil {
			root = root.Parent
		}
		if f := htmlquery.FindOne(root, fmt.Sprintf("//form[@id=%q]", id)); f != nil {
			return f
		}
	}
	return e.closest("form")
}

func attrOf(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
