// internal/drivers/static/form.go
package static

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// submit serializes form and loads the response. submitter contributes its
// own name and value when it has a name.
func (b *Browser) submit(form, submitter *html.Node) error {
	action, _ := attrOf(form, "action")
	method, _ := attrOf(form, "method")
	if submitter != nil {
		if v, ok := attrOf(submitter, "formaction"); ok && v != "" {
			action = v
		}
		if v, ok := attrOf(submitter, "formmethod"); ok && v != "" {
			method = v
		}
	}
	method = strings.ToUpper(method)
	if method != http.MethodPost {
		method = http.MethodGet
	}

	target, err := b.resolve(action)
	if err != nil {
		return fmt.Errorf("failed to determine form submission URL: %w", err)
	}

	b.mu.Lock()
	data, err := serializeForm(form, submitter)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	b.logger.Debug("Submitting form", zap.String("method", method), zap.String("url", target.String()))

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(b.ctx, method, target.String(), strings.NewReader(data.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create form request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u := *target
		u.RawQuery = data.Encode()
		u.Fragment = ""
		req, err = http.NewRequestWithContext(b.ctx, method, u.String(), nil)
		if err != nil {
			return fmt.Errorf("failed to create form request: %w", err)
		}
	}
	return b.load(req)
}

// serializeForm collects the successful controls of form in document order.
func serializeForm(form, submitter *html.Node) (url.Values, error) {
	controls, err := htmlquery.QueryAll(form, ".//input | .//textarea | .//select | .//button")
	if err != nil {
		return nil, fmt.Errorf("failed to query form elements: %w", err)
	}

	data := url.Values{}
	for _, ctl := range controls {
		name, _ := attrOf(ctl, "name")
		if name == "" || disabledControl(ctl) {
			continue
		}
		typ, _ := attrOf(ctl, "type")
		typ = strings.ToLower(typ)

		switch strings.ToLower(ctl.Data) {
		case "input":
			switch typ {
			case "checkbox", "radio":
				if _, checked := attrOf(ctl, "checked"); checked {
					value, _ := attrOf(ctl, "value")
					if value == "" {
						value = "on"
					}
					data.Add(name, value)
				}
			case "submit", "image":
				if ctl == submitter {
					value, _ := attrOf(ctl, "value")
					data.Add(name, value)
				}
			case "button", "reset", "file":
			default:
				value, _ := attrOf(ctl, "value")
				data.Add(name, value)
			}
		case "button":
			if ctl == submitter {
				value, _ := attrOf(ctl, "value")
				data.Add(name, value)
			}
		case "textarea":
			data.Add(name, htmlquery.InnerText(ctl))
		case "select":
			for _, opt := range htmlquery.Find(ctl, ".//option[@selected]") {
				value, ok := attrOf(opt, "value")
				if !ok {
					value = strings.TrimSpace(htmlquery.InnerText(opt))
				}
				data.Add(name, value)
			}
		}
	}
	return data, nil
}

func disabledControl(n *html.Node) bool {
	if _, ok := attrOf(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "fieldset") {
			if _, ok := attrOf(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

// selectRadio checks radio and unchecks the rest of its group.
func (b *Browser) selectRadio(radio *html.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name, _ := attrOf(radio, "name")
	if name == "" {
		setAttr(radio, "checked", "checked")
		return
	}

	root := findParentForm(radio)
	if root == nil {
		root = radio
		for root.Parent != nil {
			root = root.Parent
		}
	}
	for _, r := range htmlquery.Find(root, fmt.Sprintf(".//input[@type='radio' and @name=%q]", name)) {
		if r == radio {
			setAttr(r, "checked", "checked")
		} else {
			removeAttr(r, "checked")
		}
	}
}

// selectOption selects option, deselecting its siblings unless the select is
// multiple, where the option toggles.
func (b *Browser) selectOption(option *html.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sel *html.Node
	for p := option.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "select") {
			sel = p
			break
		}
	}
	if sel == nil {
		setAttr(option, "selected", "selected")
		return
	}
	if _, multiple := attrOf(sel, "multiple"); multiple {
		if _, ok := attrOf(option, "selected"); ok {
			removeAttr(option, "selected")
		} else {
			setAttr(option, "selected", "selected")
		}
		return
	}
	for _, o := range htmlquery.Find(sel, ".//option") {
		if o == option {
			setAttr(o, "selected", "selected")
		} else {
			removeAttr(o, "selected")
		}
	}
}

func findParentForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "form") {
			return p
		}
	}
	return nil
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
