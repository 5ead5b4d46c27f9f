// internal/drivers/cdp/element.go
package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// element is a DOM node addressed by its backend id.
type element struct {
	b  *Browser
	id cdp.BackendNodeID
}

var _ remote.ElementRef = (*element)(nil)

const (
	positionJS = `function() {
	if (!this.isConnected) return null;
	const r = this.getBoundingClientRect();
	return {x: r.left + window.scrollX, y: r.top + window.scrollY};
}`
	centerJS = `function() {
	if (!this.isConnected) return null;
	this.scrollIntoView({block: 'center', inline: 'center'});
	const r = this.getBoundingClientRect();
	return {x: r.left + r.width / 2, y: r.top + r.height / 2};
}`
	displayedJS = `function() {
	if (!this.isConnected) return null;
	const s = window.getComputedStyle(this);
	if (s.visibility === 'hidden' || s.visibility === 'collapse' || s.display === 'none') return false;
	return this.getClientRects().length > 0;
}`
	textJS = `function() {
	if (!this.isConnected) return null;
	return (this.innerText || '').replace(/\s+/g, ' ').trim();
}`
	clearJS = `function() {
	if (!this.isConnected) return null;
	if (this.disabled || this.readOnly) return false;
	this.focus();
	if ('value' in this) {
		this.value = '';
	} else if (this.isContentEditable) {
		this.textContent = '';
	} else {
		return false;
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	return true;
}`
	tagJS      = `function() { return this.isConnected ? this.tagName.toLowerCase() : null; }`
	enabledJS  = `function() { return this.isConnected ? !this.matches(':disabled') : null; }`
	selectedJS = `function() { return this.isConnected ? !!(this.checked || this.selected) : null; }`
)

// attributeJS reports "true" for present boolean attributes and reads
// value from the live property.
func attributeJS(name string) string {
	quoted, _ := json.Marshal(name)
	return fmt.Sprintf(`function() {
	if (!this.isConnected) return null;
	const name = %s;
	if (name === 'value' && 'value' in this) return {v: String(this.value)};
	const v = this.getAttribute(name);
	if (v === null) return {};
	if (['checked', 'selected', 'disabled', 'hidden', 'readonly', 'required', 'multiple', 'autofocus'].includes(name)) return {v: 'true'};
	return {v: v};
}`, quoted)
}

// queryJS returns the elements below this matching by, in document order.
func queryJS(by remote.By) (string, error) {
	if err := by.Validate(); err != nil {
		return "", err
	}
	if by.Strategy == remote.StrategyXPath {
		expr, _ := json.Marshal(by.Value)
		return fmt.Sprintf(`function() {
	const r = document.evaluate(%s, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < r.snapshotLength; i++) {
		const n = r.snapshotItem(i);
		if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
	}
	return out;
}`, expr), nil
	}
	css, _ := by.CSS()
	sel, _ := json.Marshal(css)
	return fmt.Sprintf(`function() { return Array.from(this.querySelectorAll(%s)); }`, sel), nil
}

// query runs by against the object scope and describes each match.
func (b *Browser) query(ctx context.Context, scope cdpruntime.RemoteObjectID, by remote.By) ([]remote.ElementRef, error) {
	fn, err := queryJS(by)
	if err != nil {
		return nil, err
	}
	arr, exc, err := cdpruntime.CallFunctionOn(fn).WithObjectID(scope).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, fmt.Errorf("%w: %s", remote.ErrInvalidSelector, exceptionText(exc))
	}
	defer release(ctx, arr.ObjectID)

	var n int
	if err := callOn(ctx, arr.ObjectID, `function() { return this.length; }`, &n); err != nil {
		return nil, err
	}
	refs := make([]remote.ElementRef, 0, n)
	for i := 0; i < n; i++ {
		item, _, err := cdpruntime.CallFunctionOn(fmt.Sprintf(`function() { return this[%d]; }`, i)).
			WithObjectID(arr.ObjectID).Do(ctx)
		if err != nil {
			return nil, err
		}
		node, err := dom.DescribeNode().WithObjectID(item.ObjectID).Do(ctx)
		release(ctx, item.ObjectID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, &element{b: b, id: node.BackendNodeID})
	}
	return refs, nil
}

// callOn runs fn with this bound to object and decodes the result into res.
func callOn(ctx context.Context, object cdpruntime.RemoteObjectID, fn string, res any) error {
	out, exc, err := cdpruntime.CallFunctionOn(fn).
		WithObjectID(object).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return fmt.Errorf("script failed: %s", exceptionText(exc))
	}
	if res == nil || len(out.Value) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(out.Value), res)
}

func exceptionText(exc *cdpruntime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}

func release(ctx context.Context, id cdpruntime.RemoteObjectID) {
	if id != "" {
		_ = cdpruntime.ReleaseObject(id).Do(ctx)
	}
}

// eval runs fn on the node. A null result means the node left the document.
func (e *element) eval(fn string, res any) error {
	return e.b.run(func(ctx context.Context) error {
		return e.evalIn(ctx, fn, res)
	})
}

func (e *element) evalIn(ctx context.Context, fn string, res any) error {
	obj, err := dom.ResolveNode().WithBackendNodeID(e.id).Do(ctx)
	if err != nil {
		return err
	}
	defer release(ctx, obj.ObjectID)

	var raw json.RawMessage
	if err := callOn(ctx, obj.ObjectID, fn, &raw); err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return remote.ErrStaleElement
	}
	if res == nil {
		return nil
	}
	return json.Unmarshal(raw, res)
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
	var refs []remote.ElementRef
	err := e.b.run(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.id).Do(ctx)
		if err != nil {
			return err
		}
		defer release(ctx, obj.ObjectID)
		var connected bool
		if err := callOn(ctx, obj.ObjectID, `function() { return this.isConnected; }`, &connected); err != nil {
			return err
		}
		if !connected {
			return remote.ErrStaleElement
		}
		refs, err = e.b.query(ctx, obj.ObjectID, by)
		return err
	})
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return refs, nil
}

func (e *element) Position() (remote.Point, error) {
	var p remote.Point
	err := e.eval(positionJS, &p)
	return p, err
}

func (e *element) Click() error {
	return e.b.run(func(ctx context.Context) error {
		var p remote.Point
		if err := e.evalIn(ctx, centerJS, &p); err != nil {
			return err
		}
		return chromedp.MouseClickXY(p.X, p.Y).Do(ctx)
	})
}

func (e *element) Hover() error {
	return e.b.run(func(ctx context.Context) error {
		var p remote.Point
		if err := e.evalIn(ctx, centerJS, &p); err != nil {
			return err
		}
		return chromedp.MouseEvent(input.MouseMoved, p.X, p.Y).Do(ctx)
	})
}

// SetText clears the field and types text into it.
func (e *element) SetText(text string) error {
	return e.b.run(func(ctx context.Context) error {
		var cleared bool
		if err := e.evalIn(ctx, clearJS, &cleared); err != nil {
			return err
		}
		if !cleared {
			return fmt.Errorf("element does not accept text")
		}
		if text == "" {
			return nil
		}
		return chromedp.KeyEvent(text).Do(ctx)
	})
}

func (e *element) Text() (string, error) {
	var s string
	err := e.eval(textJS, &s)
	return s, err
}

func (e *element) IsDisplayed() (bool, error) {
	var v bool
	err := e.eval(displayedJS, &v)
	return v, err
}

func (e *element) Attribute(name string) (string, bool, error) {
	var res struct {
		V *string `json:"v"`
	}
	if err := e.eval(attributeJS(name), &res); err != nil {
		return "", false, err
	}
	if res.V == nil {
		return "", false, nil
	}
	return *res.V, true, nil
}

func (e *element) TagName() (string, error) {
	var s string
	err := e.eval(tagJS, &s)
	return s, err
}

func (e *element) IsEnabled() (bool, error) {
	var v bool
	err := e.eval(enabledJS, &v)
	return v, err
}

func (e *element) IsSelected() (bool, error) {
	var v bool
	err := e.eval(selectedJS, &v)
	return v, err
}
