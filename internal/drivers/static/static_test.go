// internal/drivers/static/static_test.go
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/asli/pkg/remote"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

const indexPage = `<!DOCTYPE html>
<html><head><title>Index</title><script>var x = 1;</script></head>
<body>
  <h1 id="title">  Welcome   home </h1>
  <ul class="items">
    <li class="item">one</li>
    <li class="item">two</li>
    <li class="item" style="display: none">three</li>
  </ul>
  <div hidden><span id="ghost">boo</span></div>
  <a id="to-login" href="/login">Log in</a>
  <a id="noop" href="javascript:void(0)">Nothing</a>
  <input type="hidden" name="csrf" value="t0k3n">
  <input id="agree" type="checkbox" name="agree">
  <input id="r1" type="radio" name="color" value="red" checked>
  <input id="r2" type="radio" name="color" value="blue">
  <select id="size" name="size">
    <option value="s" selected>Small</option>
    <option id="large" value="l">Large</option>
  </select>
  <fieldset disabled><input id="locked" name="locked" value="x"></fieldset>
</body></html>`

const loginPage = `<!DOCTYPE html>
<html><body>
  <form id="login" action="/authenticate" method="post">
    <input id="username" name="username">
    <input id="password" type="password" name="password">
    <textarea id="note" name="note">initial</textarea>
    <input id="remember" type="checkbox" name="remember" value="yes">
    <button id="submit" name="action" value="signin">Sign in</button>
  </form>
  <form id="search" action="/search">
    <input name="q" value="lazy">
    <input id="go" type="submit" value="Go">
  </form>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexPage)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") != "tomsmith" || r.PostForm.Get("password") != "secret" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/secure?"+r.PostForm.Encode(), http.StatusFound)
	})
	mux.HandleFunc("/secure", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><div id="flash">You logged into a secure area!</div><pre id="query">%s</pre></body></html>`, html.EscapeString(r.URL.RawQuery))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><p id="q">%s</p></body></html>`, html.EscapeString(r.URL.Query().Get("q")))
	})
	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		c, err := r.Cookie("flavor")
		value := "none"
		if err == nil {
			value = c.Value
		}
		fmt.Fprintf(w, `<html><body><p id="flavor">%s</p></body></html>`, value)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"a":1}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func launch(t *testing.T) *Browser {
	t.Helper()
	b, err := Launch(context.Background(), remote.LaunchOptions{Browser: remote.Static}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Quit() })
	return b
}

func text(t *testing.T, f remote.Finder, by remote.By) string {
	t.Helper()
	el, err := f.FindOne(by)
	require.NoError(t, err)
	s, err := el.Text()
	require.NoError(t, err)
	return s
}

func TestLaunch(t *testing.T) {
	_, err := Launch(context.Background(), remote.LaunchOptions{Browser: remote.Static, Remote: true}, nil)
	assert.ErrorIs(t, err, remote.ErrUnsupported)
}

func TestNavigate(t *testing.T) {
	srv := newSite(t)
	b := launch(t)

	t.Run("blank before the first page", func(t *testing.T) {
		u, err := b.CurrentURL()
		require.NoError(t, err)
		assert.Equal(t, "about:blank", u)

		_, err = b.FindOne(remote.ByID("title"))
		assert.ErrorIs(t, err, remote.ErrNoSuchElement)
	})

	t.Run("first target must be absolute", func(t *testing.T) {
		err := b.Navigate("/login")
		assert.ErrorContains(t, err, "absolute URL")
	})

	t.Run("relative targets resolve against the page", func(t *testing.T) {
		require.NoError(t, b.Navigate(srv.URL+"/"))
		require.NoError(t, b.Navigate("login"))
		u, err := b.CurrentURL()
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/login", u)
	})

	t.Run("non html responses give an empty page", func(t *testing.T) {
		require.NoError(t, b.Navigate(srv.URL+"/data.json"))
		els, err := b.FindAll(remote.ByTag("p"))
		require.NoError(t, err)
		assert.Empty(t, els)
	})
}

func TestFind(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))

	assert.Equal(t, "Welcome home", text(t, b, remote.ByID("title")))
	assert.Equal(t, "Welcome home", text(t, b, remote.ByXPath("//h1")))
	assert.Equal(t, "Welcome home", text(t, b, remote.ByCSS("body > h1#title")))

	items, err := b.FindAll(remote.ByClass("item"))
	require.NoError(t, err)
	require.Len(t, items, 3)

	grouped, err := b.FindAll(remote.ByCSS("h1, li.item"))
	require.NoError(t, err)
	assert.Len(t, grouped, 4)

	t.Run("scoped to an element", func(t *testing.T) {
		ul, err := b.FindOne(remote.ByTag("ul"))
		require.NoError(t, err)
		lis, err := ul.FindAll(remote.ByTag("li"))
		require.NoError(t, err)
		assert.Len(t, lis, 3)

		_, err = ul.FindOne(remote.ByTag("h1"))
		assert.ErrorIs(t, err, remote.ErrNoSuchElement)

		parent, err := lis[0].FindOne(remote.ByXPath(".."))
		require.NoError(t, err)
		tag, err := parent.TagName()
		require.NoError(t, err)
		assert.Equal(t, "ul", tag)
	})

	t.Run("invalid selectors", func(t *testing.T) {
		_, err := b.FindOne(remote.ByCSS("li[["))
		assert.ErrorIs(t, err, remote.ErrInvalidSelector)
		_, err = b.FindAll(remote.ByXPath("//li[@"))
		assert.ErrorIs(t, err, remote.ErrInvalidSelector)
	})

	t.Run("positions follow document order", func(t *testing.T) {
		first, err := items[0].Position()
		require.NoError(t, err)
		second, err := items[1].Position()
		require.NoError(t, err)
		assert.Less(t, first.Y, second.Y)
	})
}

func TestVisibility(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))

	cases := map[string]struct {
		by      remote.By
		visible bool
	}{
		"heading":          {remote.ByID("title"), true},
		"display none":     {remote.ByXPath("//li[3]"), false},
		"hidden ancestor":  {remote.ByID("ghost"), false},
		"hidden input":     {remote.ByName("csrf"), false},
		"head content":     {remote.ByTag("title"), false},
		"script":           {remote.ByTag("script"), false},
		"disabled control": {remote.ByID("locked"), true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			el, err := b.FindOne(tc.by)
			require.NoError(t, err)
			visible, err := el.IsDisplayed()
			require.NoError(t, err)
			assert.Equal(t, tc.visible, visible)
		})
	}

	ghost, err := b.FindOne(remote.ByID("ghost"))
	require.NoError(t, err)
	s, err := ghost.Text()
	require.NoError(t, err)
	assert.Empty(t, s, "hidden elements have no rendered text")
}

func TestControls(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))

	find := func(by remote.By) remote.ElementRef {
		el, err := b.FindOne(by)
		require.NoError(t, err)
		return el
	}
	selected := func(el remote.ElementRef) bool {
		s, err := el.IsSelected()
		require.NoError(t, err)
		return s
	}

	t.Run("checkbox toggles", func(t *testing.T) {
		agree := find(remote.ByID("agree"))
		assert.False(t, selected(agree))
		require.NoError(t, agree.Click())
		assert.True(t, selected(agree))
		v, ok, err := agree.Attribute("checked")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "true", v)
		require.NoError(t, agree.Click())
		assert.False(t, selected(agree))
	})

	t.Run("radio group is exclusive", func(t *testing.T) {
		r1, r2 := find(remote.ByID("r1")), find(remote.ByID("r2"))
		require.NoError(t, r2.Click())
		assert.False(t, selected(r1))
		assert.True(t, selected(r2))
	})

	t.Run("option selection", func(t *testing.T) {
		large := find(remote.ByID("large"))
		require.NoError(t, large.Click())
		assert.True(t, selected(large))
		assert.False(t, selected(find(remote.ByXPath("//option[@value='s']"))))
	})

	t.Run("disabled fieldset", func(t *testing.T) {
		locked := find(remote.ByID("locked"))
		enabled, err := locked.IsEnabled()
		require.NoError(t, err)
		assert.False(t, enabled)
		assert.Error(t, locked.SetText("y"))
	})

	t.Run("javascript links do not navigate", func(t *testing.T) {
		require.NoError(t, find(remote.ByID("noop")).Click())
		u, err := b.CurrentURL()
		require.NoError(t, err)
		assert.Equal(t, srv.URL, u)
	})

	t.Run("missing attribute", func(t *testing.T) {
		_, ok, err := find(remote.ByID("title")).Attribute("href")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoginFlow(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))

	link, err := b.FindOne(remote.ByID("to-login"))
	require.NoError(t, err)
	require.NoError(t, link.Click())

	t.Run("old page elements are stale", func(t *testing.T) {
		_, err := link.Position()
		assert.ErrorIs(t, err, remote.ErrStaleElement)
		_, err = link.Text()
		assert.ErrorIs(t, err, remote.ErrStaleElement)
	})

	fill := func(id, value string) {
		el, err := b.FindOne(remote.ByID(id))
		require.NoError(t, err)
		require.NoError(t, el.SetText(value))
	}
	fill("username", "tomsmith")
	fill("password", "secret")
	fill("note", "replaced")

	note, err := b.FindOne(remote.ByID("note"))
	require.NoError(t, err)
	v, ok, err := note.Attribute("value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "replaced", v)

	remember, err := b.FindOne(remote.ByID("remember"))
	require.NoError(t, err)
	require.NoError(t, remember.Click())

	submit, err := b.FindOne(remote.ByID("submit"))
	require.NoError(t, err)
	require.NoError(t, submit.Click())

	u, err := b.CurrentURL()
	require.NoError(t, err)
	assert.Contains(t, u, srv.URL+"/secure")
	assert.Equal(t, "You logged into a secure area!", text(t, b, remote.ByID("flash")))

	query := text(t, b, remote.ByID("query"))
	assert.Contains(t, query, "action=signin")
	assert.Contains(t, query, "note=replaced")
	assert.Contains(t, query, "remember=yes")
}

func TestGetFormSubmission(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL+"/login"))

	goButton, err := b.FindOne(remote.ByID("go"))
	require.NoError(t, err)
	require.NoError(t, goButton.Click())

	u, err := b.CurrentURL()
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/search?q=lazy", u)
	assert.Equal(t, "lazy", text(t, b, remote.ByID("q")))
}

func TestAddCookie(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL+"/cookie"))
	assert.Equal(t, "none", text(t, b, remote.ByID("flavor")))

	require.NoError(t, b.AddCookie(remote.Cookie{Name: "flavor", Value: "oatmeal"}))
	require.NoError(t, b.Navigate(srv.URL+"/cookie"))
	assert.Equal(t, "oatmeal", text(t, b, remote.ByID("flavor")))
}

func TestScreenshot(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))

	data, err := b.ScreenshotPNG()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ScreenshotWidth, img.Bounds().Dx())
	assert.Equal(t, ScreenshotHeight, img.Bounds().Dy())
}

func TestCloseWindowAndQuit(t *testing.T) {
	srv := newSite(t)
	b := launch(t)
	require.NoError(t, b.Navigate(srv.URL))
	title, err := b.FindOne(remote.ByID("title"))
	require.NoError(t, err)

	require.NoError(t, b.CloseWindow())
	assert.ErrorIs(t, b.CloseWindow(), remote.ErrNoSuchWindow)
	_, err = b.CurrentURL()
	assert.ErrorIs(t, err, remote.ErrNoSuchWindow)
	_, err = title.Position()
	assert.ErrorIs(t, err, remote.ErrNoSuchWindow)

	// Navigating opens a fresh window.
	require.NoError(t, b.Navigate(srv.URL))
	_, err = b.FindOne(remote.ByID("title"))
	require.NoError(t, err)

	require.NoError(t, b.Quit())
	require.NoError(t, b.Quit())
	_, err = b.FindOne(remote.ByID("title"))
	assert.True(t, errors.Is(err, remote.ErrSessionNotReady))
	assert.ErrorIs(t, b.Navigate(srv.URL), remote.ErrSessionNotReady)
	_, err = b.ScreenshotPNG()
	assert.ErrorIs(t, err, remote.ErrSessionNotReady)
}
