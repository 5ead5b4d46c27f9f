// pkg/asli/searchable.go
package asli

import (
	"errors"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// Searchable is a lazy handle that child locators can search inside:
// a Session, an Element or a Collection.
type Searchable interface {
	// Describe renders the locator chain ending at this handle.
	Describe() string
	// Browser returns the session at the root of the chain.
	Browser() *Session

	// finder resolves the handle into something child steps can search.
	finder() (remote.Finder, error)
}

var (
	_ Searchable = (*Session)(nil)
	_ Searchable = (*Element)(nil)
	_ Searchable = (*Collection)(nil)
)

// multiFinder searches every element of a resolved collection in order.
type multiFinder []remote.ElementRef

func (m multiFinder) FindOne(by remote.By) (remote.ElementRef, error) {
	for _, el := range m {
		found, err := el.FindOne(by)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, remote.ErrNoSuchElement) {
			return nil, err
		}
	}
	return nil, remote.Wrap("find", &by, remote.ErrNoSuchElement)
}

func (m multiFinder) FindAll(by remote.By) ([]remote.ElementRef, error) {
	var out []remote.ElementRef
	for _, el := range m {
		found, err := el.FindAll(by)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
