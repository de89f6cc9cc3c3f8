/*
Package requests provides the Workforce Hub HR request forms.

Each form is a YAML document under forms/ embedded into the binary, plus a
Go payload builder (payloads.go). The Catalog loads both and hands out
Definitions by id.

USAGE:
  import "github.com/warp/workforce-hub/requests"

  catalog, err := requests.DefaultCatalog()
  def, ok := catalog.Get(requests.FormLeave)
  session := form.NewSession(id, def)

OVERRIDES:
  NewCatalog accepts any fs.FS, so a deployment can point at a directory of
  edited documents (os.DirFS) without rebuilding. Payload builders are still
  attached by form id.
*/
package requests

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/warp/workforce-hub/form"
)

//go:embed forms/*.yaml
var embedded embed.FS

// Catalog is a read-only set of form definitions.
type Catalog struct {
	defs  map[string]*form.Definition
	order []string
}

// DefaultCatalog loads the embedded HR forms.
func DefaultCatalog() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "forms")
	if err != nil {
		return nil, err
	}
	return NewCatalog(sub)
}

// NewCatalog loads every form document in fsys.
func NewCatalog(fsys fs.FS) (*Catalog, error) {
	defs, err := form.LoadFS(fsys, Payloads())
	if err != nil {
		return nil, fmt.Errorf("load forms: %w", err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("load forms: no form documents found")
	}

	c := &Catalog{defs: make(map[string]*form.Definition, len(defs))}
	for _, d := range defs {
		c.defs[d.ID()] = d
		c.order = append(c.order, d.ID())
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *Catalog) Get(id string) (*form.Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// List returns definitions sorted by id.
func (c *Catalog) List() []*form.Definition {
	out := make([]*form.Definition, len(c.order))
	for i, id := range c.order {
		out[i] = c.defs[id]
	}
	return out
}

// Endpoints returns every backend endpoint in the catalog, keyed by form id.
func (c *Catalog) Endpoints() map[string]string {
	out := make(map[string]string, len(c.defs))
	for id, d := range c.defs {
		out[id] = d.Endpoint()
	}
	return out
}
