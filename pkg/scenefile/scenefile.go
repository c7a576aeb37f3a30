// Package scenefile loads HCL scene documents: an initial layer list plus a
// sequence of named transactions to apply against it.
//
// A scene document looks like:
//
//	layer "wallpaper" {
//	  id = 1
//	  z  = 0
//	}
//
//	layer "app" {
//	  id     = 2
//	  parent = 1
//	  z      = 2
//	}
//
//	transaction "open-dialog" {
//	  create "dialog" {
//	    id     = 5
//	    parent = 2
//	    z      = 3
//	  }
//	  destroy = [4]
//	}
//
// Layers are visible unless the document says otherwise. Attribute
// expressions may reference the named constants display.primary,
// display.external, z.bottom, and z.top. Scene documents
// drive the CLI, the watcher, and replay fixtures; they are never read by
// the engine's commit path.
package scenefile

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/layer"
)

// Document is a decoded and validated scene file.
type Document struct {
	// Initial holds the layer records the scene starts from, in document
	// order.
	Initial []layer.State
	// Transactions holds the named transactions in document order.
	Transactions []layer.Transaction
}

// Transaction returns the named transaction, or false.
func (d *Document) Transaction(name string) (layer.Transaction, bool) {
	for _, tx := range d.Transactions {
		if tx.Name == name {
			return tx, true
		}
	}
	return layer.Transaction{}, false
}

type fileSchema struct {
	Layers       []layerBlock `hcl:"layer,block"`
	Transactions []txBlock    `hcl:"transaction,block"`
}

type layerBlock struct {
	Name           string `hcl:"name,label"`
	ID             uint32 `hcl:"id"`
	Parent         uint32 `hcl:"parent,optional"`
	RelativeParent uint32 `hcl:"relative_parent,optional"`
	MirrorSource   uint32 `hcl:"mirror_source,optional"`
	Z              int32  `hcl:"z,optional"`
	Display        uint32 `hcl:"display,optional"`
	Hidden         bool   `hcl:"hidden,optional"`
}

type txBlock struct {
	Name    string       `hcl:"name,label"`
	Create  []layerBlock `hcl:"create,block"`
	Set     []layerBlock `hcl:"set,block"`
	Destroy []uint32     `hcl:"destroy,optional"`
}

// Load parses and validates a scene document from a file.
func Load(path string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeInvalidScene, "parse %s: %s", path, diags.Error())
	}
	return decode(file.Body, path)
}

// Parse parses and validates a scene document from source bytes. filename
// is used in diagnostics only.
func Parse(src []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeInvalidScene, "parse %s: %s", filename, diags.Error())
	}
	return decode(file.Body, filename)
}

// evalContext supplies the named constants scene documents may reference:
// display.primary and display.external instead of raw display indices, and
// z.bottom / z.top for the extremes of the z range.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"display": cty.ObjectVal(map[string]cty.Value{
				"primary":  cty.NumberUIntVal(0),
				"external": cty.NumberUIntVal(1),
			}),
			"z": cty.ObjectVal(map[string]cty.Value{
				"bottom": cty.NumberIntVal(-2147483648),
				"top":    cty.NumberIntVal(2147483647),
			}),
		},
	}
}

func decode(body hcl.Body, filename string) (*Document, error) {
	var raw fileSchema
	if diags := gohcl.DecodeBody(body, evalContext(), &raw); diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeInvalidScene, "decode %s: %s", filename, diags.Error())
	}

	doc := &Document{}
	for _, lb := range raw.Layers {
		doc.Initial = append(doc.Initial, lb.state(lb.Name))
	}
	for _, tb := range raw.Transactions {
		tx := layer.Transaction{Name: tb.Name}
		for _, lb := range tb.Create {
			tx.Create = append(tx.Create, lb.state(lb.Name))
		}
		for _, sb := range tb.Set {
			tx.Set = append(tx.Set, sb.state(sb.Name))
		}
		for _, id := range tb.Destroy {
			tx.Destroy = append(tx.Destroy, layer.ID(id))
		}
		doc.Transactions = append(doc.Transactions, tx)
	}

	if err := validate(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScene, err, "validate %s", filename)
	}
	return doc, nil
}

func (lb layerBlock) state(name string) layer.State {
	return layer.State{
		ID:             layer.ID(lb.ID),
		Name:           name,
		Parent:         layer.ID(lb.Parent),
		RelativeParent: layer.ID(lb.RelativeParent),
		MirrorSource:   layer.ID(lb.MirrorSource),
		Z:              lb.Z,
		Display:        lb.Display,
		Visible:        !lb.Hidden,
	}
}

// validate replays the document against a scratch store, so every layer and
// transaction error surfaces at load time instead of at apply time.
func validate(doc *Document) error {
	store, err := layer.NewStore(doc.Initial)
	if err != nil {
		return err
	}
	for _, tx := range doc.Transactions {
		if _, err := store.Commit(tx); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTransaction, err, "transaction %q", tx.Name)
		}
	}
	return nil
}
