// Package splice transplants the pages of an external cover-page PDF into
// a generator's own object graph, cloning each referenced object under a
// freshly allocated number and rewriting every indirect reference to
// match.
package splice

import (
	"github.com/iiifstream/pdfstream/internal/pdfparse"
	"github.com/iiifstream/pdfstream/internal/pdfval"
)

// Result is the outcome of transplanting one cover-page PDF.
type Result struct {
	// PageObjectIDs holds the new object number for each cover page, in
	// the source PDF's page order.
	PageObjectIDs []int
	// Objects holds the serialized bytes of every cloned object (pages,
	// content streams, fonts, images — anything transitively referenced),
	// ready to be written verbatim by the generator.
	Objects []serializedObject
}

type serializedObject struct {
	ID   int
	Data []byte
}

// Transplant parses data as a classic-xref PDF, clones every page (and
// everything each page transitively references) under object numbers
// produced by allocID, redirects each page's /Parent to parentRef, and
// strips /StructParents and /StructParent from every cloned dictionary.
func Transplant(data []byte, allocID func() int, parentRef pdfval.Ref) (Result, error) {
	parser, err := pdfparse.Open(data)
	if err != nil {
		return Result{}, err
	}
	pageNums, err := parser.PageRefs()
	if err != nil {
		return Result{}, err
	}

	c := &cloner{
		parser:     parser,
		allocID:    allocID,
		parentRef:  parentRef,
		transplant: make(map[int]int),
	}

	var result Result
	for _, num := range pageNums {
		newID, err := c.clone(num, true)
		if err != nil {
			return Result{}, err
		}
		result.PageObjectIDs = append(result.PageObjectIDs, newID)
	}
	result.Objects = c.objects
	return result, nil
}

type cloner struct {
	parser     *pdfparse.Parser
	allocID    func() int
	parentRef  pdfval.Ref
	transplant map[int]int
	objects    []serializedObject
}

// clone transplants object num (memoized), returning its new object
// number. isPage redirects /Parent and strips structure-tree keys.
func (c *cloner) clone(num int, isPage bool) (int, error) {
	if newID, ok := c.transplant[num]; ok {
		return newID, nil
	}
	newID := c.allocID()
	c.transplant[num] = newID // reserved before recursing, so reference cycles terminate

	value, stream, err := c.parser.Object(num)
	if err != nil {
		return 0, err
	}

	rewritten, err := c.rewrite(value)
	if err != nil {
		return 0, err
	}

	if dict, ok := rewritten.(*pdfval.Dict); ok {
		removeKey(dict, "StructParents")
		removeKey(dict, "StructParent")
		if isPage {
			dict.Set("Parent", c.parentRef)
		}
	}

	data := pdfval.SerializeObjectBytes(pdfval.Object{Num: newID, Value: rewritten, Stream: stream})
	c.objects = append(c.objects, serializedObject{ID: newID, Data: data})
	return newID, nil
}

func removeKey(d *pdfval.Dict, key string) {
	if _, ok := d.Entries[key]; !ok {
		return
	}
	delete(d.Entries, key)
	for i, k := range d.Keys {
		if k == key {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			return
		}
	}
}

// rewrite walks v, transplanting every Ref it finds (recursively cloning
// the referenced object first) and returning an equivalent value pointing
// at the new object numbers.
func (c *cloner) rewrite(v pdfval.Value) (pdfval.Value, error) {
	switch t := v.(type) {
	case pdfval.Ref:
		newID, err := c.clone(t.Num, false)
		if err != nil {
			return nil, err
		}
		return pdfval.Ref{Num: newID}, nil
	case *pdfval.Dict:
		out := &pdfval.Dict{Entries: make(map[string]pdfval.Value)}
		for _, k := range t.Keys {
			rv, err := c.rewrite(t.Entries[k])
			if err != nil {
				return nil, err
			}
			out.Set(k, rv)
		}
		return out, nil
	case pdfval.Array:
		out := make(pdfval.Array, len(t))
		for i, e := range t {
			rv, err := c.rewrite(e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
