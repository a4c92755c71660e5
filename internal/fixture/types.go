package fixture

// Kind tags a document field with the shape it was classified as at parse time.
type Kind int

const (
	KindScalar        Kind = iota // string, number, bool, null or coerced timestamp
	KindScalarList                // any list that is not a subcollection
	KindObject                    // nested map, written inline
	KindSubcollection             // non-empty list of plain objects
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindScalarList:
		return "list"
	case KindObject:
		return "object"
	case KindSubcollection:
		return "subcollection"
	default:
		return "unknown"
	}
}

type Field struct {
	Name  string
	Kind  Kind
	Raw   interface{} // value as parsed, before date coercion
	Value interface{} // value to store; nil for subcollections
	Docs  []*Document // only set for KindSubcollection
}

type Document struct {
	Index  int     // position in the containing sequence
	Fields []Field // sorted by name
}

type Collection struct {
	Name string
	Docs []*Document
}

type Fixture struct {
	Source      string
	Collections []*Collection // sorted by name
	Skipped     []string      // top-level keys whose value was not a sequence
	Warnings    []string      // non-fatal coercion misses
}

// Field returns the named field, if present.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Payload returns the inline fields of the document, leaving out the
// subcollections and the consumed id alias.
func (d *Document) Payload(skip string) map[string]interface{} {
	out := make(map[string]interface{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Kind == KindSubcollection || f.Name == skip {
			continue
		}
		out[f.Name] = f.Value
	}
	return out
}

// Subcollections returns the fields classified as subcollections, in name order.
func (d *Document) Subcollections() []Field {
	var subs []Field
	for _, f := range d.Fields {
		if f.Kind == KindSubcollection {
			subs = append(subs, f)
		}
	}
	return subs
}

// Depth is the deepest collection nesting under this document, counting the
// document's own collection as 1.
func (d *Document) Depth() int {
	depth := 1
	for _, sub := range d.Subcollections() {
		for _, child := range sub.Docs {
			if n := child.Depth() + 1; n > depth {
				depth = n
			}
		}
	}
	return depth
}

// Collection returns the named top-level collection, if present.
func (f *Fixture) Collection(name string) *Collection {
	for _, c := range f.Collections {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names lists the seedable collection names.
func (f *Fixture) Names() []string {
	names := make([]string, 0, len(f.Collections))
	for _, c := range f.Collections {
		names = append(names, c.Name)
	}
	return names
}

// DocumentCount counts every document in the fixture, nested ones included.
func (f *Fixture) DocumentCount() int {
	n := 0
	for _, c := range f.Collections {
		n += countDocs(c.Docs)
	}
	return n
}

func countDocs(docs []*Document) int {
	n := len(docs)
	for _, d := range docs {
		for _, sub := range d.Subcollections() {
			n += countDocs(sub.Docs)
		}
	}
	return n
}
