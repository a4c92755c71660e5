package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the fixture read when no --file is given.
const DefaultPath = "./firestore-seed.json"

var ErrNotObject = errors.New("fixture root must be an object of collection name to document list")

// Load reads and classifies a fixture file. Files ending in .yaml or .yml are
// decoded as YAML; anything else as JSON, tolerating comments and trailing commas.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	fx, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	fx.Source = path
	return fx, nil
}

// Parse decodes fixture bytes in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Fixture, error) {
	var raw interface{}

	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(std))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	}

	root, ok := asObject(raw)
	if !ok {
		return nil, ErrNotObject
	}
	return FromRaw(root), nil
}

// FromRaw classifies an already-decoded fixture.
func FromRaw(root map[string]interface{}) *Fixture {
	fx := &Fixture{}
	c := &classifier{fx: fx}

	names := make([]string, 0, len(root))
	for name := range root {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		items, ok := root[name].([]interface{})
		if !ok {
			fx.Skipped = append(fx.Skipped, name)
			continue
		}
		fx.Collections = append(fx.Collections, &Collection{
			Name: name,
			Docs: c.documents(name, items),
		})
	}
	return fx
}

type classifier struct {
	fx *Fixture
}

func (c *classifier) warn(format string, args ...interface{}) {
	c.fx.Warnings = append(c.fx.Warnings, fmt.Sprintf(format, args...))
}

func (c *classifier) documents(path string, items []interface{}) []*Document {
	docs := make([]*Document, 0, len(items))
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			// A top-level sequence may hold stray scalars; they have no
			// document shape and keep their index slot.
			c.warn("%s[%d]: not an object, skipped", path, i)
			continue
		}
		docs = append(docs, c.document(fmt.Sprintf("%s[%d]", path, i), i, obj))
	}
	return docs
}

func (c *classifier) document(path string, index int, obj map[string]interface{}) *Document {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := &Document{Index: index, Fields: make([]Field, 0, len(names))}
	for _, name := range names {
		doc.Fields = append(doc.Fields, c.field(path+"."+name, name, obj[name]))
	}
	return doc
}

func (c *classifier) field(path, name string, v interface{}) Field {
	raw := c.normalize(path, v)

	if obj, ok := asObject(raw); ok {
		return Field{Name: name, Kind: KindObject, Raw: obj, Value: c.coerce(path, obj)}
	}

	if list, ok := raw.([]interface{}); ok {
		if isSubcollection(list) {
			return Field{Name: name, Kind: KindSubcollection, Raw: list, Docs: c.documents(path, list)}
		}
		return Field{Name: name, Kind: KindScalarList, Raw: list, Value: c.coerce(path, list)}
	}

	return Field{Name: name, Kind: KindScalar, Raw: raw, Value: c.coerce(path, raw)}
}

// coerce walks v and replaces date-like strings with time.Time.
func (c *classifier) coerce(path string, v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = c.coerce(path+"."+k, item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = c.coerce(fmt.Sprintf("%s[%d]", path, i), item)
		}
		return out
	case uint64:
		c.warn("%s: integer %d exceeds the signed 64-bit range, as a field it is stored as %v", path, val, float64(val))
		return float64(val)
	case string:
		t, ok, err := CoerceDate(val)
		if err != nil {
			c.warn("%s: %q looks like a date but is not valid, stored as text", path, val)
			return val
		}
		if ok {
			return t
		}
		return val
	default:
		return v
	}
}

// isSubcollection reports whether every element of a non-empty list is a
// plain object.
func isSubcollection(list []interface{}) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if _, ok := asObject(item); !ok {
			return false
		}
	}
	return true
}

// normalize converts decoder-specific values into the plain set the rest of
// the package works with: map[string]interface{}, []interface{}, string,
// int64, uint64 (only above the int64 range), float64, bool and nil.
func (c *classifier) normalize(path string, v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		return c.number(path, val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return c.normalize(path, uint64(val))
	case uint64:
		if val > math.MaxInt64 {
			return val
		}
		return int64(val)
	case float32:
		return float64(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = c.normalize(path+"."+k, item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			key := fmt.Sprint(k)
			out[key] = c.normalize(path+"."+key, item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = c.normalize(fmt.Sprintf("%s[%d]", path, i), item)
		}
		return out
	default:
		return v
	}
}

// number keeps integers exact where 64 bits allow it. Anything wider falls
// back to float64 with a warning.
func (c *classifier) number(path string, n json.Number) interface{} {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	integral := !strings.ContainsAny(s, ".eE")
	if integral {
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	f, err := n.Float64()
	if err != nil {
		c.warn("%s: number %s is out of range, stored as text", path, s)
		return s
	}
	if integral {
		c.warn("%s: integer %s does not fit in 64 bits, stored as %v", path, s, f)
	}
	return f
}

// asObject converts mapping keys to strings. Values are normalized later,
// field by field.
func asObject(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = item
		}
		return m, true
	default:
		return nil, false
	}
}
