package fixture

import (
	"fmt"
	"strconv"
	"strings"
)

// IDAliases is the fixed priority order used to pick a document id.
var IDAliases = []string{"id", "docId", "uid", "employeeId", "employeeID", "employee_id"}

// employeeAliases only name the document inside identity collections; in any
// other collection they are foreign keys and stay on the document.
var employeeAliases = map[string]bool{
	"employeeId":  true,
	"employeeID":  true,
	"employee_id": true,
}

// DefaultIdentityCollections are the collections whose documents are people.
var DefaultIdentityCollections = []string{"users", "employees"}

type IDPolicy struct {
	Aliases             []string
	IdentityCollections map[string]bool
}

func DefaultIDPolicy() IDPolicy {
	return NewIDPolicy(DefaultIdentityCollections)
}

func NewIDPolicy(identityCollections []string) IDPolicy {
	p := IDPolicy{
		Aliases:             append([]string(nil), IDAliases...),
		IdentityCollections: make(map[string]bool, len(identityCollections)),
	}
	for _, name := range identityCollections {
		if name = strings.TrimSpace(name); name != "" {
			p.IdentityCollections[name] = true
		}
	}
	return p
}

// AutoID is the synthetic id of a document that names none.
func AutoID(index int) string {
	return "auto_" + strconv.Itoa(index)
}

// Resolve picks the destination id of d within the named collection. alias is
// the consumed field name, or "" when the synthetic id was used.
func (p IDPolicy) Resolve(collection string, d *Document) (id, alias string, err error) {
	for _, name := range p.Aliases {
		if employeeAliases[name] && !p.IdentityCollections[collection] {
			continue
		}
		f, ok := d.Field(name)
		if !ok || f.Kind != KindScalar {
			continue
		}
		s, ok := idString(f.Raw)
		if !ok {
			continue
		}
		if strings.Contains(s, "/") {
			return "", name, fmt.Errorf("document %d in %s: id %q contains '/'", d.Index, collection, s)
		}
		if s == "." || s == ".." || (strings.HasPrefix(s, "__") && strings.HasSuffix(s, "__")) {
			return "", name, fmt.Errorf("document %d in %s: id %q is reserved", d.Index, collection, s)
		}
		return s, name, nil
	}
	return AutoID(d.Index), "", nil
}

// idString returns the string form of a truthy id value.
func idString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, strings.TrimSpace(val) != ""
	case int64:
		return strconv.FormatInt(val, 10), val != 0
	case uint64:
		return strconv.FormatUint(val, 10), val != 0
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), val != 0
	default:
		return "", false
	}
}
