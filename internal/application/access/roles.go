package access

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/knackfield"
)

// ParsedRoles is the outcome of reading raw role data.
type ParsedRoles struct {
	// Roles holds the known roles in canonical order, without duplicates.
	Roles []results.Role
	// Unknown holds the role names that were dropped.
	Unknown []string
	// EstablishmentID is an id embedded in role markup, if any.
	EstablishmentID string
}

// ParseRoles reads roles from a string (comma separated or markup), a string
// slice, a generic slice, or JSON. Unknown names are dropped.
func ParseRoles(raw any) ParsedRoles {
	var names []string
	var establishment string

	addString := func(s string) {
		if strings.Contains(s, "<") {
			if establishment == "" {
				establishment = knackfield.ClassID(s)
			}
			for _, node := range knackfield.TextNodes(s) {
				names = append(names, strings.Split(node, ",")...)
			}
			return
		}
		names = append(names, strings.Split(s, ",")...)
	}

	var addJSON func(v gjson.Result)
	addJSON = func(v gjson.Result) {
		switch {
		case v.IsArray():
			v.ForEach(func(_, item gjson.Result) bool {
				addJSON(item)
				return true
			})
		case v.IsObject():
			addString(knackfield.Text(v))
		case v.Type == gjson.String:
			addString(v.Str)
		}
	}

	switch r := raw.(type) {
	case nil:
	case string:
		trimmed := strings.TrimSpace(r)
		if strings.HasPrefix(trimmed, "[") && gjson.Valid(trimmed) {
			addJSON(gjson.Parse(trimmed))
		} else {
			addString(r)
		}
	case []string:
		for _, s := range r {
			addString(s)
		}
	case []any:
		for _, item := range r {
			switch v := item.(type) {
			case string:
				addString(v)
			case map[string]any:
				if id, ok := v["identifier"].(string); ok {
					addString(id)
				}
			}
		}
	case json.RawMessage:
		addJSON(gjson.ParseBytes(r))
	case gjson.Result:
		addJSON(r)
	}

	return collect(names, establishment)
}

func collect(names []string, establishment string) ParsedRoles {
	seen := make(map[results.Role]bool)
	out := ParsedRoles{EstablishmentID: establishment}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		role, ok := results.ParseRole(name)
		if !ok {
			out.Unknown = append(out.Unknown, name)
			continue
		}
		seen[role] = true
	}

	for _, r := range results.KnownRoles() {
		if seen[r] {
			out.Roles = append(out.Roles, r)
		}
	}
	return out
}

// isEmptyRaw reports whether raw carries no role data at all.
func isEmptyRaw(raw any) bool {
	switch r := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(r) == ""
	case []string:
		return len(r) == 0
	case []any:
		return len(r) == 0
	case json.RawMessage:
		return !knackfield.IsPresent(gjson.ParseBytes(r))
	case gjson.Result:
		return !knackfield.IsPresent(r)
	default:
		return false
	}
}
