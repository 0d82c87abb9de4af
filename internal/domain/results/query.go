package results

import (
	"encoding/json"
	"time"
)

// Match joins the rules of a predicate group.
type Match string

const (
	MatchAnd Match = "and"
	MatchOr  Match = "or"
)

// Predicate operators used by scope queries.
const (
	OperatorIs       = "is"
	OperatorContains = "contains"
)

// Predicate is a node of a record filter tree. A leaf carries Field, Operator
// and Value; a group carries Match and Rules. The JSON shape is the one
// accepted by the records endpoint.
type Predicate struct {
	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    string      `json:"value,omitempty"`
	Match    Match       `json:"match,omitempty"`
	Rules    []Predicate `json:"rules,omitempty"`
}

// Leaf builds a field comparison.
func Leaf(field, operator, value string) Predicate {
	return Predicate{Field: field, Operator: operator, Value: value}
}

// Group builds a predicate group.
func Group(match Match, rules ...Predicate) Predicate {
	return Predicate{Match: match, Rules: rules}
}

// IsGroup reports whether p is a group node.
func (p Predicate) IsGroup() bool {
	return p.Match != ""
}

// IsEmpty reports whether p constrains nothing.
func (p Predicate) IsEmpty() bool {
	if p.IsGroup() {
		for _, r := range p.Rules {
			if !r.IsEmpty() {
				return false
			}
		}
		return true
	}
	return p.Field == ""
}

// Encode renders p as the JSON filter parameter.
func (p Predicate) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RecordQuery is a scoped request for every record of an object.
type RecordQuery struct {
	Object string
	// Filter is the top-level "and" group sent with every page.
	Filter Predicate
	// Establishment marks a query bounded by an establishment predicate,
	// which allows a larger page cap.
	Establishment bool
}

// FetchResult is the raw outcome of a paginated fetch.
type FetchResult struct {
	Records      []json.RawMessage
	Pages        int
	TotalPages   int
	TotalRecords int
	// Truncated is set when the page cap stopped the fetch early.
	Truncated bool
	Duration  time.Duration
}
