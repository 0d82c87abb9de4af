package access

import (
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// BuildQuery turns a scope into the results query. A Staff Admin is scoped by
// establishment alone. Other roles get one "contains" predicate per held role,
// joined with "or" when there are several, and ANDed with the establishment
// predicate when an establishment is known. A scope that would produce an
// unbounded query is rejected.
func BuildQuery(scope *results.AccessScope, mapping results.SchemaMapping, establishmentOp string) (results.RecordQuery, error) {
	if scope == nil {
		return results.RecordQuery{}, shared.ErrUnscopedQuery
	}
	if establishmentOp != results.OperatorIs {
		establishmentOp = results.OperatorContains
	}

	var rules []results.Predicate

	hasEstablishment := scope.EstablishmentID != "" && mapping.Connections.Establishment != ""
	if hasEstablishment {
		rules = append(rules, results.Leaf(mapping.Connections.Establishment, establishmentOp, scope.EstablishmentID))
	}

	if !scope.IsAdmin() {
		var leaves []results.Predicate
		for _, role := range scope.Roles {
			id := scope.StaffRecordIDs[role]
			field := mapping.Connections.ForRole(role)
			if !role.NeedsStaffRecord() || id == "" || field == "" {
				continue
			}
			leaves = append(leaves, results.Leaf(field, results.OperatorContains, id))
		}

		switch len(leaves) {
		case 0:
			return results.RecordQuery{}, shared.ErrUnscopedQuery
		case 1:
			rules = append(rules, leaves[0])
		default:
			rules = append(rules, results.Group(results.MatchOr, leaves...))
		}
	} else if !hasEstablishment {
		return results.RecordQuery{}, shared.ErrUnscopedQuery
	}

	return results.RecordQuery{
		Object:        mapping.Object,
		Filter:        results.Group(results.MatchAnd, rules...),
		Establishment: hasEstablishment,
	}, nil
}
