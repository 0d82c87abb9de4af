// Package access resolves a viewer's access scope and turns it into a scoped
// record query. Every results query carries either an establishment predicate
// or at least one staff-record predicate.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/knackfield"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEWER
// ══════════════════════════════════════════════════════════════════════════════

// Viewer identifies the staff member asking for results.
type Viewer struct {
	Email string
	// RawRoles is the role data supplied by the host: a string, a slice or
	// rendered markup. Empty means the roles are read from the profile record.
	RawRoles any
}

// Validate validates the viewer.
func (v Viewer) Validate() error {
	email := strings.TrimSpace(v.Email)
	if email == "" || !strings.Contains(email, "@") {
		return shared.ErrMissingIdentity
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// RecordFinder looks up single records.
type RecordFinder interface {
	// FindFirst returns the first record of object matching filter. The
	// boolean is false when nothing matched.
	FindFirst(ctx context.Context, object string, filter results.Predicate) ([]byte, bool, error)
}

// LookupObject is an object searched by email.
type LookupObject struct {
	Object     string `yaml:"object"`
	EmailField string `yaml:"email_field"`
}

// Directory names the objects and fields used to resolve a scope.
type Directory struct {
	Profile                   LookupObject
	ProfileRolesField         string
	ProfileEstablishmentField string

	StaffAdmin                   LookupObject
	StaffAdminEstablishmentField string

	Tutor          LookupObject
	HeadOfYear     LookupObject
	SubjectTeacher LookupObject
}

// DefaultDirectory returns the production object layout.
func DefaultDirectory() Directory {
	return Directory{
		Profile:                      LookupObject{Object: "object_3", EmailField: "field_70"},
		ProfileRolesField:            "field_73",
		ProfileEstablishmentField:    "field_122",
		StaffAdmin:                   LookupObject{Object: "object_5", EmailField: "field_86"},
		StaffAdminEstablishmentField: "field_133",
		Tutor:                        LookupObject{Object: "object_7", EmailField: "field_96"},
		HeadOfYear:                   LookupObject{Object: "object_18", EmailField: "field_417"},
		SubjectTeacher:               LookupObject{Object: "object_78", EmailField: "field_1879"},
	}
}

// staffObject returns the lookup object of a staff role.
func (d Directory) staffObject(r results.Role) (LookupObject, bool) {
	switch r {
	case results.RoleTutor:
		return d.Tutor, true
	case results.RoleHeadOfYear:
		return d.HeadOfYear, true
	case results.RoleSubjectTeacher:
		return d.SubjectTeacher, true
	default:
		return LookupObject{}, false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolver resolves access scopes.
type Resolver struct {
	finder RecordFinder
	dir    Directory
	logger *logger.Logger
	now    func() time.Time
}

// NewResolver creates a new Resolver.
func NewResolver(finder RecordFinder, dir Directory, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		finder: finder,
		dir:    dir,
		logger: log.With(logger.Component("access")),
		now:    time.Now,
	}
}

// Resolve determines the viewer's roles and the ids that scope each of them.
// Lookups for different roles run concurrently and all finish before Resolve
// returns. A transport error during any lookup fails the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, v Viewer) (*results.AccessScope, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(v.Email)
	log := r.logger.With(logger.Viewer(email))

	parsed := ParseRoles(v.RawRoles)
	if isEmptyRaw(v.RawRoles) {
		profile, err := r.lookupProfile(ctx, email)
		if err != nil {
			return nil, err
		}
		parsed = profile
	}
	if len(parsed.Unknown) > 0 {
		log.Debug("dropped unknown roles", logger.Any("unknown", parsed.Unknown))
	}
	if !hasStaffRole(parsed.Roles) {
		return nil, shared.ErrNoRoles
	}

	scope := &results.AccessScope{
		ViewerEmail:     email,
		EstablishmentID: parsed.EstablishmentID,
		StaffRecordIDs:  make(map[results.Role]string),
	}

	var (
		mu      sync.Mutex
		dropped = make(map[results.Role]bool)
	)
	g, gctx := errgroup.WithContext(ctx)

	for _, role := range parsed.Roles {
		switch {
		case role == results.RoleStaffAdmin:
			g.Go(func() error {
				id, err := r.lookupAdminEstablishment(gctx, email)
				if err != nil {
					return err
				}
				mu.Lock()
				scope.EstablishmentID = id
				mu.Unlock()
				return nil
			})

		case role.NeedsStaffRecord():
			obj, _ := r.dir.staffObject(role)
			g.Go(func() error {
				id, ok, err := r.lookupStaffRecord(gctx, obj, email)
				if err != nil {
					return fmt.Errorf("lookup %s record: %w", role, err)
				}
				mu.Lock()
				defer mu.Unlock()
				if !ok {
					dropped[role] = true
					return nil
				}
				scope.StaffRecordIDs[role] = id
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, role := range parsed.Roles {
		if dropped[role] {
			log.Warn("no staff record for role, dropping it", logger.String("role", string(role)))
			continue
		}
		scope.Roles = append(scope.Roles, role)
	}
	scope.ResolvedAt = r.now()

	log.Info("access scope resolved",
		logger.Roles(roleNames(scope.Roles)),
		logger.Establishment(scope.EstablishmentID),
	)
	return scope, nil
}

// lookupProfile reads roles and establishment from the viewer's profile.
func (r *Resolver) lookupProfile(ctx context.Context, email string) (ParsedRoles, error) {
	rec, ok, err := r.finder.FindFirst(ctx, r.dir.Profile.Object, byEmail(r.dir.Profile.EmailField, email))
	if err != nil {
		return ParsedRoles{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !ok {
		return ParsedRoles{}, nil
	}

	profile := gjson.ParseBytes(rec)
	parsed := ParseRoles(knackfield.GetRaw(profile, r.dir.ProfileRolesField))
	if id := knackfield.ConnectionID(knackfield.GetRaw(profile, r.dir.ProfileEstablishmentField)); id != "" {
		parsed.EstablishmentID = id
	}
	return parsed, nil
}

// lookupAdminEstablishment returns the establishment of a Staff Admin. A
// missing record or empty connection is a hard stop.
func (r *Resolver) lookupAdminEstablishment(ctx context.Context, email string) (string, error) {
	rec, ok, err := r.finder.FindFirst(ctx, r.dir.StaffAdmin.Object, byEmail(r.dir.StaffAdmin.EmailField, email))
	if err != nil {
		return "", fmt.Errorf("lookup staff admin record: %w", err)
	}
	if !ok {
		return "", shared.WrapError("access", "Resolve", shared.ErrEstablishmentUnresolved,
			"Unable to determine your establishment. Please contact support.",
			errors.New("no staff admin record"))
	}

	id := knackfield.ConnectionID(knackfield.GetRaw(gjson.ParseBytes(rec), r.dir.StaffAdminEstablishmentField))
	if id == "" {
		return "", shared.WrapError("access", "Resolve", shared.ErrEstablishmentUnresolved,
			"Unable to determine your establishment. Please contact support.",
			errors.New("staff admin record has no establishment"))
	}
	return id, nil
}

// lookupStaffRecord returns the id of the viewer's record in a staff object.
func (r *Resolver) lookupStaffRecord(ctx context.Context, obj LookupObject, email string) (string, bool, error) {
	rec, ok, err := r.finder.FindFirst(ctx, obj.Object, byEmail(obj.EmailField, email))
	if err != nil || !ok {
		return "", false, err
	}
	id := gjson.GetBytes(rec, "id").String()
	return id, id != "", nil
}

func byEmail(field, email string) results.Predicate {
	return results.Group(results.MatchAnd, results.Leaf(field, results.OperatorIs, email))
}

func hasStaffRole(roles []results.Role) bool {
	for _, r := range roles {
		if r != results.RoleStudent {
			return true
		}
	}
	return false
}

func roleNames(roles []results.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
