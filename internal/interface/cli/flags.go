package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// viewerFlags identify whose results are loaded.
type viewerFlags struct {
	email string
	roles string
}

func (f *viewerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "viewer email (required)")
	cmd.Flags().StringVar(&f.roles, "roles", "", "viewer roles as supplied by the host, e.g. \"Staff Admin,Tutor\"; empty reads the profile record")
	_ = cmd.MarkFlagRequired("email")
}

func (f *viewerFlags) viewer() access.Viewer {
	v := access.Viewer{Email: strings.TrimSpace(f.email)}
	if r := strings.TrimSpace(f.roles); r != "" {
		v.RawRoles = r
	}
	return v
}

// viewFlags mirror the view query parameters of the HTTP API.
type viewFlags struct {
	role      string
	search    string
	yearGroup string
	faculty   string
	group     string
	filters   []string
	sort      string
	dir       string
	pageSize  string
	page      int
}

func (f *viewFlags) register(cmd *cobra.Command, paged bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.role, "role", results.RoleFilterAll, "role filter (all or a role tag)")
	fs.StringVar(&f.search, "search", "", "case-insensitive search over name, email and group")
	fs.StringVar(&f.yearGroup, "year-group", results.FilterAll, "year group filter")
	fs.StringVar(&f.faculty, "faculty", results.FilterAll, "faculty filter")
	fs.StringVar(&f.group, "group", results.FilterAll, "group filter")
	fs.StringArrayVar(&f.filters, "filter", nil, "smart filter dimension:cycle:operator:value, e.g. vision:1:<:4 (repeatable)")
	fs.StringVar(&f.sort, "sort", results.SortFieldName, "sort field: name, email, group, yearGroup, faculty or <dimension>_<cycle>")
	fs.StringVar(&f.dir, "dir", string(results.SortAsc), "sort direction: asc or desc")
	if paged {
		fs.StringVar(&f.pageSize, "page-size", strconv.Itoa(results.DefaultPageSize), "page size: 10, 25, 50, 100, 200 or all")
		fs.IntVar(&f.page, "page", 1, "page number")
	}
}

// state converts the flags to a view state. Smart filters get fresh ids.
func (f *viewFlags) state() (results.ViewState, error) {
	st := results.DefaultViewState()
	st.Role = orAll(f.role, results.RoleFilterAll)
	st.Search = f.search
	st.YearGroup = orAll(f.yearGroup, results.FilterAll)
	st.Faculty = orAll(f.faculty, results.FilterAll)
	st.Group = orAll(f.group, results.FilterAll)

	for _, raw := range f.filters {
		sf, err := results.ParseSmartFilter(raw)
		if err != nil {
			return st, fmt.Errorf("--filter %q: %w", raw, err)
		}
		sf.ID = uuid.NewString()
		if err := sf.Validate(); err != nil {
			return st, fmt.Errorf("--filter %q: %w", raw, err)
		}
		st.SmartFilters = append(st.SmartFilters, sf)
	}

	if f.sort != "" {
		if !results.ValidSortField(f.sort) {
			return st, fmt.Errorf("--sort: cannot sort by %q", f.sort)
		}
		st.Sort.Field = f.sort
	}
	switch dir := results.SortDirection(strings.ToLower(f.dir)); dir {
	case "":
	case results.SortAsc, results.SortDesc:
		st.Sort.Direction = dir
	default:
		return st, fmt.Errorf("--dir: must be asc or desc, got %q", f.dir)
	}

	switch ps := strings.ToLower(strings.TrimSpace(f.pageSize)); ps {
	case "":
	case "all":
		st.PageSize = results.PageSizeAll
	default:
		n, err := strconv.Atoi(ps)
		if err != nil || !results.ValidPageSize(n) {
			return st, fmt.Errorf("--page-size: must be one of 10, 25, 50, 100, 200 or all, got %q", f.pageSize)
		}
		st.PageSize = n
	}
	if f.page > 0 {
		st.Page = f.page
	}
	return st, nil
}

func orAll(v, all string) string {
	if v = strings.TrimSpace(v); v == "" {
		return all
	}
	return v
}
