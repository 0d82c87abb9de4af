package http

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEW QUERY BINDING
// A request that carries any view parameter describes the complete view:
// unset parameters take their defaults. A request with none keeps the view
// stored in the session.
// ══════════════════════════════════════════════════════════════════════════════

// viewParams are the query parameters of the results endpoints.
type viewParams struct {
	Role      string   `query:"role" validate:"omitempty,max=64"`
	Search    string   `query:"search" validate:"max=200"`
	YearGroup string   `query:"year_group" validate:"max=64"`
	Faculty   string   `query:"faculty" validate:"max=128"`
	Group     string   `query:"group" validate:"max=64"`
	Filters   []string `query:"filter" validate:"max=20,dive,required,max=64"`
	Sort      string   `query:"sort" validate:"omitempty,max=32"`
	Dir       string   `query:"dir" validate:"omitempty,oneof=asc desc"`
	PageSize  string   `query:"page_size" validate:"omitempty,oneof=0 10 25 50 100 200 all"`
	Page      string   `query:"page" validate:"omitempty,number,max=6"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("query")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// smartFilterNamespace seeds the deterministic ids of query-string filters,
// so an unchanged filter keeps its id (and the current page) across requests.
var smartFilterNamespace = uuid.MustParse("6f1c1d3e-3a55-4c1e-9d7b-0a3f5b8e2c41")

var viewParamKeys = []string{"role", "search", "year_group", "faculty", "group", "filter", "sort", "dir", "page_size", "page"}

// bindViewState reads the view from r. It returns nil when r carries no view
// parameter at all.
func bindViewState(r *http.Request) (*results.ViewState, error) {
	q := r.URL.Query()

	present := false
	for _, key := range viewParamKeys {
		if q.Has(key) {
			present = true
			break
		}
	}
	if !present {
		return nil, nil
	}

	p := viewParams{
		Role:      strings.TrimSpace(q.Get("role")),
		Search:    q.Get("search"),
		YearGroup: strings.TrimSpace(q.Get("year_group")),
		Faculty:   strings.TrimSpace(q.Get("faculty")),
		Group:     strings.TrimSpace(q.Get("group")),
		Filters:   q["filter"],
		Sort:      strings.TrimSpace(q.Get("sort")),
		Dir:       strings.ToLower(strings.TrimSpace(q.Get("dir"))),
		PageSize:  strings.ToLower(strings.TrimSpace(q.Get("page_size"))),
		Page:      strings.TrimSpace(q.Get("page")),
	}
	if err := validate.Struct(p); err != nil {
		return nil, invalidParams(err)
	}

	st, err := p.viewState()
	if err != nil {
		return nil, invalidParams(err)
	}
	return &st, nil
}

func invalidParams(err error) error {
	return shared.WrapError("http", "BindView", shared.ErrInvalidInput, "invalid query parameters", err)
}

func (p viewParams) viewState() (results.ViewState, error) {
	st := results.DefaultViewState()

	if p.Role != "" {
		st.Role = p.Role
	}
	st.Search = p.Search
	if p.YearGroup != "" {
		st.YearGroup = p.YearGroup
	}
	if p.Faculty != "" {
		st.Faculty = p.Faculty
	}
	if p.Group != "" {
		st.Group = p.Group
	}

	for _, raw := range p.Filters {
		f, err := parseSmartFilter(raw)
		if err != nil {
			return st, err
		}
		st.SmartFilters = append(st.SmartFilters, f)
	}

	if p.Sort != "" {
		st.Sort = results.SortState{Field: p.Sort, Direction: results.SortAsc}
	}
	if p.Dir != "" {
		st.Sort.Direction = results.SortDirection(p.Dir)
	}

	switch p.PageSize {
	case "":
	case "all":
		st.PageSize = results.PageSizeAll
	default:
		n, err := strconv.Atoi(p.PageSize)
		if err != nil {
			return st, fmt.Errorf("page_size: %w", err)
		}
		st.PageSize = n
	}

	if p.Page != "" {
		n, err := strconv.Atoi(p.Page)
		if err != nil {
			return st, fmt.Errorf("page: %w", err)
		}
		st.Page = max(n, 1)
	}

	return st, nil
}

// parseSmartFilter reads one filter parameter and gives it an id derived
// from its content.
func parseSmartFilter(raw string) (results.SmartFilter, error) {
	f, err := results.ParseSmartFilter(raw)
	if err != nil {
		return results.SmartFilter{}, err
	}
	f.ID = uuid.NewSHA1(smartFilterNamespace, []byte(f.Key())).String()
	if err := f.Validate(); err != nil {
		return results.SmartFilter{}, err
	}
	return f, nil
}
