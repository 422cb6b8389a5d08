// Package cachekey derives deterministic result-cache and mirror keys.
package cachekey

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/filters"
)

const (
	reportPrefix = "report"
	mirrorPrefix = "mirror"
)

// Params is everything that distinguishes one cached report from another.
type Params struct {
	Kind             string
	TenantID         int64
	ModuleType       domain.ModuleType
	Modules          []domain.ModuleType
	Period           domain.PeriodSelection
	Filters          domain.NormalizedFilters
	Comparison       *domain.PeriodSelection
	BenchmarkSchools []string
	// Extra carries report-specific discriminators such as a question ref or year, in caller order.
	Extra []string
}

// Build concatenates the parts of p into a key. Map iteration order never leaks into the result.
func Build(p Params) string {
	var b strings.Builder
	b.WriteString(TenantPrefix(p.TenantID))
	b.WriteString(p.Kind)
	b.WriteByte(':')
	b.WriteString(string(p.ModuleType))
	if len(p.Modules) > 0 {
		mods := make([]string, 0, len(p.Modules))
		for _, m := range p.Modules {
			mods = append(mods, string(m))
		}
		sort.Strings(mods)
		b.WriteByte('+')
		b.WriteString(strings.Join(mods, "+"))
	}
	b.WriteByte(':')
	writePeriod(&b, p.Period)
	b.WriteString(":f=")
	b.WriteString(SerializeFilters(p.Filters.Filters))
	if len(p.Filters.SurveyProgress) > 0 {
		progress := append([]string(nil), p.Filters.SurveyProgress...)
		sort.Strings(progress)
		b.WriteString(":sp=")
		b.WriteString(strings.Join(progress, ","))
	}
	if cats := p.Filters.NpsCategories(); len(cats) > 0 {
		b.WriteString(":nps=")
		for i, c := range cats {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(string(c))
		}
	}
	for _, x := range p.Extra {
		b.WriteString(":x=")
		b.WriteString(x)
	}
	if p.Comparison != nil {
		b.WriteString(":cmp=")
		writePeriod(&b, *p.Comparison)
	}
	if schools := filters.NormalizeSchoolTypes(p.BenchmarkSchools); len(schools) > 0 {
		b.WriteString(":bs=")
		b.WriteString(strings.Join(schools, ","))
	}
	return b.String()
}

// TenantPrefix is shared by every report key of a tenant, for prefix invalidation.
func TenantPrefix(tenantID int64) string {
	return reportPrefix + ":t" + strconv.FormatInt(tenantID, 10) + ":"
}

// MirrorKey scopes a last-good-value slot to one user of one tenant.
func MirrorKey(tenantID, userID int64, family string) string {
	return mirrorPrefix + ":t" + strconv.FormatInt(tenantID, 10) + ":u" + strconv.FormatInt(userID, 10) + ":" + family
}

// SerializeFilters renders dimensions and their accepted values in sorted order.
func SerializeFilters(f domain.FilterSet) string {
	dims := f.Dimensions()
	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		values := f.Accepted(dim)
		if len(values) == 0 {
			continue
		}
		parts = append(parts, dim+"="+strings.Join(values, ","))
	}
	return strings.Join(parts, "|")
}

func writePeriod(b *strings.Builder, sel domain.PeriodSelection) {
	b.WriteString(string(sel.Token))
	if sel.Token == domain.PeriodCustom {
		b.WriteByte('#')
		b.WriteString(ContentHash(sel.CustomRange))
	}
}

// ContentHash is a short stable hash for free-form key parts.
func ContentHash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}
