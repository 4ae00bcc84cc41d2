package chat

import (
	"fmt"
	"regexp"
	"strings"
)

// filterKeys lists the semantic filter keys in the order they are rendered.
var filterKeys = []string{
	"project_name",
	"country_name",
	"region_name",
	"provider_name",
	"fund_name",
	"year",
	"year_range",
}

var (
	nameFilterRe  = regexp.MustCompile(`(?i)\b(?:vcd\.)?(project_name|country_name|region_name|provider_name|fund_name)\s*(?:=|ILIKE|LIKE)\s*'((?:[^']|'')*)'`)
	yearEqRe      = regexp.MustCompile(`(?i)\byear\s*=\s*(\d{4})\b`)
	yearBetweenRe = regexp.MustCompile(`(?i)\byear\s+BETWEEN\s+(\d{4})\s+AND\s+(\d{4})\b`)
	yearRangeRe   = regexp.MustCompile(`(?i)\byear\s*>=\s*(\d{4})\b[\s\S]*?\byear\s*<=\s*(\d{4})\b`)
)

// deriveFilters extracts semantic filter literals from SQL text. It is a pure
// function of the query: the session re-runs it on every lastQuery change.
func deriveFilters(query string) map[string]string {
	filters := map[string]string{}
	if strings.TrimSpace(query) == "" {
		return filters
	}
	for _, m := range nameFilterRe.FindAllStringSubmatch(query, -1) {
		key := strings.ToLower(m[1])
		value := strings.ReplaceAll(m[2], "''", "'")
		value = strings.Trim(value, "%")
		if value != "" {
			filters[key] = value
		}
	}
	if m := yearBetweenRe.FindStringSubmatch(query); m != nil {
		filters["year_range"] = m[1] + "-" + m[2]
	} else if m := yearRangeRe.FindStringSubmatch(query); m != nil {
		filters["year_range"] = m[1] + "-" + m[2]
	} else if m := yearEqRe.FindStringSubmatch(query); m != nil {
		filters["year"] = m[1]
	}
	return filters
}

var filterLabels = map[string]string{
	"project_name":  "projeto",
	"country_name":  "país",
	"region_name":   "região",
	"provider_name": "provedor",
	"fund_name":     "fundo",
	"year":          "ano",
	"year_range":    "período",
}

// renderFilters produces the human-readable filter summary used in the
// recent-context block. Empty filters render as "nenhum".
func renderFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return "nenhum"
	}
	var parts []string
	for _, key := range filterKeys {
		if value, ok := filters[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", filterLabels[key], value))
		}
	}
	return strings.Join(parts, ", ")
}
