package chat

import "fmt"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page is the pagination payload returned alongside an answer.
type Page struct {
	Page      int              `json:"page"`
	PageSize  int              `json:"pageSize"`
	TotalRows int              `json:"totalRows"`
	HasMore   bool             `json:"hasMore"`
	Rows      []map[string]any `json:"rows"`
}

// WrapPage wraps a query for one page of results. The original query stays
// untouched inside the subselect so its ordering survives.
func WrapPage(query string, page, pageSize int) string {
	if page <= 1 {
		return fmt.Sprintf("SELECT * FROM (%s) AS paginated LIMIT %d", query, pageSize)
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS paginated LIMIT %d OFFSET %d", query, pageSize, (page-1)*pageSize)
}

// BuildPage assembles the page payload. When the estimate is unknown the
// rows returned so far serve as the total, which makes hasMore false.
func BuildPage(page, pageSize int, totalRows *int, rows []map[string]any) Page {
	total := (page-1)*pageSize + len(rows)
	if totalRows != nil {
		total = *totalRows
	}
	return Page{
		Page:      page,
		PageSize:  pageSize,
		TotalRows: total,
		HasMore:   page*pageSize < total,
		Rows:      rows,
	}
}

// ConfirmationPrompt renders the message asking the user whether to page
// through a large result.
func ConfirmationPrompt(totalRows *int, pageSize int) string {
	if totalRows != nil {
		return fmt.Sprintf("Essa consulta retorna aproximadamente %d resultados. Quer que eu mostre os primeiros %d?", *totalRows, pageSize)
	}
	return fmt.Sprintf("Essa consulta pode retornar muitos resultados. Quer que eu mostre os primeiros %d?", pageSize)
}

// NeedsConfirmation reports whether an unlimited query must be confirmed
// before executing: the estimate is unknown or exceeds one page.
func NeedsConfirmation(query string, totalRows *int, pageSize int) bool {
	if HasLimit(query) {
		return false
	}
	return totalRows == nil || *totalRows > pageSize
}

// ClampPageSize normalizes a requested page size into the allowed range.
// Zero bounds take the package defaults.
func ClampPageSize(pageSize, defaultSize, maxSize int) int {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if pageSize <= 0 {
		return defaultSize
	}
	if pageSize > maxSize {
		return maxSize
	}
	return pageSize
}
