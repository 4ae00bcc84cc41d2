package chat

import "testing"

func TestWrapPage(t *testing.T) {
	t.Parallel()

	query := "SELECT vcd.project_name FROM view_commitments_detailed vcd ORDER BY vcd.project_name"

	first := WrapPage(query, 1, 10)
	if first != "SELECT * FROM ("+query+") AS paginated LIMIT 10" {
		t.Errorf("page 1 = %q", first)
	}

	second := WrapPage(query, 2, 10)
	if second != "SELECT * FROM ("+query+") AS paginated LIMIT 10 OFFSET 10" {
		t.Errorf("page 2 = %q", second)
	}
}

func TestBuildPageHasMore(t *testing.T) {
	t.Parallel()

	total := 500
	rows := make([]map[string]any, 10)

	page := BuildPage(2, 10, &total, rows)
	if !page.HasMore {
		t.Error("page 2 of 500 should have more")
	}
	if page.TotalRows != 500 {
		t.Errorf("totalRows = %d", page.TotalRows)
	}

	last := BuildPage(50, 10, &total, rows)
	if last.HasMore {
		t.Error("page 50 of 500 should be the last")
	}

	// hasMore is exactly page*pageSize < totalRows.
	for _, tc := range []struct {
		page, pageSize, total int
		want                  bool
	}{
		{1, 10, 11, true},
		{1, 10, 10, false},
		{3, 7, 21, false},
		{3, 7, 22, true},
	} {
		total := tc.total
		got := BuildPage(tc.page, tc.pageSize, &total, nil).HasMore
		if got != tc.want {
			t.Errorf("hasMore(page=%d size=%d total=%d) = %t", tc.page, tc.pageSize, tc.total, got)
		}
	}
}

func TestBuildPageUnknownTotal(t *testing.T) {
	t.Parallel()

	rows := make([]map[string]any, 4)
	page := BuildPage(2, 10, nil, rows)
	if page.TotalRows != 14 {
		t.Errorf("fallback total = %d, want rows seen so far", page.TotalRows)
	}
	if page.HasMore {
		t.Error("unknown estimate falls back to no further pages")
	}
}

func TestNeedsConfirmation(t *testing.T) {
	t.Parallel()

	limited := "SELECT vcd.project_name FROM view_commitments_detailed vcd LIMIT 5"
	if NeedsConfirmation(limited, nil, 10) {
		t.Error("explicit LIMIT never needs confirmation")
	}

	open := "SELECT vcd.project_name FROM view_commitments_detailed vcd"
	if !NeedsConfirmation(open, nil, 10) {
		t.Error("unknown estimate needs confirmation")
	}
	big := 500
	if !NeedsConfirmation(open, &big, 10) {
		t.Error("estimate above one page needs confirmation")
	}
	small := 7
	if NeedsConfirmation(open, &small, 10) {
		t.Error("estimate within one page executes directly")
	}
}

func TestClampPageSize(t *testing.T) {
	t.Parallel()

	if got := ClampPageSize(0, 0, 0); got != DefaultPageSize {
		t.Errorf("clamp(0) = %d", got)
	}
	if got := ClampPageSize(500, 0, 0); got != MaxPageSize {
		t.Errorf("clamp(500) = %d", got)
	}
	if got := ClampPageSize(25, 0, 0); got != 25 {
		t.Errorf("clamp(25) = %d", got)
	}
	if got := ClampPageSize(0, 20, 0); got != 20 {
		t.Errorf("clamp with configured default = %d", got)
	}
	if got := ClampPageSize(80, 0, 30); got != 30 {
		t.Errorf("clamp with configured max = %d", got)
	}
}
