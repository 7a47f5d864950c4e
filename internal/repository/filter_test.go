package repository

import "testing"

func TestWhereClause(t *testing.T) {
	t.Parallel()

	var w whereClause
	if w.String() != "" {
		t.Errorf("empty clause = %q", w.String())
	}

	w.add("t.user_id = ?", "u1")
	w.add("(t.title ILIKE ? OR t.description ILIKE ?)", "%a%", "%a%")
	limit := w.next(10)

	want := " WHERE t.user_id = $1 AND (t.title ILIKE $2 OR t.description ILIKE $3)"
	if got := w.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if limit != "$4" {
		t.Errorf("next = %q, want $4", limit)
	}
	if len(w.args) != 4 {
		t.Errorf("args = %v", w.args)
	}
}

func TestLikePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"ship", "%ship%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\`, `%c:\\%`},
	}

	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPage_Offset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page Page
		want int
	}{
		{Page{Page: 1, Limit: 10}, 0},
		{Page{Page: 3, Limit: 10}, 20},
		{Page{Page: 0, Limit: 10}, 0},
	}

	for _, tt := range tests {
		if got := tt.page.Offset(); got != tt.want {
			t.Errorf("%+v.Offset() = %d, want %d", tt.page, got, tt.want)
		}
	}
}
