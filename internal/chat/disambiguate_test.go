package chat

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSanitizeMention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		kind DisambiguationKind
		want string
	}{
		{"Angola?", KindGeo, "Angola"},
		{"o Brasil", KindGeo, "Brasil"},
		{"projeto Amazônia Viva", KindProject, "Amazônia Viva"},
		{"o projeto Amazônia Viva", KindProject, "Amazônia Viva"},
		{"fundo verde", KindFund, "verde"},
		{"fund GCF.", KindFund, "GCF"},
		{"da Guiné", KindGeo, "Guiné"},
		{"projeto", KindProject, "projeto"},
	}
	for _, tt := range tests {
		if got := sanitizeMention(tt.in, tt.kind); got != tt.want {
			t.Errorf("sanitize(%q, %s) = %q, want %q", tt.in, tt.kind, got, tt.want)
		}
	}
}

func TestApplyChoice(t *testing.T) {
	t.Parallel()

	pending := &PendingDisambiguation{
		Kind:    KindGeo,
		Mention: "Guiné",
		Options: []string{"Guiné", "Guiné-Bissau"},
	}

	if choice, ok := ApplyChoice(pending, "Guiné-Bissau"); !ok || choice != "Guiné-Bissau" {
		t.Errorf("exact choice = %q, %t", choice, ok)
	}
	if choice, ok := ApplyChoice(pending, "quero a guiné-bissau"); !ok || choice != "Guiné-Bissau" {
		t.Errorf("containing choice = %q, %t", choice, ok)
	}
	if _, ok := ApplyChoice(pending, "quanto foi doado para o Nepal?"); ok {
		t.Error("unrelated message matched a pending option")
	}
}

func TestApplyChoiceAffirmativeConfirm(t *testing.T) {
	t.Parallel()

	pending := &PendingDisambiguation{
		Kind:    KindProject,
		Mention: "amazonia",
		Options: []string{"Amazon Fund Project"},
	}
	if choice, ok := ApplyChoice(pending, "Sim"); !ok || choice != "Amazon Fund Project" {
		t.Errorf("affirmative = %q, %t", choice, ok)
	}

	multi := &PendingDisambiguation{Options: []string{"A", "B"}}
	if _, ok := ApplyChoice(multi, "sim"); ok {
		t.Error("bare yes cannot pick among multiple options")
	}
}

func newMockDisambiguator(t *testing.T) (*Disambiguator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewDisambiguator(NewLookup(db, testLogger()), testLogger()), mock
}

func TestResolveConfirmedShortCircuit(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	res, err := d.Resolve(context.Background(), KindGeo, "Angola", "quanto para Angola?", "Angola")
	if err != nil {
		t.Fatal(err)
	}
	if res.canonical != "Angola" || res.prompt != nil {
		t.Fatalf("resolution = %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("confirmed mention must not hit the database: %v", err)
	}
}

func TestResolveExactCanonicalNoPrompt(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Angola").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Angola"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE name ILIKE $1`)).
		WithArgs("%Angola%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Angola"))

	res, err := d.Resolve(context.Background(), KindGeo, "Angola", "Qual projeto mais doou para Angola?", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.canonical != "Angola" {
		t.Errorf("canonical = %q", res.canonical)
	}
	if res.prompt != nil {
		t.Error("exact canonical mention must not prompt")
	}
}

func TestResolveSingleFuzzyCandidateConfirms(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Brasil").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE name ILIKE $1`)).
		WithArgs("%Brasil%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT name FROM countries`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Brazil").AddRow("Nepal"))

	res, err := d.Resolve(context.Background(), KindGeo, "Brasil", "quanto foi doado para o Brasil?", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.prompt == nil || res.prompt.Mode != ModeConfirm {
		t.Fatalf("resolution = %+v", res)
	}
	if res.pending == nil || len(res.pending.Options) != 1 || res.pending.Options[0] != "Brazil" {
		t.Fatalf("pending = %+v", res.pending)
	}
	if !strings.Contains(res.pending.Question, "Brazil") {
		t.Errorf("pending question %q must carry the canonical name", res.pending.Question)
	}
}

func TestResolveMultipleCandidatesSelect(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Guiné").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Guiné"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE name ILIKE $1`)).
		WithArgs("%Guiné%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Guiné").AddRow("Guiné-Bissau"))

	res, err := d.Resolve(context.Background(), KindGeo, "Guiné", "quanto recebeu a Guiné?", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.prompt == nil || res.prompt.Mode != ModeSelect {
		t.Fatalf("resolution = %+v", res)
	}
	if len(res.prompt.Options) != 2 {
		t.Fatalf("options = %+v", res.prompt.Options)
	}
	if res.prompt.Options[0].Name != "Guiné" || res.prompt.Options[1].Name != "Guiné-Bissau" {
		t.Errorf("options = %+v", res.prompt.Options)
	}
}

func TestResolveShorteningPrefersLongestMatch(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	// Full three-word mention misses everywhere.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM projects WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Amazonia Viva 2020").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM projects WHERE name ILIKE $1`)).
		WithArgs("%Amazonia Viva 2020%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT name FROM projects`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Water Access Initiative"))
	// Two-word prefix hits via wildcard.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM projects WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Amazonia Viva").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM projects WHERE name ILIKE $1`)).
		WithArgs("%Amazonia Viva%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Projeto Amazonia Viva"))

	candidates, matched, err := d.candidatesShortening(context.Background(), KindProject, "Amazonia Viva 2020")
	if err != nil {
		t.Fatal(err)
	}
	if matched != "Amazonia Viva" {
		t.Errorf("matched = %q", matched)
	}
	if len(candidates) != 1 || candidates[0] != "Projeto Amazonia Viva" {
		t.Errorf("candidates = %v", candidates)
	}
}

func TestResolveUnknownMentionPassesThrough(t *testing.T) {
	t.Parallel()

	d, mock := newMockDisambiguator(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE LOWER(name) = LOWER($1)`)).
		WithArgs("Atlantis").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM countries WHERE name ILIKE $1`)).
		WithArgs("%Atlantis%", maxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT name FROM countries`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Angola"))

	res, err := d.Resolve(context.Background(), KindGeo, "Atlantis", "quanto para Atlantis?", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.canonical != "" || res.prompt != nil {
		t.Fatalf("unknown mention must pass through, got %+v", res)
	}
}
