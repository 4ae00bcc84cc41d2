package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

// DisambiguationMode distinguishes a single-candidate confirmation prompt
// from a multi-candidate selection prompt.
type DisambiguationMode string

const (
	ModeConfirm DisambiguationMode = "confirm"
	ModeSelect  DisambiguationMode = "select"
)

// Disambiguation is a prompt surfaced to the user instead of an answer.
type Disambiguation struct {
	Message string
	Options []Option
	Mode    DisambiguationMode
}

// Option is one candidate the user may pick.
type Option struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Disambiguator resolves fuzzy country/project/fund mentions to canonical
// names, tracking a pending prompt across turns.
type Disambiguator struct {
	lookup *Lookup
	logger logging.Logger
}

func NewDisambiguator(lookup *Lookup, logger logging.Logger) *Disambiguator {
	return &Disambiguator{lookup: lookup, logger: logger}
}

var kindCategories = map[DisambiguationKind]EntityCategory{
	KindGeo:     CategoryCountry,
	KindProject: CategoryProject,
	KindFund:    CategoryFund,
}

var kindQualifiers = map[DisambiguationKind]string{
	KindGeo:     "o país",
	KindProject: "o projeto",
	KindFund:    "o fundo",
}

// leading tokens stripped from mentions before lookup
var (
	leadingArticles = map[string]bool{
		"o": true, "a": true, "os": true, "as": true,
		"um": true, "uma": true, "do": true, "da": true,
		"dos": true, "das": true, "de": true, "no": true,
		"na": true, "para": true, "pro": true, "the": true,
	}
	leadingNouns = map[string]bool{
		"projeto": true, "project": true, "fundo": true, "fund": true,
	}
)

// sanitizeMention strips trailing punctuation, a leading article or
// preposition, and (for project/fund) a leading generic noun.
func sanitizeMention(mention string, kind DisambiguationKind) string {
	mention = strings.TrimSpace(mention)
	mention = strings.TrimRight(mention, ".,;:!?")
	words := strings.Fields(mention)
	if len(words) > 1 && leadingArticles[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if kind != KindGeo && len(words) > 1 && leadingNouns[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// resolution carries the outcome for a single mention.
type resolution struct {
	// canonical is set when the mention resolved without a prompt.
	canonical string
	// prompt is set when the user must confirm or choose.
	prompt *Disambiguation
	// pending is the state to store alongside a prompt. In confirm mode its
	// Question already carries the canonical substitution.
	pending *PendingDisambiguation
}

// Resolve handles one mention for one category. A zero-value resolution
// means the mention is unknown and passes through to the generator.
func (d *Disambiguator) Resolve(ctx context.Context, kind DisambiguationKind, mention, question, confirmed string) (resolution, error) {
	sanitized := sanitizeMention(mention, kind)
	if sanitized == "" {
		return resolution{}, nil
	}

	// Already confirmed this session: substitute directly, no prompt.
	if confirmed != "" && strings.EqualFold(sanitized, confirmed) {
		return resolution{canonical: confirmed}, nil
	}

	candidates, matched, err := d.candidatesShortening(ctx, kind, sanitized)
	if err != nil {
		return resolution{}, err
	}
	switch len(candidates) {
	case 0:
		return resolution{}, nil
	case 1:
		canonical := candidates[0]
		if strings.EqualFold(sanitized, canonical) {
			// The user already typed the canonical name.
			return resolution{canonical: canonical}, nil
		}
		rewritten := substituteMention(question, matched, kindQualifiers[kind]+" "+quoteName(canonical))
		message := fmt.Sprintf("Você quis dizer %s %q? Responda sim para confirmar.", kindQualifiers[kind], canonical)
		return resolution{
			prompt: &Disambiguation{
				Message: message,
				Options: []Option{{Name: canonical, Kind: string(kind)}},
				Mode:    ModeConfirm,
			},
			pending: &PendingDisambiguation{
				Kind:     kind,
				Mention:  sanitized,
				Question: rewritten,
				Options:  candidates,
			},
		}, nil
	default:
		options := make([]Option, 0, len(candidates))
		for _, name := range candidates {
			options = append(options, Option{Name: name, Kind: string(kind)})
		}
		message := fmt.Sprintf("Encontrei mais de um resultado para %q: %s. Qual deles você quer?",
			sanitized, strings.Join(candidates, ", "))
		return resolution{
			prompt: &Disambiguation{
				Message: message,
				Options: options,
				Mode:    ModeSelect,
			},
			pending: &PendingDisambiguation{
				Kind:     kind,
				Mention:  sanitized,
				Question: question,
				Options:  candidates,
			},
		}, nil
	}
}

// candidatesShortening retries the lookup with progressively fewer trailing
// words, preferring the longest mention that yields any match. Returns the
// candidates and the mention text that produced them.
func (d *Disambiguator) candidatesShortening(ctx context.Context, kind DisambiguationKind, mention string) ([]string, string, error) {
	category := kindCategories[kind]
	words := strings.Fields(mention)
	for n := len(words); n >= 1; n-- {
		attempt := strings.Join(words[:n], " ")
		candidates, err := d.lookup.Candidates(ctx, category, attempt)
		if err != nil {
			return nil, "", err
		}
		if len(candidates) > 0 {
			return candidates, attempt, nil
		}
	}
	return nil, mention, nil
}

// ApplyChoice matches a new user message against a pending prompt. The
// second return is false when the message is unrelated and the pending
// state should be dropped.
func ApplyChoice(pending *PendingDisambiguation, message string) (string, bool) {
	normalized := normalizeText(message)
	for _, name := range pending.Options {
		if normalized == normalizeText(name) {
			return name, true
		}
	}
	// Longest containment wins so "guiné-bissau" is not captured by "guiné".
	best := ""
	for _, name := range pending.Options {
		candidate := normalizeText(name)
		if strings.Contains(normalized, candidate) && len(candidate) > len(normalizeText(best)) {
			best = name
		}
	}
	if best != "" {
		return best, true
	}
	// Bare confirmation picks the single confirm-mode candidate.
	if len(pending.Options) == 1 && isAffirmative(normalized) {
		return pending.Options[0], true
	}
	return "", false
}

var affirmatives = map[string]bool{
	"sim": true, "s": true, "isso": true, "claro": true,
	"exato": true, "yes": true, "pode": true, "confirmo": true,
	"isso mesmo": true, "pode ser": true,
}

func isAffirmative(normalized string) bool {
	return affirmatives[strings.TrimRight(normalized, ".!")]
}

// normalizeText lowercases and collapses whitespace for loose matching.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// substituteMention replaces the first case-insensitive occurrence of the
// mention inside the question.
func substituteMention(question, mention, replacement string) string {
	lower := strings.ToLower(question)
	idx := strings.Index(lower, strings.ToLower(mention))
	if idx < 0 {
		return question
	}
	return question[:idx] + replacement + question[idx+len(mention):]
}

func quoteName(name string) string {
	return "'" + name + "'"
}
