package embedder

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Shingle is the atomic unit of a record's signature: a short token
// tagged with the label space it belongs to. The label keeps equal
// tokens from different fields apart, so ("bass", "instrument") and
// ("bass", "voice") never collide.
type Shingle struct {
	Label string
	Token string
}

// String renders a shingle in the label<token> form used by the debug
// feature dump in serialized datasets.
func (s Shingle) String() string {
	return s.Label + "<" + s.Token + ">"
}

// FeatureBag is the ordered shingle sequence extracted from one record.
// Duplicates are preserved; the Bloom encoder deduplicates positions,
// not shingles.
type FeatureBag []Shingle

// Strings renders every shingle in the bag.
func (b FeatureBag) Strings() []string {
	out := make([]string, len(b))
	for i, s := range b {
		out[i] = s.String()
	}
	return out
}

// Extractor turns a single field value into a FeatureBag. Extractors
// are pure and stateless; empty input yields an empty bag, never an
// error.
type Extractor interface {
	// Extract shingles one field value. The label is the column name
	// or a caller-supplied override; extractors with a fixed label
	// space ignore it.
	Extract(value, label string) (FeatureBag, error)

	// Kind names the extractor in the embedder blob.
	Kind() string
}

// Fixed labels used by the extractors that share one label space
// across columns.
const (
	LabelName     = "name"
	LabelSex      = "sex"
	LabelDOBYear  = "dob-y"
	LabelDOBMonth = "dob-m"
	LabelDOBDay   = "dob-d"
)

func coerceText(value string) (string, error) {
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidFieldValue)
	}
	return NormalizeText(value), nil
}

// splitWrapped splits a string at spaces, dashes, dots, commas,
// underscores and plus signs, and wraps each word in underscores so
// that n-grams carry word-boundary information.
func splitWrapped(s string) []string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '+', '-', '_', ',', '.':
			return true
		}
		return unicode.IsSpace(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, "_"+w+"_")
	}
	return out
}

// nGrams yields the character n-grams of every token for each window
// size. The bare separator "_" is skipped.
func nGrams(tokens []string, lengths []int) []string {
	var grams []string
	for _, n := range lengths {
		if n <= 0 {
			continue
		}
		for _, token := range tokens {
			runes := []rune(token)
			for i := 0; i+n <= len(runes); i++ {
				gram := string(runes[i : i+n])
				if gram == "_" {
					continue
				}
				grams = append(grams, gram)
			}
		}
	}
	return grams
}

// skipGrams yields the skip 2-grams of every token: each character
// paired with the one two positions later.
func skipGrams(tokens []string) []string {
	var grams []string
	for _, token := range tokens {
		runes := []rune(token)
		for i := 0; i+2 < len(runes); i++ {
			grams = append(grams, string(runes[i])+string(runes[i+2]))
		}
	}
	return grams
}

// NameExtractor shingles person names into character n-grams and
// double-metaphone phonetic codes. The label space is fixed to "name"
// so that first-name, last-name and full-name columns interchangeably
// match.
type NameExtractor struct {
	NGramLengths []int // window sizes, [2, 3] when empty
	SkipGrams    bool
	Metaphone    bool
}

// Kind implements Extractor.
func (x *NameExtractor) Kind() string { return "name" }

// Extract implements Extractor.
func (x *NameExtractor) Extract(value, _ string) (FeatureBag, error) {
	text, err := coerceText(value)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	lower := strings.ToLower(text)
	lower = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || r == ' ' || r == '-' || r == '.' || r == ',' || r == '_' || r == '+' {
			return r
		}
		return -1
	}, lower)
	tokens := splitWrapped(lower)
	if len(tokens) == 0 {
		return nil, nil
	}

	lengths := x.NGramLengths
	if len(lengths) == 0 {
		lengths = []int{2, 3}
	}

	var bag FeatureBag
	for _, gram := range nGrams(tokens, lengths) {
		bag = append(bag, Shingle{Label: LabelName, Token: gram})
	}
	if x.SkipGrams {
		for _, gram := range skipGrams(tokens) {
			bag = append(bag, Shingle{Label: LabelName, Token: gram})
		}
	}
	if x.Metaphone {
		for _, word := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
			primary, secondary := matchr.DoubleMetaphone(word)
			if primary != "" {
				bag = append(bag, Shingle{Label: LabelName, Token: primary})
			}
			if secondary != "" && secondary != primary {
				bag = append(bag, Shingle{Label: LabelName, Token: secondary})
			}
		}
	}
	return bag, nil
}

// DateExtractor shingles dates into separately labelled year, month
// and day components, so that a partial agreement still scores.
// A value missing a component emits only the components it has.
type DateExtractor struct {
	DayFirst  bool // ambiguous numeric dates read day before month
	YearFirst bool // ambiguous numeric dates read year first
}

// Kind implements Extractor.
func (x *DateExtractor) Kind() string { return "dob" }

// Extract implements Extractor.
func (x *DateExtractor) Extract(value, _ string) (FeatureBag, error) {
	text, err := coerceText(value)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	year, month, day := parseDate(strings.ToLower(text), x.DayFirst, x.YearFirst)

	var bag FeatureBag
	if year > 0 {
		bag = append(bag, Shingle{Label: LabelDOBYear, Token: fmt.Sprintf("%04d", year)})
	}
	if month > 0 {
		bag = append(bag, Shingle{Label: LabelDOBMonth, Token: fmt.Sprintf("%02d", month)})
	}
	if day > 0 {
		bag = append(bag, Shingle{Label: LabelDOBDay, Token: fmt.Sprintf("%02d", day)})
	}
	return bag, nil
}

// SexExtractor normalizes sex or gender values to a single lowercase
// initial. Ambiguous or empty input emits nothing.
type SexExtractor struct{}

// Kind implements Extractor.
func (x *SexExtractor) Kind() string { return "sex" }

// Extract implements Extractor.
func (x *SexExtractor) Extract(value, _ string) (FeatureBag, error) {
	text, err := coerceText(value)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	initial, _ := utf8.DecodeRuneInString(strings.ToLower(text))
	if !unicode.IsLetter(initial) {
		return nil, nil
	}
	return FeatureBag{{Label: LabelSex, Token: string(initial)}}, nil
}

// TokenExtractor shingles free-text columns into lowercase whitespace
// tokens under a caller-chosen label, defaulting to the column name.
type TokenExtractor struct {
	Label string // overrides the column name when set
}

// Kind implements Extractor.
func (x *TokenExtractor) Kind() string { return "tokens" }

// Extract implements Extractor.
func (x *TokenExtractor) Extract(value, label string) (FeatureBag, error) {
	text, err := coerceText(value)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	useLabel := x.Label
	if useLabel == "" {
		useLabel = label
	}
	if useLabel == "" {
		useLabel = "misc"
	}
	var bag FeatureBag
	for _, token := range strings.Fields(strings.ToLower(text)) {
		bag = append(bag, Shingle{Label: useLabel, Token: token})
	}
	return bag, nil
}

// ShingleExtractor shingles free-text columns into labelled character
// n-grams. Two differently named columns given the same label share a
// label space and thus become comparable.
type ShingleExtractor struct {
	NGramLengths []int // window sizes, [2, 3] when empty
	SkipGrams    bool
	Label        string // overrides the column name when set
}

// Kind implements Extractor.
func (x *ShingleExtractor) Kind() string { return "shingled" }

// Extract implements Extractor.
func (x *ShingleExtractor) Extract(value, label string) (FeatureBag, error) {
	text, err := coerceText(value)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	useLabel := x.Label
	if useLabel == "" {
		useLabel = label
	}
	if useLabel == "" {
		useLabel = "misc"
	}
	tokens := splitWrapped(strings.ToLower(text))
	lengths := x.NGramLengths
	if len(lengths) == 0 {
		lengths = []int{2, 3}
	}
	var bag FeatureBag
	for _, gram := range nGrams(tokens, lengths) {
		bag = append(bag, Shingle{Label: useLabel, Token: gram})
	}
	if x.SkipGrams {
		for _, gram := range skipGrams(tokens) {
			bag = append(bag, Shingle{Label: useLabel, Token: gram})
		}
	}
	return bag, nil
}
