package embedder

import (
	"strconv"
	"strings"
	"unicode"
)

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

type datePart struct {
	number int  // -1 when not numeric
	digits int  // digit count for numeric parts
	month  int  // resolved month for name parts, 0 otherwise
}

// parseDate resolves a lowercase date string into year, month and day
// components, honoring the caller's day-first and year-first
// preferences for ambiguous all-numeric dates. Components that cannot
// be resolved come back as zero; the extractor emits only what is
// present. Unparseable input resolves to all zeroes, never an error.
func parseDate(text string, dayFirst, yearFirst bool) (year, month, day int) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	parts := make([]datePart, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			parts = append(parts, datePart{number: n, digits: len(f)})
			continue
		}
		if m, ok := monthNames[f]; ok {
			parts = append(parts, datePart{number: -1, month: m})
			continue
		}
		// Any other word poisons the parse; this is not a date.
		return 0, 0, 0
	}

	switch len(parts) {
	case 1:
		return parseCompact(parts[0], dayFirst, yearFirst)
	case 2:
		return parseTwo(parts[0], parts[1], dayFirst)
	case 3:
		return parseThree(parts, dayFirst, yearFirst)
	}
	return 0, 0, 0
}

// parseCompact handles single-token dates: a bare year, or an
// eight-digit date whose component order follows the preferences.
func parseCompact(p datePart, dayFirst, yearFirst bool) (year, month, day int) {
	if p.number < 0 {
		return 0, p.month, 0
	}
	switch p.digits {
	case 4:
		return validYear(p.number), 0, 0
	case 8:
		var y, m, d int
		switch {
		case yearFirst:
			y, m, d = p.number/10000, p.number/100%100, p.number%100
		case dayFirst:
			d, m, y = p.number/1000000, p.number/10000%100, p.number%10000
		default:
			m, d, y = p.number/1000000, p.number/10000%100, p.number%10000
		}
		return resolveYMD(y, m, d)
	}
	return 0, 0, 0
}

// parseTwo handles partial dates: year plus month in either order, or
// a day-month pair without a year.
func parseTwo(a, b datePart, dayFirst bool) (year, month, day int) {
	// A month name fixes one side.
	if a.number < 0 || b.number < 0 {
		name, other := a, b
		if b.number < 0 {
			name, other = b, a
		}
		if other.number < 0 {
			return 0, 0, 0 // two month names
		}
		if other.digits == 4 {
			return validYear(other.number), name.month, 0
		}
		return 0, name.month, validDay(other.number)
	}
	if a.digits == 4 {
		return validYear(a.number), validMonth(b.number), 0
	}
	if b.digits == 4 {
		return validYear(b.number), validMonth(a.number), 0
	}
	d, m := a.number, b.number
	if !dayFirst {
		d, m = m, d
	}
	if validMonth(m) == 0 && validMonth(d) != 0 {
		d, m = m, d
	}
	return 0, validMonth(m), validDay(d)
}

// parseThree handles full dates. A four-digit part pins the year; the
// remaining two parts order themselves by preference, month names and
// out-of-range values forcing a swap.
func parseThree(parts []datePart, dayFirst, yearFirst bool) (year, month, day int) {
	yearIdx := -1
	for i, p := range parts {
		if p.number >= 0 && p.digits == 4 {
			yearIdx = i
			break
		}
	}
	switch {
	case yearIdx == 0:
		return resolveFromParts(parts[0], parts[1], parts[2], false)
	case yearIdx == 2:
		return resolveFromParts(parts[2], parts[0], parts[1], dayFirst)
	case yearIdx == 1:
		return resolveFromParts(parts[1], parts[0], parts[2], dayFirst)
	case yearFirst:
		return resolveFromParts(parts[0], parts[1], parts[2], false)
	default:
		return resolveFromParts(parts[2], parts[0], parts[1], dayFirst)
	}
}

// resolveFromParts assembles a date from a year part and two
// month/day parts; swapFirst means the first of the pair is the day.
func resolveFromParts(yp, p1, p2 datePart, swapFirst bool) (year, month, day int) {
	if yp.number < 0 {
		return 0, 0, 0
	}
	y := yp.number
	var m, d int
	switch {
	case p1.number < 0:
		m, d = p1.month, p2.number
	case p2.number < 0:
		m, d = p2.month, p1.number
	case swapFirst:
		d, m = p1.number, p2.number
	default:
		m, d = p1.number, p2.number
	}
	return resolveYMD(y, m, d)
}

// resolveYMD validates components, swapping month and day when only
// the swapped reading is in range.
func resolveYMD(y, m, d int) (year, month, day int) {
	if validMonth(m) == 0 && validMonth(d) != 0 && validDay(m) != 0 {
		m, d = d, m
	}
	return validYear(y), validMonth(m), validDay(d)
}

func validYear(y int) int {
	if y >= 1 && y <= 9999 {
		return y
	}
	return 0
}

func validMonth(m int) int {
	if m >= 1 && m <= 12 {
		return m
	}
	return 0
}

func validDay(d int) int {
	if d >= 1 && d <= 31 {
		return d
	}
	return 0
}
