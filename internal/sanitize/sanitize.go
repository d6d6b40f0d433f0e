// Package sanitize repairs raw model completions into a single query string.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	labelPattern        = regexp.MustCompile(`(?i)sql\s+query\s*:`)
	fenceWithTagPattern = regexp.MustCompile("(?i)```(?:sqlite|sql|duckdb|postgresql|postgres|psql)?(?:\\s|$)")
	lineSelectPattern   = regexp.MustCompile(`(?im)^[ \t]*select\b`)
	selectPattern       = regexp.MustCompile(`(?i)\bselect\b`)
	// continuationPattern matches a paragraph that carries on the statement.
	continuationPattern = regexp.MustCompile(`(?i)^(?:(?:from|where|group|order|having|limit|join|inner|left|right|full|on|and|or)\b|,)`)
)

var productFilters = []string{"where o.product =", "where product ="}

// literalTerminators end an unquoted filter literal.
var literalTerminators = []string{" order by ", " group by ", " limit ", " and ", " or ", " having "}

// Clean normalizes a raw completion. Applying it to its own output is a no-op.
func Clean(raw string) string {
	text := stripMarkup(raw)
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	text = strings.NewReplacer(`\`, "", `"`, "", "'", "").Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ToLower(text)
	return quoteProductLiteral(text)
}

// stripMarkup drops labels, code fences, lead-in prose and anything after the
// first statement.
func stripMarkup(text string) string {
	text = labelPattern.ReplaceAllString(text, "")
	text = fenceWithTagPattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "```", " ")
	text = strings.ReplaceAll(text, "`", "")
	text = strings.TrimSpace(text)

	loc := lineSelectPattern.FindStringIndex(text)
	if loc == nil {
		loc = selectPattern.FindStringIndex(text)
	}
	if loc != nil && loc[0] > 0 {
		text = text[loc[0]:]
	}
	if index := strings.Index(text, ";"); index >= 0 {
		text = text[:index+1]
	}
	return cutTrailingProse(text)
}

// cutTrailingProse ends the statement at the first blank line whose next
// paragraph does not continue it.
func cutTrailingProse(text string) string {
	offset := 0
	for {
		index := strings.Index(text[offset:], "\n\n")
		if index < 0 {
			return text
		}
		cut := offset + index
		next := strings.TrimSpace(text[cut:])
		if next != "" && !continuationPattern.MatchString(next) {
			return text[:cut]
		}
		offset = cut + 2
	}
}

func quoteProductLiteral(text string) string {
	for _, filter := range productFilters {
		start := strings.Index(text, filter)
		if start < 0 {
			continue
		}
		literalStart := start + len(filter)
		rest := text[literalStart:]
		end := literalEnd(rest)
		literal := strings.TrimSpace(rest[:end])
		if literal == "" {
			return text
		}
		tail := rest[end:]
		tail = strings.TrimPrefix(tail, ";")
		return text[:literalStart] + " '" + literal + "'" + tail
	}
	return text
}

func literalEnd(rest string) int {
	end := len(rest)
	if index := strings.Index(rest, ";"); index >= 0 && index < end {
		end = index
	}
	for _, terminator := range literalTerminators {
		if index := strings.Index(rest, terminator); index >= 0 && index < end {
			end = index
		}
	}
	return end
}
