// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// entityRegex matches character references closed by a semicolon. Legacy
// references without one ("&copy", "&not") are left alone: in a title they
// are a literal ampersand followed by a word.
var entityRegex = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// unescapeEntities decodes the semicolon-terminated references of s.
func unescapeEntities(s string) string {
	return entityRegex.ReplaceAllStringFunc(s, func(ref string) string {
		decoded := html.UnescapeString(ref)
		// an unknown name only partially decoded through a legacy prefix
		if len(decoded) > 1 && strings.HasSuffix(decoded, ";") {
			return ref
		}

		return decoded
	})
}

// Sanitize turns a free-text place title into a search query.
//
// Character references ending in `;` are decoded and the text is
// NFC-normalized, then `&` becomes a space, parentheses are dropped and
// whitespace runs are collapsed.
func Sanitize(title string) string {
	s := norm.NFC.String(unescapeEntities(title))
	s = strings.ReplaceAll(s, "&", " ")
	s = strings.NewReplacer("(", "", ")", "").Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// FallbackQueries returns the queries to try for title, most specific
// first: the sanitized title, its first word, then each `&`-separated
// segment. The result has no duplicates and is never empty.
func FallbackQueries(title string) []string {
	full := Sanitize(title)

	queries := []string{full}
	seen := map[string]bool{full: true}

	add := func(q string) {
		if q == "" || seen[q] {
			return
		}

		seen[q] = true
		queries = append(queries, q)
	}

	if first, _, found := strings.Cut(full, " "); found {
		add(first)
	}

	if strings.Contains(title, "&") {
		for _, segment := range strings.Split(title, "&") {
			add(Sanitize(segment))
		}
	}

	return queries
}
