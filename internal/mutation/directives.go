package mutation

import (
	"regexp"
	"strings"
)

var (
	// reDown matches multi-line "-- !down(" ... "-- )" blocks (group 1) and
	// single-line "-- !down: stmt" directives (group 2).
	reDown = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*!down\(([\s\S]*?)^[ \t]*--[ \t]*\)[ \t]*$|^[ \t]*--[ \t]*!down\b:?(.*)$`)

	// reDownBlock matches a whole multi-line down block.
	reDownBlock = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*!down\([\s\S]*?^[ \t]*--[ \t]*\)[ \t]*$`)

	// reDirectiveLine matches any directive comment line.
	reDirectiveLine = regexp.MustCompile(`(?m)^[ \t]*--[ \t]*!.*$`)

	// reDownOpen matches the opening line of a multi-line down block.
	reDownOpen = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*!down\(`)

	reRequires = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*!requires?\b:?[ \t]*(.*)$`)

	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	reSerie = regexp.MustCompile(`^(.*?)\.(\d+)$`)
)

// parseDown returns the down statements of src, last declared first.
func parseDown(src string) []string {
	var res []string
	for _, match := range reDown.FindAllStringSubmatch(src, -1) {
		code := match[1]
		if code == "" {
			code = match[2]
			// An opener without terminator is reported by unterminatedDown.
			if strings.HasPrefix(code, "(") {
				continue
			}
		}
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		res = append(res, code)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// unterminatedDown reports whether src opens a down block that is never
// closed by a "-- )" line.
func unterminatedDown(src string) bool {
	return reDownOpen.MatchString(reDownBlock.ReplaceAllString(src, ""))
}

// normalizeNewlines turns CRLF and lone CR line endings into LF, so line
// anchors in the directive patterns see every line break.
func normalizeNewlines(src string) string {
	return strings.ReplaceAll(strings.ReplaceAll(src, "\r\n", "\n"), "\r", "\n")
}

// parseUp returns the up statements of src in source order.
//
// Down blocks are removed before comments are stripped, otherwise their
// "-- )" terminator would be stripped as a plain comment and the block body
// would leak into the up statements.
func parseUp(src string) []string {
	body := reDownBlock.ReplaceAllString(src, "-- !down")
	// The rest of an unterminated down block is not forward code.
	if loc := reDownOpen.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	body = stripComments(body)

	var res []string
	for _, part := range reDirectiveLine.Split(body, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}
	return res
}

// parseRequires returns the descriptors listed on every !requires line.
func parseRequires(src string) []string {
	var res []string
	for _, match := range reRequires.FindAllStringSubmatch(src, -1) {
		for _, desc := range strings.Split(match[1], ",") {
			desc = strings.TrimSpace(desc)
			if desc != "" {
				res = append(res, desc)
			}
		}
	}
	return res
}

// stripComments removes plain single-line comments and block comments.
// Single-line comments starting with "!" are directives and are kept.
func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = cutLineComment(line)
	}
	return reBlockComment.ReplaceAllString(strings.Join(lines, "\n"), "")
}

func cutLineComment(line string) string {
	from := 0
	for {
		idx := strings.Index(line[from:], "--")
		if idx < 0 {
			return line
		}
		at := from + idx
		rest := strings.TrimLeft(line[at+2:], " \t")
		if !strings.HasPrefix(rest, "!") {
			return strings.TrimRight(line[:at], " \t\r")
		}
		from = at + 2
	}
}
