package search

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	headingRE  = regexp.MustCompile(`^#{1,6}\s+`)
	bulletRE   = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	linkRE     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	emphasisRE = regexp.MustCompile("[*_`~]+")
)

// PlainText flattens a Markdown description into plain sentences for
// indexing: headings, list markers, emphasis and link targets are dropped,
// table rows become one line each and separator rows disappear.
func PlainText(markdown string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(markdown))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	writeFact := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.NewReplacer(":", "", "-", "").Replace(cell)
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			line = strings.Join(cleaned, " ")
		}

		line = headingRE.ReplaceAllString(line, "")
		line = bulletRE.ReplaceAllString(line, "")
		line = linkRE.ReplaceAllString(line, "$1")
		line = emphasisRE.ReplaceAllString(line, "")
		writeFact(line)
	}
	// Scanner only fails on lines over the buffer cap; return what we have.
	return b.String()
}
