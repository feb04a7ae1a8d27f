package tools

import (
	"html"
	"regexp"
	"strings"
)

var (
	reScript  = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle   = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reComment = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reNav     = regexp.MustCompile(`(?is)<nav[\s\S]*?</nav>`)
	reFooter  = regexp.MustCompile(`(?is)<footer[\s\S]*?</footer>`)
	reTag     = regexp.MustCompile(`<[^>]+>`)
	reMultiNL = regexp.MustCompile(`\n{3,}`)
	reMultiSP = regexp.MustCompile(`[ \t]{2,}`)

	reH1       = regexp.MustCompile(`(?i)<h1[^>]*>([\s\S]*?)</h1>`)
	reH2       = regexp.MustCompile(`(?i)<h2[^>]*>([\s\S]*?)</h2>`)
	reH3       = regexp.MustCompile(`(?i)<h3[^>]*>([\s\S]*?)</h3>`)
	rePara     = regexp.MustCompile(`(?i)<p[^>]*>([\s\S]*?)</p>`)
	reBreak    = regexp.MustCompile(`(?i)<br\s*/?>`)
	reListItem = regexp.MustCompile(`(?i)<li[^>]*>([\s\S]*?)</li>`)
	reAnchor   = regexp.MustCompile(`(?i)<a[^>]*href="([^"]*)"[^>]*>([\s\S]*?)</a>`)
	rePre      = regexp.MustCompile(`(?is)<pre[^>]*>([\s\S]*?)</pre>`)
	reCode     = regexp.MustCompile(`(?i)<code[^>]*>([\s\S]*?)</code>`)
	reStrong   = regexp.MustCompile(`(?i)<(?:strong|b)[^>]*>([\s\S]*?)</(?:strong|b)>`)
)

// htmlToMarkdown converts HTML to a markdown-like format. Not a full
// Readability implementation but covers common page structures.
func htmlToMarkdown(s string) string {
	s = reScript.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")

	s = reH1.ReplaceAllString(s, "\n# $1\n")
	s = reH2.ReplaceAllString(s, "\n## $1\n")
	s = reH3.ReplaceAllString(s, "\n### $1\n")

	s = rePre.ReplaceAllString(s, "\n```\n$1\n```\n")
	s = reCode.ReplaceAllString(s, "`$1`")
	s = reStrong.ReplaceAllString(s, "**$1**")
	s = reAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reListItem.ReplaceAllString(s, "\n- $1")
	s = rePara.ReplaceAllString(s, "\n$1\n")
	s = reBreak.ReplaceAllString(s, "\n")

	s = reTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = reMultiSP.ReplaceAllString(s, " ")
	s = reMultiNL.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// htmlToText strips all markup and collapses whitespace.
func htmlToText(s string) string {
	s = reScript.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = reMultiSP.ReplaceAllString(s, " ")
	s = reMultiNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
