package render

import (
	"strings"

	xhtml "golang.org/x/net/html"
)

// PlainText strips markup from comment content and word-wraps the result
// to width. Paragraph and line-break tags become newlines, links keep their
// target in brackets when it differs from the link text, and everything
// else is dropped.
func PlainText(raw string, width int) string {
	if raw == "" {
		return ""
	}

	tokenizer := xhtml.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	var inPre bool
	var href string
	var linkStart int

	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			return wrapText(strings.TrimSpace(sb.String()), width)

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := tokenizer.Token()
			switch t.Data {
			case "p", "div":
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
			case "br":
				sb.WriteString("\n")
			case "li":
				sb.WriteString("\n- ")
			case "pre":
				inPre = true
				sb.WriteString("\n")
			case "a":
				href = ""
				for _, attr := range t.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
				linkStart = sb.Len()
			}

		case xhtml.EndTagToken:
			t := tokenizer.Token()
			switch t.Data {
			case "pre":
				inPre = false
				sb.WriteString("\n")
			case "a":
				if href != "" && !strings.Contains(sb.String()[linkStart:], href) {
					sb.WriteString(" [")
					sb.WriteString(href)
					sb.WriteString("]")
				}
				href = ""
			}

		case xhtml.TextToken:
			text := string(tokenizer.Text())
			if inPre {
				for i, line := range strings.Split(text, "\n") {
					if i > 0 {
						sb.WriteString("\n")
					}
					if line != "" {
						sb.WriteString("    ")
						sb.WriteString(line)
					}
				}
				continue
			}
			sb.WriteString(text)
		}
	}
}

// Preview returns the first line of PlainText(raw), cut to n runes.
func Preview(raw string, n int) string {
	text := PlainText(raw, 0)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	r := []rune(text)
	if n > 0 && len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return text
}

// wrapText performs simple word wrapping to the given width.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.HasPrefix(paragraph, "    ") {
			// Code blocks keep their layout.
			result.WriteString(paragraph)
			result.WriteString("\n")
			continue
		}
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}
		lineLen := 0
		for i, word := range words {
			wlen := len([]rune(word))
			if i > 0 && lineLen+1+wlen > width {
				result.WriteString("\n")
				lineLen = 0
			} else if i > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wlen
		}
		result.WriteString("\n")
	}
	return strings.TrimRight(result.String(), "\n")
}
