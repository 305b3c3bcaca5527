package reportparser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "article": true, "header": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "template": true,
}

// TextFromHTML flattens a saved Studio page into report text. Block elements
// end a line and table cells are tab separated so content tables keep the
// shape the row rule expects.
func TextFromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var b strings.Builder
	var line []string

	flush := func() {
		if len(line) > 0 {
			b.WriteString(strings.Join(line, " "))
			b.WriteByte('\n')
			line = line[:0]
		}
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				line = append(line, text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}

		if n.Type == html.ElementNode {
			switch {
			case n.Data == "td" || n.Data == "th":
				if len(line) > 0 {
					line[len(line)-1] += "\t"
				}
			case blockElements[n.Data]:
				flush()
			}
		}
	}
	traverse(doc)
	flush()

	text := strings.ReplaceAll(b.String(), " \t", "\t")
	text = strings.ReplaceAll(text, "\t ", "\t")
	return text, nil
}
