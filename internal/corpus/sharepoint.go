package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrNoResults indicates a search response that carried no usable rows.
var ErrNoResults = errors.New("search response contains no result rows")

// Page is one legislation page returned by the portal search.
type Page struct {
	Path    string
	Content string
}

// ParseSharePoint extracts pages from a SharePoint ProcessQuery response.
//
// The response body is not always clean JSON: the payload is taken from the
// first '[' to the last ']'. Every ResultRows array found anywhere in the
// document contributes its rows; rows without a path or page content are
// skipped and repeated paths are kept once.
func ParseSharePoint(body []byte) ([]Page, error) {
	start := bytes.IndexByte(body, '[')
	end := bytes.LastIndexByte(body, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("search response has no json array payload")
	}

	var doc any
	if err := json.Unmarshal(body[start:end+1], &doc); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	var pages []Page
	seen := make(map[string]struct{})
	walkResultRows(doc, func(row map[string]any) {
		path, _ := row["Path"].(string)
		raw, _ := row["PublishingPageContentOWSHTML"].(string)
		path = strings.TrimSpace(path)
		if path == "" || strings.TrimSpace(raw) == "" {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		text := HTMLToText(raw)
		if text == "" {
			return
		}
		seen[path] = struct{}{}
		pages = append(pages, Page{Path: path, Content: text})
	})

	if len(pages) == 0 {
		return nil, ErrNoResults
	}
	return pages, nil
}

func walkResultRows(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case map[string]any:
		if rows, ok := v["ResultRows"].([]any); ok {
			for _, r := range rows {
				if row, ok := r.(map[string]any); ok {
					visit(row)
				}
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if k == "ResultRows" {
				continue
			}
			walkResultRows(v[k], visit)
		}
	case []any:
		for _, item := range v {
			walkResultRows(item, visit)
		}
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true,
}

// HTMLToText renders page HTML as plain text, one block element per line.
func HTMLToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed markup: keep what was read so far.
			return tidyLines(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
				continue
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(collapseSpace(string(z.Text())))
			}
		}
	}
}

// collapseSpace turns every whitespace run, newlines included, into one
// space. Only block elements start a new line.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if first, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(first) {
		out = " " + out
	}
	if last, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(last) {
		out += " "
	}
	return out
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
