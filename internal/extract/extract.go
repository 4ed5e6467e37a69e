// Package extract turns uploaded files into the plain text the assistant
// answers from.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Method says how the text was obtained.
type Method string

const (
	MethodText        Method = "text"
	MethodHTML        Method = "html"
	MethodPlaceholder Method = "placeholder"
)

// Result is the extracted text of one file.
type Result struct {
	Text        string
	ContentType string
	Method      Method
}

var textTypes = map[string]bool{
	"text/plain":       true,
	"text/markdown":    true,
	"text/x-markdown":  true,
	"text/csv":         true,
	"application/json": true,
}

var whitespace = regexp.MustCompile(`\s+`)

// ContentType normalizes the declared type of a file, guessing from the
// file name and the first bytes when the client sent nothing useful.
func ContentType(name, declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if len(head) > 0 {
		mt, _, _ := mime.ParseMediaType(http.DetectContentType(head))
		return mt
	}
	return "application/octet-stream"
}

// Placeholder is the text stored for files whose content cannot be read.
func Placeholder(name, contentType string) string {
	return fmt.Sprintf("[Content of file %s - Type: %s]", name, contentType)
}

// Extract reads r fully and returns its text. Plain-text formats are kept
// verbatim, HTML is reduced to its visible text, and anything else gets a
// placeholder naming the file.
func Extract(name, declaredType string, r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", name, err)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := ContentType(name, declaredType, head)

	switch {
	case textTypes[ct]:
		if !utf8.Valid(data) {
			return Result{Text: Placeholder(name, ct), ContentType: ct, Method: MethodPlaceholder}, nil
		}
		return Result{Text: string(data), ContentType: ct, Method: MethodText}, nil
	case ct == "text/html":
		text, err := htmlText(data)
		if err != nil {
			return Result{}, fmt.Errorf("parsing %s: %w", name, err)
		}
		return Result{Text: text, ContentType: ct, Method: MethodHTML}, nil
	default:
		return Result{Text: Placeholder(name, ct), ContentType: ct, Method: MethodPlaceholder}, nil
	}
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := strings.TrimSpace(whitespace.ReplaceAllString(doc.Find("body").Text(), " "))
	if title != "" && !strings.HasPrefix(body, title) {
		return title + "\n\n" + body, nil
	}
	return body, nil
}
