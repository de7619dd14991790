package repository

import (
	"html"
	"strings"
)

// EncodeContent neutralizes raw markup before a blog body is written.
func EncodeContent(s string) string {
	return html.EscapeString(s)
}

// DecodeContent reverses EncodeContent on read. The pair round-trips any
// input exactly, including text that already contains entities.
func DecodeContent(s string) string {
	return html.UnescapeString(s)
}

// LikePattern turns a free-text query into a %substring% pattern with the
// LIKE wildcards escaped. Pair it with ESCAPE '\'.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
