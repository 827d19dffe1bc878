// Package export encodes a finished render into output files. Every requested
// format runs independently; one failing format never stops the others.
package export

import "strings"

// Known format names.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatLaTeX    = "latex"
	FormatPDF      = "pdf"
	FormatPPTX     = "pptx"
	FormatDOCX     = "docx"
)

var mimeTypes = map[string]string{
	FormatHTML:     "text/html",
	FormatPDF:      "application/pdf",
	FormatPPTX:     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	FormatLaTeX:    "application/x-latex",
	FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatMarkdown: "text/markdown",
}

var extensions = map[string]string{
	FormatHTML:     ".html",
	FormatPDF:      ".pdf",
	FormatPPTX:     ".pptx",
	FormatLaTeX:    ".tex",
	FormatDOCX:     ".docx",
	FormatMarkdown: ".md",
}

var aliases = map[string]string{
	"htm": FormatHTML,
	"md":  FormatMarkdown,
	"tex": FormatLaTeX,
}

// Normalize lowercases a format name and resolves aliases such as "md".
func Normalize(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if a, ok := aliases[f]; ok {
		return a
	}
	return f
}

// MIMEType returns the content type for a format, or application/octet-stream.
func MIMEType(format string) string {
	if m, ok := mimeTypes[Normalize(format)]; ok {
		return m
	}
	return "application/octet-stream"
}

// Extension returns the file extension for a format including the dot.
func Extension(format string) string {
	if e, ok := extensions[Normalize(format)]; ok {
		return e
	}
	return "." + Normalize(format)
}
