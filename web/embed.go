package web

import "embed"

// Templates embeds the HTML documents rendered for PDF export.
//
//go:embed templates/documents/*.html
var Templates embed.FS
