// Package web holds the server-rendered templates, embedded into the binary.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
