// web/embed.go
package web

import "embed"

// Templates holds the HTML pages served by the gin router.
//
//go:embed templates/*.html
var Templates embed.FS

// Static holds stylesheets and scripts served under /static.
//
//go:embed static
var Static embed.FS
