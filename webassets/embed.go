package webassets

import "embed"

//go:embed panel
var embeddedDist embed.FS

// IndexHTML returns the control panel page.
func IndexHTML() ([]byte, error) {
	return embeddedDist.ReadFile("panel/index.html")
}
