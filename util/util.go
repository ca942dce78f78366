// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg", ".JPEG", ".JPG",
	".png", ".PNG",
	".webp", ".WEBP",
)

// IsSupportedImage reports whether name has an image extension we can decode.
func IsSupportedImage(name string) bool {
	return SupportedExt.Contains(filepath.Ext(strings.TrimSpace(name)))
}
