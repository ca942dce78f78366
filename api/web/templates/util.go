// Package templates renders the browser viewer. viewer_templ.go is generated
// from viewer.templ with templ generate.
package templates

import (
	"fmt"
	"strconv"
)

func gotoURL(index int) string {
	return fmt.Sprintf("/slideshow/goto/%d", index)
}

func dotLabel(index int) string {
	return "Go to slide " + strconv.Itoa(index+1)
}

// glowColor is the accent color handed to the page. Anything that is not a
// plain color token falls back to the default.
func glowColor(color, fallback string) string {
	if !isColorToken(color) {
		return fallback
	}
	return color
}

func isColorToken(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '#' || r == '(' || r == ')' || r == ',' || r == '.' || r == '%' || r == ' ':
		default:
			return false
		}
	}
	return true
}
