package loginflow

import "strings"

// DefaultDestination is where a finished flow lands when no usable next
// parameter was supplied.
const DefaultDestination = "/"

// ResolveDestination decides where to navigate once no further factor is
// required. Only same-origin relative paths are honored: the value must
// begin with a single "/". Absolute URLs and protocol-relative "//host"
// values would open-redirect, so they fall back to the default landing path.
func ResolveDestination(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return DefaultDestination
}
