package platform

import (
	"fmt"
	"strings"
)

// DevHostname returns the development environment hostname for a customer domain.
// Example: acme.dev.example.com
func DevHostname(domain, suffix string) string {
	return fmt.Sprintf("%s.%s", strings.ToLower(strings.TrimSpace(domain)), strings.Trim(suffix, "."))
}
