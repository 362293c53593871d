package bastion

import "strings"

// matchPattern checks if a module or resource pattern matches a requested
// value. "*" matches anything; a trailing "*" matches by prefix
// (e.g., "invoice*" matches "invoices").
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == value {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(value, prefix)
	}
	return false
}

// matchRule checks a module/resource pattern pair against a request.
func matchRule(modulePattern, resourcePattern, moduleCode, resource string) bool {
	return matchPattern(modulePattern, moduleCode) && matchPattern(resourcePattern, resource)
}
