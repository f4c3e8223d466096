package access

import "net/http"

// Principal is the authenticated caller of a request
type Principal struct {
	UserID      uint
	Username    string
	IsSuperuser bool
}

// IsMutating reports whether an HTTP method can change state
func IsMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// Allow grants superusers everything and everyone else read access only.
// A nil principal is an anonymous caller.
func Allow(p *Principal, mutating bool) bool {
	if p != nil && p.IsSuperuser {
		return true
	}
	return !mutating
}
