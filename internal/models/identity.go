package models

import "strings"

// Bare reduces a chat address to its bare form by stripping any
// connection-specific resource suffix ("user@example.com/laptop" ->
// "user@example.com"). The same user may speak from several connections;
// all of them map to one identity.
func Bare(addr string) string {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}
