// Package email canonicalizes reward email addresses for duplicate detection.
package email

import "strings"

// Normalize lowercases the address, drops any "+tag" suffix of the local
// part and removes dots from the local part, so "A.B+x@Gmail.com" and
// "ab@gmail.com" produce the same key. Input without '@' is only lowercased
// and stripped the same way as a local part.
func Normalize(addr string) string {
	lower := strings.ToLower(addr)
	local, domain, hasDomain := strings.Cut(lower, "@")
	local, _, _ = strings.Cut(local, "+")
	local = strings.ReplaceAll(local, ".", "")
	if !hasDomain {
		return local
	}
	return local + "@" + domain
}
