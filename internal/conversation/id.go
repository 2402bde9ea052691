// Package conversation derives canonical conversation identifiers.
package conversation

import "errors"

// Separator joins the two participant ids. User ids come from the identity
// provider and never contain an underscore.
const Separator = "_"

var ErrEmptyUserID = errors.New("conversation: empty user id")

// DeriveID maps an unordered pair of user ids to the canonical conversation
// key: the ids sorted lexicographically and joined with Separator, so
// DeriveID(a, b) == DeriveID(b, a).
func DeriveID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyUserID
	}
	if a > b {
		a, b = b, a
	}
	return a + Separator + b, nil
}
