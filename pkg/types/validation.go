package types

import "regexp"

// Compiled once; account IDs are validated on every connect and join.
var accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidAccountID checks account identifier format. Identifiers are minted
// by the external identity store but revalidated at the channel boundary.
func IsValidAccountID(accountID string) bool {
	if len(accountID) < 1 || len(accountID) > 50 {
		return false
	}
	return accountIDRegex.MatchString(accountID)
}
