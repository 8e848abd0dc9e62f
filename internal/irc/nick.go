package irc

import "strings"

// forbiddenNickChars may not appear in a nickname registered through the
// bridge.
const forbiddenNickChars = " ,*?.!:<>'\";#~&@%+-"

// ValidateNick reports whether nick contains forbidden characters and
// returns each offending character once, in order of first occurrence.
func ValidateNick(nick string) (bool, []string) {
	var found []string
	seen := make(map[rune]bool)
	for _, r := range nick {
		if seen[r] || !strings.ContainsRune(forbiddenNickChars, r) {
			continue
		}
		seen[r] = true
		found = append(found, string(r))
	}
	return len(found) > 0, found
}
