package session

import (
	"fmt"
	"regexp"
)

// Login is display-name only. The pseudo doubles as the profile directory
// name, so it is restricted to filesystem-safe characters.
var pseudoRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidatePseudo checks that pseudo conforms to display name rules.
func ValidatePseudo(pseudo string) error {
	if !pseudoRegexp.MatchString(pseudo) {
		return fmt.Errorf("invalid pseudo %q: must match ^[A-Za-z0-9_-]{1,32}$", pseudo)
	}
	return nil
}
