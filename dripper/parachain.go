package dripper

import (
	"strconv"
)

// ValidParachainID reports whether id is empty or a parachain id in the 1000..9999 range.
func ValidParachainID(id string) bool {
	if id == "" {
		return true
	}

	n, err := strconv.Atoi(id)

	return err == nil && n > 999 && n < 10000
}
