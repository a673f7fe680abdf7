package domain

import "regexp"

// User ids arrive from the upstream identity layer as UUID v4 strings.
var userIDPattern = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
