package geo

import "strings"

// ExtractCity parses a formatted street address into a short "City, ST"
// label, e.g. "123 Main St, Atlanta, GA 30308, USA" -> "Atlanta, GA".
// Returns "" when the address is empty.
func ExtractCity(address string) string {
	if address == "" {
		return ""
	}

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	// Google-style addresses end with a country segment; drop it so the
	// state+zip segment is last.
	if n := len(parts); n >= 4 {
		parts = parts[:n-1]
	}

	switch n := len(parts); {
	case n >= 3:
		city := parts[n-2]
		state := parts[n-1]
		if i := strings.IndexByte(state, ' '); i > 0 {
			state = state[:i] // strip zip from "GA 30308"
		}
		return city + ", " + state
	case n == 2:
		return parts[0] + ", " + parts[1]
	default:
		return parts[0]
	}
}
