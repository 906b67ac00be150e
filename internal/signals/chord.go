package signals

import (
	"strings"

	"github.com/pkg/errors"
)

// Chord is a simultaneous key combination, main keys first and modifiers
// last, the order the hook library expects.
type Chord []string

func (c Chord) String() string { return strings.Join(c, "+") }

var modifiers = map[string]bool{
	"shift": true,
	"ctrl":  true,
	"alt":   true,
	"cmd":   true,
}

// ParseChord parses "cmd+p" style chords.
func ParseChord(s string) (Chord, error) {
	var keys, mods []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, "+") {
		k := normalizeKey(strings.TrimSpace(part))
		if k == "" {
			return nil, errors.Errorf("unknown key %q in chord %q", part, s)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		if modifiers[k] {
			mods = append(mods, k)
		} else {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 && len(mods) == 0 {
		return nil, errors.Errorf("empty chord %q", s)
	}
	return append(keys, mods...), nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	switch k {
	case "enter", "return":
		return "enter"
	case "shift":
		return "shift"
	case "control", "ctrl":
		return "ctrl"
	case "alt", "option":
		return "alt"
	case "meta", "command", "cmd", "super", "win":
		return "cmd"
	case "escape", "esc":
		return "esc"
	case " ", "space":
		return "space"
	case "tab":
		return "tab"
	case "backspace":
		return "backspace"
	case "delete":
		return "delete"
	case "arrowup", "up":
		return "up"
	case "arrowdown", "down":
		return "down"
	case "arrowleft", "left":
		return "left"
	case "arrowright", "right":
		return "right"
	default:
		// single characters are plain keys (letters, digits, symbols)
		if len(k) == 1 {
			return k
		}
		if len(k) >= 2 && len(k) <= 3 && k[0] == 'f' && k[1] >= '1' && k[1] <= '9' {
			return k
		}
		return ""
	}
}
