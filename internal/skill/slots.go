package skill

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slot names carrying the camera number. The French names are the ones
// declared in the interaction model, the English ones are aliases.
var (
	numberSlots  = []string{"numero", "number"}
	ordinalSlots = []string{"rang", "ordinal"}
)

// ordinals maps folded ordinal words to their 1-based value.
var ordinals = map[string]int{
	"premier": 1, "premiere": 1, "first": 1,
	"deuxieme": 2, "second": 2, "seconde": 2,
	"troisieme": 3, "third": 3,
	"quatrieme": 4, "fourth": 4,
	"cinquieme": 5, "fifth": 5,
	"sixieme": 6, "sixth": 6,
	"septieme": 7, "seventh": 7,
	"huitieme": 8, "eighth": 8,
	"neuvieme": 9, "ninth": 9,
	"dixieme": 10, "tenth": 10,
}

// ParseSlot returns the 1-based camera number requested by intent. A numeric
// slot wins over an ordinal one. Anything unreadable yields 1.
func ParseSlot(intent *Intent) int {
	if intent == nil {
		return 1
	}
	for _, name := range numberSlots {
		v := slotValue(intent, name)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	for _, name := range ordinalSlots {
		v := slotValue(intent, name)
		if v == "" {
			continue
		}
		if n, ok := parseOrdinal(v); ok {
			return n
		}
	}
	return 1
}

func slotValue(intent *Intent, name string) string {
	slot, ok := intent.Slots[name]
	if !ok {
		return ""
	}
	return slot.Value
}

// parseOrdinal reads "3", "3e", "3rd" or an ordinal word such as
// "troisième".
func parseOrdinal(v string) (int, bool) {
	if digits := firstDigits(v); digits != "" {
		n, err := strconv.Atoi(digits)
		return n, err == nil
	}
	words := strings.FieldsFunc(foldAccents(strings.ToLower(v)), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if n, ok := ordinals[w]; ok {
			return n, true
		}
	}
	return 0, false
}

func firstDigits(s string) string {
	start := strings.IndexFunc(s, isASCIIDigit)
	if start < 0 {
		return ""
	}
	end := start
	for end < len(s) && isASCIIDigit(rune(s[end])) {
		end++
	}
	return s[start:end]
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// foldAccents strips combining marks: "Deuxième" becomes "Deuxieme".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
