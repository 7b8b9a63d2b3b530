package intent

import (
	"strconv"
	"strings"
)

// maxBareOrdinal caps bare numeric selections ("2", "#17"). Result lists are
// short, so anything above this is treated as ordinary content.
const maxBareOrdinal = 99

// selectionVerbs are short imperative openers (English and Russian) that make
// a message an explicit selection request.
var selectionVerbs = map[string]bool{
	"show": true, "open": true, "pick": true, "select": true,
	"choose": true, "send": true, "forward": true, "give": true, "get": true,
	"покажи": true, "выбери": true, "открой": true, "отправь": true,
	"перешли": true, "дай": true, "давай": true, "хочу": true,
}

// markerWords introduce a numbered entry ("number two", "номер 2").
var markerWords = map[string]bool{
	"number": true, "no": true, "no.": true, "item": true, "option": true,
	"номер": true, "вариант": true, "пункт": true,
}

// cardinalWords maps spelled-out numbers one..ten (English and Russian).
var cardinalWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"один": 1, "два": 2, "три": 3, "четыре": 4, "пять": 5,
	"шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
}

// ordinalWords maps English ordinal words first..tenth.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

// russianOrdinalStems maps declension-independent stems of первый..десятый.
// Prefix matching covers gender and case endings (первый, первая, первое...).
var russianOrdinalStems = map[string]int{
	"перв": 1, "втор": 2, "трет": 3, "четверт": 4, "пят": 5,
	"шест": 6, "седьм": 7, "восьм": 8, "девят": 9, "десят": 10,
}

// ParseOrdinal reports whether text is a selection expression and which
// ordinal it names.
//
// explicit is true when the message carries a selection marker - a verb
// ("show"), a rank prefix ("#2", "№2", "no. 2") or an ordinal word
// ("second", "второй"). A bare number ("2") parses with explicit=false:
// it only counts as a selection when a result list is active.
func ParseOrdinal(text string) (ordinal int, explicit bool, ok bool) {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.TrimRight(norm, ".!?…")
	fields := strings.Fields(norm)

	// A selection expression is at most a verb, a marker and a number.
	if len(fields) == 0 || len(fields) > 4 {
		return 0, false, false
	}

	value := 0
	for _, tok := range fields {
		switch {
		case selectionVerbs[tok]:
			explicit = true
		case tok == "the":
			// filler
		case markerWords[tok]:
			explicit = true
		default:
			v, exp, isOrd := parseOrdinalToken(tok)
			if !isOrd || value != 0 {
				return 0, false, false
			}
			value = v
			explicit = explicit || exp
		}
	}

	if value == 0 {
		return 0, false, false
	}
	return value, explicit, true
}

// parseOrdinalToken parses a single token into an ordinal value.
func parseOrdinalToken(tok string) (value int, explicit, ok bool) {
	// Rank prefixes: #2, №2.
	for _, prefix := range []string{"#", "№"} {
		if rest, found := strings.CutPrefix(tok, prefix); found {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 1 || n > maxBareOrdinal {
				return 0, false, false
			}
			return n, true, true
		}
	}

	if n, err := strconv.Atoi(tok); err == nil {
		if n < 1 || n > maxBareOrdinal {
			return 0, false, false
		}
		return n, false, true
	}

	if n, found := ordinalWords[tok]; found {
		return n, true, true
	}
	// Cardinals before Russian ordinal stems: "пять" would otherwise
	// prefix-match the stem "пят" and look explicit.
	if n, found := cardinalWords[tok]; found {
		return n, false, true
	}
	for stem, n := range russianOrdinalStems {
		if strings.HasPrefix(tok, stem) && len(tok) <= len(stem)+3 {
			return n, true, true
		}
	}

	return 0, false, false
}
