package importer

import "sort"

// ResolvePrinting picks one representative from the printings grouped under a
// logical card name. The first rule that discriminates wins:
//
//  1. a printing with image URIs beats one without;
//  2. a printing with a marketplace id beats one without;
//  3. the lexicographically greater set code wins.
//
// Rule 3 is a coarse recency proxy; set codes are not ordered by release date.
// Ties keep input order, so the result is stable for a given input.
func ResolvePrinting(printings []Raw) Raw {
	if len(printings) == 0 {
		return nil
	}
	ranked := make([]Raw, len(printings))
	copy(ranked, printings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return betterPrinting(ranked[i], ranked[j])
	})
	return ranked[0]
}

func betterPrinting(a, b Raw) bool {
	if ai, bi := imageURIs(a) != nil, imageURIs(b) != nil; ai != bi {
		return ai
	}
	if am, bm := cardmarketID(a) != nil, cardmarketID(b) != nil; am != bm {
		return am
	}
	return setCode(a, "") > setCode(b, "")
}
