package search

// stopWords is the curated bilingual (English + Croatian) list of tokens that
// carry no retrieval signal in the review corpus. Checked after lowercasing.
var stopWords = map[string]struct{}{
	// English
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"has": {}, "had": {}, "have": {}, "this": {}, "that": {}, "with": {},
	"from": {}, "not": {}, "but": {}, "you": {}, "your": {}, "his": {},
	"her": {}, "its": {}, "our": {}, "they": {}, "them": {}, "their": {},
	"will": {}, "would": {}, "should": {}, "could": {}, "been": {},
	"did": {}, "does": {}, "doing": {}, "about": {}, "into": {},
	"after": {}, "before": {}, "during": {}, "when": {}, "then": {},
	"than": {}, "very": {}, "also": {}, "only": {}, "just": {},
	"because": {}, "while": {}, "there": {}, "here": {}, "what": {},
	"which": {}, "who": {}, "how": {}, "all": {}, "any": {}, "some": {},
	"more": {}, "most": {}, "other": {}, "agent": {}, "ticket": {},
	"customer": {},

	// Croatian
	"ali": {}, "bez": {}, "bio": {}, "bila": {}, "bilo": {}, "dok": {},
	"gdje": {}, "ili": {}, "ima": {}, "iz": {}, "jer": {}, "jesu": {},
	"jos": {}, "još": {}, "kad": {}, "kada": {}, "kako": {}, "koja": {},
	"koje": {}, "koji": {}, "kojima": {}, "kroz": {}, "lijepo": {},
	"među": {}, "mogu": {}, "može": {}, "nakon": {}, "nam": {}, "nas": {},
	"naš": {}, "nego": {}, "nema": {}, "nije": {}, "nisam": {}, "nisu": {},
	"ništa": {}, "ono": {}, "ova": {}, "ovaj": {}, "ove": {}, "ovo": {},
	"pod": {}, "prije": {}, "sam": {}, "samo": {}, "smo": {}, "sve": {},
	"svi": {}, "svoj": {}, "tako": {}, "taj": {}, "te": {}, "tim": {},
	"toga": {}, "treba": {}, "tu": {}, "vam": {}, "vas": {}, "već": {},
	"vrlo": {}, "zbog": {}, "što": {}, "sto": {}, "ćemo": {}, "ćete": {},
	"biti": {}, "ovdje": {}, "njih": {}, "onda": {}, "ipak": {},
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
