package annotate

import (
	"strings"
	"unicode"
)

// Portuguese function words that make useless tags.
var stopwords = map[string]struct{}{
	"ainda": {}, "aos": {}, "aqui": {}, "até": {}, "com": {}, "como": {},
	"das": {}, "depois": {}, "dos": {}, "ela": {}, "elas": {}, "ele": {},
	"eles": {}, "entre": {}, "essa": {}, "esse": {}, "esta": {}, "este": {},
	"isso": {}, "isto": {}, "mais": {}, "mas": {}, "mesmo": {}, "meu": {},
	"minha": {}, "muito": {}, "nas": {}, "nem": {}, "nos": {}, "nós": {},
	"não": {}, "para": {}, "pela": {}, "pelo": {}, "por": {}, "porque": {},
	"quando": {}, "que": {}, "quem": {}, "ser": {}, "sem": {}, "seu": {},
	"sua": {}, "são": {}, "também": {}, "tem": {}, "todo": {}, "uma": {},
	"você": {}, "vocês": {},
}

// TagsFromText derives tags directly from free text when no tag prompt is
// available or it came back empty. Lowercase words, punctuation stripped,
// short words and stopwords dropped, deduped, capped at MaxTags.
func TagsFromText(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{})
	var tags []string
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

// Phrases that mark a refusal or error reply rather than a description.
var badPhrases = []string{
	"desculpe",
	"não posso ajudar",
	"não posso descrever",
	"não consigo",
	"como modelo de linguagem",
	"i'm sorry",
	"i cannot",
	"as an ai",
}

// Clean drops refusal-style descriptions and malformed tags from a model
// reply before anything is persisted.
func Clean(res Result) Result {
	lower := strings.ToLower(res.Description)
	for _, p := range badPhrases {
		if strings.Contains(lower, p) {
			res.Description = ""
			break
		}
	}
	res.Description = strings.TrimSpace(res.Description)

	var tags []string
	for _, t := range res.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || strings.Contains(t, "##") {
			continue
		}
		bad := false
		for _, p := range badPhrases {
			if strings.Contains(t, p) {
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		tags = append(tags, t)
		if len(tags) == MaxTags {
			break
		}
	}
	res.Tags = tags
	return res
}
