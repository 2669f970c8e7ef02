package research

import "github.com/quarryhq/quarry/pkg/models"

// ResolveLanguage picks the language directive a run should force from a
// search space's three LLM config slots. Configs with no Language set are
// ignored; one explicit language wins outright; two distinct explicit
// languages do not fail the run but return ok=false so the caller can emit
// a warning event before proceeding with the first one found.
func ResolveLanguage(configs ...models.LLMConfig) (language string, ok bool) {
	for _, c := range configs {
		if c.Language == "" {
			continue
		}
		if language == "" {
			language = c.Language
			ok = true
			continue
		}
		if c.Language != language {
			return language, false
		}
	}
	return language, ok
}
