package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/papermate/internal/present"
)

var examples = map[string]string{
	"Summarize a paper for a reading group": `papermate -f https://arxiv.org/html/2410.01234 "summarize the method in five bullets"`,
	"Question a local draft":                `cat draft.md | papermate -p claude "which claims lack a citation?"`,
	"Triage this week's papers":             `papermate papers --category cs.CL --raw | papermate "pick the three most relevant to retrieval"`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	pipeRe   = regexp.MustCompile(`\|`)
)

func cheapHighlighting(s present.Styles, code string) string {
	code = quotedRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	code = pipeRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Pipe.Render(x)
	})
	return code
}
