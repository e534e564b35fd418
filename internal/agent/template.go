package agent

import (
	"strings"
	"text/template"

	"github.com/dotcommander/papermate/internal/errs"
)

// DefaultTemplate wraps every question before it is sent.
const DefaultTemplate = `You are an academic assistant and the rest of this conversation is about the paper content provided below. ` +
	`Answer professionally and never use the first person. ` +
	`When an answer has several points, format it as markdown. ` +
	`Mathematical formulas in the paper may have lost their original formatting; interpret them as best you can, and write any formula you output in LaTeX. ` +
	`{{ .Question }}`

func parseTemplate(text string) (*template.Template, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("question").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errs.Wrap(err, "Could not parse the question template.")
	}
	return tmpl, nil
}

func render(tmpl *template.Template, question string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, struct{ Question string }{question}); err != nil {
		return "", errs.Wrap(err, "Could not render the question template.")
	}
	return sb.String(), nil
}
