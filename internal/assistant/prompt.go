package assistant

import (
	"fmt"
	"strings"
	"text/template"
)

// Persona describes the voice the model writes replies in.
type Persona struct {
	Role      string
	Goal      string
	Backstory string
}

// DefaultPersona is the reply writer persona.
var DefaultPersona = Persona{
	Role: "Email Response Writer",
	Goal: "Draft tailored and effective responses for action-required emails. " +
		"You need to specify the Sender's Name and you need to specify the Name of The Email User",
	Backstory: "You are a skilled Email Response Writer specializing in drafting tailored and effective responses. " +
		"Your role is to ensure clear, concise communication for action-required emails.",
}

const promptText = `Role: {{.Persona.Role}}
Goal: {{.Persona.Goal}}
Backstory: {{.Persona.Backstory}}

You received an email from {{.Email.Sender}} with the following content: {{.Email.Snippet}}. ` +
	`Draft a polite and concise response that aligns with your role and goal.{{if .Signer}} Sign it as {{.Signer}}.{{end}}
`

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

// Prompt renders the drafting prompt for one email.
type Prompt struct {
	persona Persona
	signer  string
}

// NewPrompt creates a Prompt. signer, usually the operator's address,
// tells the model whose name to sign with; it may be empty.
func NewPrompt(p Persona, signer string) *Prompt {
	return &Prompt{persona: p, signer: signer}
}

// Render returns the prompt text for e.
func (p *Prompt) Render(e EmailRecord) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, struct {
		Persona Persona
		Email   EmailRecord
		Signer  string
	}{p.persona, e, p.signer})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}
