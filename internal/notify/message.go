package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/hylla/sgc/internal/domain"
)

// wording holds the subject and opening line of a template. Both take the unit label.
type wording struct {
	subject  string
	headline string
}

var wordings = map[Template]wording{
	TemplateProcessStarted:              {"Process started for %s", "A new process started and unit %s takes part in it."},
	TemplateProcessFinished:             {"Process finished for %s", "The process was finished; the results for unit %s are now in force."},
	TemplateProcessFinishedSubordinates: {"Process finished for units under %s", "The process was finished for the following units subordinate to %s."},

	Template(domain.EventCadastroSubmitted):   {"Cadastro of %s awaits review", "The cadastro of unit %s was submitted and awaits your review."},
	Template(domain.EventCadastroReturned):    {"Cadastro of %s returned", "The cadastro of unit %s was returned for adjustments."},
	Template(domain.EventCadastroAccepted):    {"Cadastro of %s awaits review", "The cadastro of unit %s was accepted at the previous level and awaits your review."},
	Template(domain.EventCadastroHomologated): {"Cadastro of %s homologated", "The cadastro of unit %s was homologated."},
	Template(domain.EventMapSubmitted):        {"Competency map of %s available for validation", "The competency map of unit %s is available for validation."},
	Template(domain.EventMapValidated):        {"Competency map of %s validated", "Unit %s validated its competency map."},
	Template(domain.EventMapSuggested):        {"Suggestions for the competency map of %s", "Unit %s sent suggestions for its competency map."},
	Template(domain.EventMapReturned):         {"Competency map validation of %s returned", "The competency map validation of unit %s was returned for adjustments."},
	Template(domain.EventMapAccepted):         {"Competency map validation of %s awaits review", "The competency map validation of unit %s was accepted at the previous level and awaits your review."},
	Template(domain.EventMapHomologated):      {"Competency map of %s homologated", "The competency map of unit %s was homologated."},
	Template(domain.EventDiagnosisConcluded):  {"Diagnosis of %s concluded", "The diagnosis of unit %s was concluded."},
}

var bodyTemplate = template.Must(template.New("notification").Parse(`<html><body>
<p>Dear {{.Name}},</p>
<p>{{.Headline}}</p>
{{- if .Subordinates}}
<ul>
{{- range .Subordinates}}
<li>{{.Code}} - {{.Name}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Note}}
<p>Note: {{.Note}}</p>
{{- end}}
<p>Process: {{.Process}}</p>
</body></html>
`))

type bodyData struct {
	Name         string
	Headline     string
	Subordinates []domain.Unit
	Note         string
	Process      string
}

// Render builds the subject and HTML body of an intent.
func Render(intent Intent, subjectPrefix string) (string, string, error) {
	words, ok := wordings[intent.Template]
	if !ok {
		return "", "", fmt.Errorf("notify: unknown template %q", intent.Template)
	}
	label := intent.Unit.Code
	subject := fmt.Sprintf(words.subject, label)
	if intent.Event.ProcessDescription != "" {
		subject += " - " + intent.Event.ProcessDescription
	}
	if prefix := strings.TrimSpace(subjectPrefix); prefix != "" {
		subject = prefix + " " + subject
	}

	name := intent.Recipient.Name
	if name == "" {
		name = intent.Recipient.Email
	}
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, bodyData{
		Name:         name,
		Headline:     fmt.Sprintf(words.headline, intent.Unit.Label()),
		Subordinates: intent.Subordinates,
		Note:         intent.Event.Note,
		Process:      intent.Event.ProcessDescription,
	}); err != nil {
		return "", "", fmt.Errorf("notify: render %s: %w", intent.Template, err)
	}
	return subject, body.String(), nil
}
