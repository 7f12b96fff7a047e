package email

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"compact-connect-backend/internal/config"
)

// Kind is one of the four investigation notifications.
type Kind string

const (
	LicenseInvestigation         Kind = "licenseInvestigation"
	LicenseInvestigationClosed   Kind = "licenseInvestigationClosed"
	PrivilegeInvestigation       Kind = "privilegeInvestigation"
	PrivilegeInvestigationClosed Kind = "privilegeInvestigationClosed"
)

// Kinds lists every notification kind.
var Kinds = []Kind{LicenseInvestigation, LicenseInvestigationClosed, PrivilegeInvestigation, PrivilegeInvestigationClosed}

// Noun is "license" or "privilege".
func (k Kind) Noun() string {
	switch k {
	case PrivilegeInvestigation, PrivilegeInvestigationClosed:
		return "privilege"
	default:
		return "license"
	}
}

func (k Kind) Closed() bool {
	return k == LicenseInvestigationClosed || k == PrivilegeInvestigationClosed
}

func (k Kind) describe() string {
	if k.Closed() {
		return k.Noun() + " investigation closed"
	}
	return k.Noun() + " investigation"
}

// Variables parameterise an investigation email. ProviderID is empty on
// provider-facing emails.
type Variables struct {
	ProviderFirstName         string
	ProviderLastName          string
	InvestigationJurisdiction string
	LicenseType               string
	ProviderID                string
}

type audience string

const (
	toProvider audience = "provider"
	toState    audience = "state"
)

type templateSource struct {
	subject string
	body    string
}

const (
	openedProviderSubject = `Your {{ licenseType }} {{ noun }} in {{ jurisdictionName }} is under investigation`
	closedProviderSubject = `The investigation on your {{ licenseType }} {{ noun }} in {{ jurisdictionName }} has been closed`
	openedStateSubject    = `{{ firstName }} {{ lastName }} holding {{ licenseType }} {{ noun }} in {{ jurisdictionName }} is under investigation`
	closedStateSubject    = `Investigation on {{ firstName }} {{ lastName }}'s {{ licenseType }} {{ noun }} in {{ jurisdictionName }} has been closed`

	layout = `<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #242424;">
<h1 style="font-size: 20px;">%s</h1>
%s
<p style="font-size: 12px; color: #6b6b6b;">This message was sent by Compact Connect. Please do not reply.</p>
</body></html>`

	openedProviderBody = `<p>{{ firstName | escape }} {{ lastName | escape }},</p>
<p>The licensing board in {{ jurisdictionName }} has opened an investigation on your {{ licenseType }} {{ noun }}. You will be notified when the investigation is closed.</p>`
	closedProviderBody = `<p>{{ firstName | escape }} {{ lastName | escape }},</p>
<p>The licensing board in {{ jurisdictionName }} has closed its investigation on your {{ licenseType }} {{ noun }}.</p>`
	openedStateBody = `<p>{{ firstName | escape }} {{ lastName | escape }} holding a <em>{{ licenseType }}</em> {{ noun }} in {{ jurisdictionName }} is under investigation.</p>
{% if providerUrl != "" %}<p><a href="{{ providerUrl }}">View the provider in Compact Connect</a></p>{% endif %}`
	closedStateBody = `<p>The investigation on {{ firstName | escape }} {{ lastName | escape }} holding a <em>{{ licenseType }}</em> {{ noun }} in {{ jurisdictionName }} has been closed.</p>
{% if providerUrl != "" %}<p><a href="{{ providerUrl }}">View the provider in Compact Connect</a></p>{% endif %}`
)

var escapeNames = strings.NewReplacer(
	"{{ firstName }}", "{{ firstName | escape }}",
	"{{ lastName }}", "{{ lastName | escape }}",
)

func sources(kind Kind, to audience) templateSource {
	switch {
	case to == toProvider && !kind.Closed():
		return templateSource{subject: openedProviderSubject, body: openedProviderBody}
	case to == toProvider:
		return templateSource{subject: closedProviderSubject, body: closedProviderBody}
	case !kind.Closed():
		return templateSource{subject: openedStateSubject, body: openedStateBody}
	default:
		return templateSource{subject: closedStateSubject, body: closedStateBody}
	}
}

type templateKey struct {
	kind Kind
	to   audience
}

type compiled struct {
	subject *liquid.Template
	body    *liquid.Template
}

// Templates holds every investigation template, parsed once.
type Templates struct {
	uiBasePathURL string
	compiled      map[templateKey]compiled
}

// NewTemplates parses all templates. uiBasePathURL is the root of the staff
// web app; state emails link to the provider under it.
func NewTemplates(uiBasePathURL string) (*Templates, error) {
	engine := liquid.NewEngine()
	t := &Templates{uiBasePathURL: uiBasePathURL, compiled: map[templateKey]compiled{}}
	for _, kind := range Kinds {
		for _, to := range []audience{toProvider, toState} {
			src := sources(kind, to)
			subject, err := engine.ParseString(src.subject)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s %s subject: %w", kind, to, err)
			}
			body, err := engine.ParseString(fmt.Sprintf(layout, escapeNames.Replace(src.subject), src.body))
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s %s body: %w", kind, to, err)
			}
			t.compiled[templateKey{kind, to}] = compiled{subject: subject, body: body}
		}
	}
	return t, nil
}

func (t *Templates) render(kind Kind, to audience, compact string, vars Variables) (Message, error) {
	tpl, ok := t.compiled[templateKey{kind, to}]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	providerURL := ""
	if vars.ProviderID != "" && t.uiBasePathURL != "" {
		providerURL = fmt.Sprintf("%s/%s/Licensing/%s", t.uiBasePathURL, compact, vars.ProviderID)
	}
	bindings := liquid.Bindings{
		"firstName":        vars.ProviderFirstName,
		"lastName":         vars.ProviderLastName,
		"licenseType":      vars.LicenseType,
		"noun":             kind.Noun(),
		"jurisdictionName": config.JurisdictionName(vars.InvestigationJurisdiction),
		"providerUrl":      providerURL,
	}

	subject, err := tpl.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	body, err := tpl.body.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("failed to render %s body: %w", kind, err)
	}
	return Message{Subject: subject, HTMLBody: body}, nil
}
