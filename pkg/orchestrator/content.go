package orchestrator

import (
	"strings"

	"github.com/rhuss/workbridge/pkg/api"
)

// Placeholder is rendered wherever a link target is unknown.
const Placeholder = "TBD"

// Tokens recognized in artifact bodies.
const (
	TokenTicketKey   = "{{ticket.key}}"
	TokenTicketURL   = "{{ticket.url}}"
	TokenImplPlanURL = "{{impl_plan.url}}"
	TokenQAPlanURL   = "{{qa_plan.url}}"
)

// Links are the artifact locations known at render time. Empty fields are
// rendered as Placeholder.
type Links struct {
	TicketKey   string
	TicketURL   string
	ImplPlanURL string
	QAPlanURL   string
}

// linksFrom collects the links of all successful steps so far.
func linksFrom(sc *StepContext) Links {
	var l Links
	if ref, ok := sc.Reference(api.StepTicket); ok {
		l.TicketKey = ref.Key
		l.TicketURL = ref.URL
	}
	if ref, ok := sc.Reference(api.StepImplPlan); ok {
		l.ImplPlanURL = ref.URL
	}
	if ref, ok := sc.Reference(api.StepQAPlan); ok {
		l.QAPlanURL = ref.URL
	}
	return l
}

// Render substitutes the four link tokens in body; a token whose link is
// unknown becomes Placeholder. Any other text, braces included, is left
// as is.
func Render(body string, l Links) string {
	return strings.NewReplacer(
		TokenTicketKey, orPlaceholder(l.TicketKey),
		TokenTicketURL, orPlaceholder(l.TicketURL),
		TokenImplPlanURL, orPlaceholder(l.ImplPlanURL),
		TokenQAPlanURL, orPlaceholder(l.QAPlanURL),
	).Replace(body)
}

// resource is one entry of a Related Resources section.
type resource struct {
	label string
	url   string
}

// relatedResources renders a markdown section listing the given resources.
func relatedResources(entries ...resource) string {
	var b strings.Builder
	b.WriteString("## Related Resources\n\n")
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.label)
		b.WriteString(": ")
		b.WriteString(orPlaceholder(e.url))
		b.WriteString("\n")
	}
	return b.String()
}

// withSection appends section to body separated by a blank line.
func withSection(body, section string) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return section
	}
	return body + "\n\n" + section
}

// ticketBody renders the ticket description with links to both plans.
func ticketBody(tmpl string, l Links) string {
	return withSection(Render(tmpl, l), relatedResources(
		resource{"Implementation Plan", l.ImplPlanURL},
		resource{"QA Plan", l.QAPlanURL},
	))
}

// implPlanBody renders the implementation plan with links to the ticket
// and the QA plan.
func implPlanBody(tmpl string, l Links) string {
	return withSection(Render(tmpl, l), relatedResources(
		resource{ticketLabel(l), l.TicketURL},
		resource{"QA Plan", l.QAPlanURL},
	))
}

// qaPlanBody renders the QA plan with links to the ticket and the
// implementation plan.
func qaPlanBody(tmpl string, l Links) string {
	return withSection(Render(tmpl, l), relatedResources(
		resource{ticketLabel(l), l.TicketURL},
		resource{"Implementation Plan", l.ImplPlanURL},
	))
}

func ticketLabel(l Links) string {
	if l.TicketKey != "" {
		return "Ticket " + l.TicketKey
	}
	return "Ticket"
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
