// Package message renders the outreach text sent to each recipient.
//
// Templates use Liquid syntax so operators can edit them without code
// changes; the renderer exposes a small, fixed binding set per campaign
// kind.
package message

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Default templates, overridable per kind via SetTemplate.
const (
	defaultBirthday = "Olá {{ first_name }}! A equipe Safegreen deseja um feliz aniversário. 🎉"
	defaultRenewal  = "Olá {{ first_name }}, seu certificado vence em {{ expires_on }}. Fale com a gente para renovar sem perder o prazo."
)

// Renderer compiles and caches one Liquid template per campaign kind.
type Renderer struct {
	engine    *liquid.Engine
	templates map[domain.CampaignKind]string
}

// NewRenderer returns a renderer seeded with the default templates.
func NewRenderer() *Renderer {
	return &Renderer{
		engine: liquid.NewEngine(),
		templates: map[domain.CampaignKind]string{
			domain.KindBirthday: defaultBirthday,
			domain.KindRenewal:  defaultRenewal,
		},
	}
}

// SetTemplate replaces the template for a kind. The template is validated
// by compiling it once.
func (r *Renderer) SetTemplate(kind domain.CampaignKind, tpl string) error {
	if _, err := r.engine.ParseString(tpl); err != nil {
		return fmt.Errorf("template for %s does not parse: %w", kind, err)
	}
	r.templates[kind] = tpl
	return nil
}

// Render produces the personalized message for one contact.
func (r *Renderer) Render(kind domain.CampaignKind, c domain.Contact) (string, error) {
	tpl, ok := r.templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for kind %s", kind)
	}

	bindings := map[string]interface{}{
		"first_name": c.FirstName(),
		"name":       c.Name,
		"region":     c.Region,
	}
	if c.RenewalAt != nil {
		bindings["expires_on"] = c.RenewalAt.Format("02/01/2006")
	}
	if c.BirthDate != nil {
		bindings["birth_date"] = c.BirthDate.Format("02/01")
	}

	out, err := r.engine.ParseAndRenderString(tpl, bindings)
	if err != nil {
		return "", fmt.Errorf("render %s message: %w", kind, err)
	}
	return out, nil
}
