package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"golang.org/x/text/language"

	"github.com/spec-kit/auth-gateway/internal/i18n"
)

// Template names.
const (
	TemplateWelcome       = "welcome"
	TemplateResetPassword = "reset_password"
	TemplateDeleteAccount = "delete_account"
)

// TemplateData is what every template can reference.
type TemplateData struct {
	Name string
	URL  string
}

var subjectKeys = map[string]string{
	TemplateWelcome:       "mail.welcome.subject",
	TemplateResetPassword: "mail.reset_password.subject",
	TemplateDeleteAccount: "mail.delete_account.subject",
}

var bodies = map[string]map[string]string{
	"pt": {
		TemplateWelcome: `<p>Olá, {{.Name}}!</p>
<p>Sua conta foi criada com sucesso. Seja bem-vindo(a)!</p>`,
		TemplateResetPassword: `<p>Olá, {{.Name}}.</p>
<p>Recebemos um pedido para redefinir sua senha. <a href="{{.URL}}">Clique aqui para criar uma nova senha</a>.</p>
<p>Se você não fez esse pedido, ignore este e-mail.</p>`,
		TemplateDeleteAccount: `<p>Olá, {{.Name}}.</p>
<p>Para confirmar a exclusão da sua conta, <a href="{{.URL}}">clique aqui</a>. Essa ação não pode ser desfeita.</p>`,
	},
	"en": {
		TemplateWelcome: `<p>Hi {{.Name}},</p>
<p>Your account is ready. Welcome aboard!</p>`,
		TemplateResetPassword: `<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. <a href="{{.URL}}">Choose a new password</a>.</p>
<p>If you did not ask for this, ignore this email.</p>`,
		TemplateDeleteAccount: `<p>Hi {{.Name}},</p>
<p>To confirm deleting your account, <a href="{{.URL}}">click here</a>. This cannot be undone.</p>`,
	},
}

var templates = parseTemplates()

func parseTemplates() map[string]*template.Template {
	out := make(map[string]*template.Template)
	for lang, set := range bodies {
		for name, body := range set {
			key := lang + "/" + name
			out[key] = template.Must(template.New(key).Parse(body))
		}
	}
	return out
}

// Render builds the localized message for a template. Unknown languages use
// the default locale.
func Render(name string, tag language.Tag, to string, data TemplateData) (Message, error) {
	subjectKey, ok := subjectKeys[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}
	base, _ := tag.Base()
	tmpl, ok := templates[base.String()+"/"+name]
	if !ok {
		defaultBase, _ := i18n.Default().Base()
		tmpl = templates[defaultBase.String()+"/"+name]
		tag = i18n.Default()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{
		To:      to,
		Subject: i18n.T(tag, subjectKey),
		HTML:    buf.String(),
	}, nil
}
