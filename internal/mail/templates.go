package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	TemplateReceipt       = "receipt"
	TemplateSaleSeller    = "sale_seller"
	TemplateSaleBuyer     = "sale_buyer"
	TemplatePasswordReset = "password_reset"
	TemplateLoginCode     = "login_code"
)

type tmpl struct {
	subject string
	text    string
	html    string
}

var templates = map[string]tmpl{
	TemplateReceipt: {
		subject: "Your parcel of time: {{.UnitKey}}",
		text: `Thank you. {{.UnitKey}} is yours.

Amount: {{.Amount}}
Certificate: {{.CertURL}}
View: {{.ClaimURL}}
{{- if .GiftCode}}

This was a gift. Share the following with the recipient:
Claim ID: {{.ClaimID}}
Certificate hash: {{.CertHash}}
Code: {{.GiftCode}}
{{- end}}
`,
		html: `<p>Thank you. <strong>{{.UnitKey}}</strong> is yours.</p>
<p>Amount: {{.Amount}}</p>
<p><a href="{{.CertURL}}">Download certificate</a> · <a href="{{.ClaimURL}}">View</a></p>
{{- if .GiftCode}}
<p>This was a gift. Share the following with the recipient:</p>
<ul><li>Claim ID: {{.ClaimID}}</li><li>Certificate hash: {{.CertHash}}</li><li>Code: <code>{{.GiftCode}}</code></li></ul>
{{- end}}`,
	},
	TemplateSaleSeller: {
		subject: "{{.UnitKey}} has sold",
		text:    "Your listing for {{.UnitKey}} sold for {{.Amount}}. Proceeds go to your payout account.\n",
		html:    `<p>Your listing for <strong>{{.UnitKey}}</strong> sold for {{.Amount}}. Proceeds go to your payout account.</p>`,
	},
	TemplateSaleBuyer: {
		subject: "You now own {{.UnitKey}}",
		text:    "Your purchase of {{.UnitKey}} for {{.Amount}} is complete.\nCertificate: {{.CertURL}}\nView: {{.ClaimURL}}\n",
		html:    `<p>Your purchase of <strong>{{.UnitKey}}</strong> for {{.Amount}} is complete.</p><p><a href="{{.CertURL}}">Certificate</a> · <a href="{{.ClaimURL}}">View</a></p>`,
	},
	TemplatePasswordReset: {
		subject: "Reset your password",
		text:    "Use this link to choose a new password. It expires {{.Expires}}.\n{{.Link}}\n\nIf you did not ask for this, ignore this email.\n",
		html:    `<p>Use this link to choose a new password. It expires {{.Expires}}.</p><p><a href="{{.Link}}">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>`,
	},
	TemplateLoginCode: {
		subject: "Your sign-in code: {{.Code}}",
		text:    "Your sign-in code is {{.Code}}. It expires {{.Expires}}.\n",
		html:    `<p>Your sign-in code is <strong>{{.Code}}</strong>. It expires {{.Expires}}.</p>`,
	},
}

func render(name string, data any) (Message, error) {
	t, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	subject, err := execText(name+".subject", t.subject, data)
	if err != nil {
		return Message{}, err
	}
	text, err := execText(name+".text", t.text, data)
	if err != nil {
		return Message{}, err
	}
	h, err := htmltemplate.New(name + ".html").Parse(t.html)
	if err != nil {
		return Message{}, err
	}
	var buf bytes.Buffer
	if err := h.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, Text: text, HTML: buf.String(), Template: name}, nil
}

func execText(name, src string, data any) (string, error) {
	t, err := texttemplate.New(name).Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
