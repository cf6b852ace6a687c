package mailer

import "strings"

// Template is a subject/body pair with {{placeholder}} substitution.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Template types understood by the platform.
const (
	TemplateOTP        = "otp"
	TemplateWelcome    = "welcome"
	TemplateWithdrawal = "withdrawal"
)

var defaultTemplates = map[string]Template{
	TemplateOTP: {
		Subject: "Your GEM BOT Verification Code",
		Body:    "Your verification code is: {{otp}}. Valid for 10 minutes.",
	},
	TemplateWelcome: {
		Subject: "Welcome to GEM BOT",
		Body:    "Welcome {{name}}! Your account has been activated. Referral code: {{referral_code}}",
	},
	TemplateWithdrawal: {
		Subject: "Withdrawal Processed",
		Body:    "Your withdrawal of ${{amount}} USDT has been processed. TXN: {{txn_hash}}",
	},
}

// DefaultTemplate returns the built-in template for the given type, falling
// back to a generic notification when the type is unknown.
func DefaultTemplate(templateType string) Template {
	if tpl, ok := defaultTemplates[templateType]; ok {
		return tpl
	}
	return Template{Subject: "GEM BOT Notification", Body: "Notification from GEM BOT"}
}

// DefaultTemplateTypes lists the template types seeded on first boot.
func DefaultTemplateTypes() []string {
	return []string{TemplateOTP, TemplateWelcome, TemplateWithdrawal}
}

// Render substitutes {{key}} placeholders in both subject and body.
func (t Template) Render(vars map[string]string) Template {
	out := t
	for key, value := range vars {
		needle := "{{" + key + "}}"
		out.Subject = strings.ReplaceAll(out.Subject, needle, value)
		out.Body = strings.ReplaceAll(out.Body, needle, value)
	}
	return out
}
