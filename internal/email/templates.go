package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

type message struct {
	Subject string
	HTML    string
	Text    string
}

type emailTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

const (
	templateVerificationCode = "verification_code"
	templateAccountLocked    = "account_locked"
	templatePasswordReset    = "password_reset"
)

var templates = map[string]emailTemplate{
	templateVerificationCode: {
		subject: "Your MedQueue verification code",
		html: htmltemplate.Must(htmltemplate.New("verification_html").Parse(`
		<h2>Hello {{.Username}},</h2>
		<p>Your verification code is:</p>
		<p style="font-size:24px;font-weight:bold;letter-spacing:4px">{{.Code}}</p>
		<p>This code will expire in {{.ExpiresIn}}.</p>
		<p>If you did not try to sign in, please change your password.</p>
	`)),
		text: texttemplate.Must(texttemplate.New("verification_text").Parse(
			"Hello {{.Username}},\n\nYour verification code is: {{.Code}}\n\n" +
				"This code will expire in {{.ExpiresIn}}.\n" +
				"If you did not try to sign in, please change your password.\n")),
	},
	templateAccountLocked: {
		subject: "Your MedQueue account has been locked",
		html: htmltemplate.Must(htmltemplate.New("locked_html").Parse(`
		<h2>Hello {{.Username}},</h2>
		<p>Your account was locked after too many failed sign-in attempts.</p>
		<p>You can try again after {{.UnlockAt}}.</p>
		<p>If this was not you, reset your password once the lock expires.</p>
	`)),
		text: texttemplate.Must(texttemplate.New("locked_text").Parse(
			"Hello {{.Username}},\n\nYour account was locked after too many failed sign-in attempts.\n" +
				"You can try again after {{.UnlockAt}}.\n" +
				"If this was not you, reset your password once the lock expires.\n")),
	},
	templatePasswordReset: {
		subject: "Reset your MedQueue password",
		html: htmltemplate.Must(htmltemplate.New("reset_html").Parse(`
		<h2>Hello {{.Username}},</h2>
		<p>You have requested to reset your password. Use this code:</p>
		<p style="font-size:24px;font-weight:bold;letter-spacing:4px">{{.Code}}</p>
		<p>This code will expire in {{.ExpiresIn}}.</p>
		<p>If you did not request a password reset, please ignore this email.</p>
	`)),
		text: texttemplate.Must(texttemplate.New("reset_text").Parse(
			"Hello {{.Username}},\n\nYou have requested to reset your password. Use this code: {{.Code}}\n\n" +
				"This code will expire in {{.ExpiresIn}}.\n" +
				"If you did not request a password reset, please ignore this email.\n")),
	},
}

type templateData struct {
	Username  string
	Code      string
	ExpiresIn string
	UnlockAt  string
}

func render(name string, data templateData) (*message, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}

	var html, text bytes.Buffer
	if err := tmpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to execute email template: %w", err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to execute email template: %w", err)
	}
	return &message{Subject: tmpl.subject, HTML: html.String(), Text: text.String()}, nil
}

// humanDuration renders 10m as "10 minutes" and 1h as "1 hour"
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	}
	return d.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
