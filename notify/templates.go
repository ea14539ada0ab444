package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/civicpulse/authcore"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

type templateData struct {
	Name    string
	Code    string
	Minutes int
}

var subjects = map[authcore.Purpose]string{
	authcore.PurposeSignup:        "Confirm your email address",
	authcore.PurposeLogin:         "Your sign-in code",
	authcore.PurposePasswordReset: "Reset your password",
	authcore.PurposeEmailChange:   "Confirm your new email address",
}

var codeBody = template.Must(template.New("code").Parse(
	`Hello{{if .Name}} {{.Name}}{{end}},

Your code is {{.Code}}. It expires in {{.Minutes}} minute{{if ne .Minutes 1}}s{{end}}.

If you did not ask for this code you can ignore this message.
`))

var welcomeBody = template.Must(template.New("welcome").Parse(
	`Hello{{if .Name}} {{.Name}}{{end}},

Your email address is confirmed and your account is ready.
`))

// Render builds the subject and plain-text body for n. now is used to
// compute the remaining validity of a code.
func Render(n authcore.Notification, now time.Time) (Message, error) {
	var (
		buf  bytes.Buffer
		msg  Message
		data = templateData{Name: n.DisplayName, Code: n.Code}
	)
	switch n.Kind {
	case authcore.NotificationCode:
		subject, ok := subjects[n.Purpose]
		if !ok {
			return Message{}, fmt.Errorf("notify: no template for purpose %q", n.Purpose)
		}
		data.Minutes = minutesLeft(n.ExpiresAt, now)
		if err := codeBody.Execute(&buf, data); err != nil {
			return Message{}, err
		}
		msg.Subject = subject
	case authcore.NotificationWelcome:
		if err := welcomeBody.Execute(&buf, data); err != nil {
			return Message{}, err
		}
		msg.Subject = "Welcome"
	default:
		return Message{}, fmt.Errorf("notify: unknown kind %q", n.Kind)
	}
	msg.Body = buf.String()
	return msg, nil
}

func minutesLeft(expiresAt, now time.Time) int {
	m := int((expiresAt.Sub(now) + time.Minute - 1) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}
