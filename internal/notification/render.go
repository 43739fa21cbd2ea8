package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/email"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
)

// Message is a rendered mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type instanceReadyView struct {
	InstanceReady
	Greeting string
}

type trialReminderView struct {
	TrialReminder
	Greeting string
}

// RenderInstanceReady renders the credentials mail.
func RenderInstanceReady(msg InstanceReady) (Message, error) {
	view := instanceReadyView{InstanceReady: msg, Greeting: email.DisplayName(msg.Name, msg.To)}
	return render(msg.To, "Your trial environment is ready", "instance_ready", view)
}

// RenderTrialReminder renders the expiry reminder.
func RenderTrialReminder(msg TrialReminder) (Message, error) {
	view := trialReminderView{TrialReminder: msg, Greeting: email.DisplayName(msg.Name, msg.To)}
	subject := fmt.Sprintf("Your trial expires in %d day(s)", msg.DaysLeft)
	return render(msg.To, subject, "trial_reminder", view)
}

func render(to, subject, name string, view any) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", view); err != nil {
		return Message{}, dErrors.Wrap(err, dErrors.CodeNotification, "render "+name)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", view); err != nil {
		return Message{}, dErrors.Wrap(err, dErrors.CodeNotification, "render "+name)
	}
	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
