package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

var mailTemplate = template.Must(template.New("mail").Parse(`<html>
<body style="font-family: Arial, sans-serif">
<p>{{ .Title }}</p>
<p>Job <i>{{ .Job }}</i> watches <a href="{{ .URL }}">{{ .URL }}</a>.</p>
{{- if .Error }}
<pre>{{ .Error }}</pre>
{{- end }}
{{- if .Diff }}
<table cellpadding="4" border="1" style="border-collapse: collapse">
	<tr>
		<th>Item</th>
		<th>Old/new value</th>
	</tr>
{{- range .Diff }}
	<tr>
		<td valign="top">{{ .Item }}</td>
		<td valign="top">
			Old: {{ .Old }}<br />
			New: {{ .New }}
		</td>
	</tr>
{{- end }}
</table>
{{- end }}
<p>Checked at {{ .Time.Format "2006-01-02 15:04:05 MST" }} by pagewatch.</p>
</body>
</html>
`))

// MailSender delivers a composed message
type MailSender interface {
	Send(msg *gomail.Message) error
}

type dialerSender struct {
	dialer *gomail.Dialer
}

func (d dialerSender) Send(msg *gomail.Message) error {
	return d.dialer.DialAndSend(msg)
}

// NewSMTPSender returns a sender that opens an SMTP connection per message
func NewSMTPSender(host string, port int, user, pass string) MailSender {
	return dialerSender{dialer: gomail.NewDialer(host, port, user, pass)}
}

// MailNotifier sends changes as HTML mail. The notify target is the recipient.
type MailNotifier struct {
	from   string
	sender MailSender
}

// NewMailNotifier creates a mail notifier sending from the given address
func NewMailNotifier(from string, sender MailSender) *MailNotifier {
	return &MailNotifier{from: from, sender: sender}
}

// Name returns the name of the notifier
func (m *MailNotifier) Name() string {
	return "mail"
}

// Notify mails the change to target
func (m *MailNotifier) Notify(ctx context.Context, target string, change *Change) error {
	if target == "" {
		return errors.New("mail notifier needs a recipient as target")
	}
	if m.sender == nil {
		return errors.New("mail notifier has no SMTP sender configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := renderMail(change)
	if err != nil {
		return fmt.Errorf("failed to render mail: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", target)
	msg.SetHeader("Subject", "[pagewatch] "+change.Title())
	msg.SetBody("text/html", body)

	if err := m.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", target, err)
	}
	return nil
}

func renderMail(change *Change) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, struct {
		*Change
		Title string
	}{Change: change, Title: change.Title()}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
