package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) Send(msg *gomail.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestMailNotifier_Changed(t *testing.T) {
	sender := &fakeSender{}
	n := NewMailNotifier("watch@example.com", sender)
	assert.Equal(t, "mail", n.Name())

	require.NoError(t, n.Notify(context.Background(), "ops@example.com", changedChange()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"watch@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"[pagewatch] ip changed (1 item(s))"}, msg.GetHeader("Subject"))
}

func TestMailNotifier_RenderDiffTable(t *testing.T) {
	c := changedChange()
	c.Diff = append(c.Diff, Diff{Item: "banner", Old: "", New: "<b>sale</b>"})

	body, err := renderMail(c)
	require.NoError(t, err)

	assert.Contains(t, body, "<td valign=\"top\">value</td>")
	assert.Contains(t, body, "Old: 1.1.1.1<br />")
	assert.Contains(t, body, "New: 2.2.2.2")
	assert.Contains(t, body, "New: &lt;b&gt;sale&lt;/b&gt;")
	assert.Contains(t, body, "https://example.com/ip")
	assert.NotContains(t, body, "<pre>")
}

func TestMailNotifier_RenderFailure(t *testing.T) {
	body, err := renderMail(&Change{Job: "ip", Error: "timeout", Time: testTime})
	require.NoError(t, err)

	assert.Contains(t, body, "ip failed")
	assert.Contains(t, body, "<pre>timeout</pre>")
	assert.NotContains(t, body, "<table")
}

func TestMailNotifier_Errors(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	n := NewMailNotifier("watch@example.com", sender)

	err := n.Notify(context.Background(), "", changedChange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient")
	assert.Empty(t, sender.sent)

	err = n.Notify(context.Background(), "ops@example.com", changedChange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.Notify(ctx, "ops@example.com", changedChange())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sender.sent, 1)

	err = NewMailNotifier("watch@example.com", nil).Notify(context.Background(), "ops@example.com", changedChange())
	assert.Error(t, err)
}
