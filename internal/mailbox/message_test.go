package mailbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rfc822(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "abc@mail.example.com", Message{MessageID: " <abc@mail.example.com> ", UID: 9}.ID())
	assert.Equal(t, "Jobs:42", Message{Mailbox: "Jobs", UID: 42}.ID())
	assert.Equal(t, "INBOX:7", Message{UID: 7}.ID())
	assert.Empty(t, Message{}.ID())
}

func TestDecode_Multipart(t *testing.T) {
	raw := rfc822(
		"From: Acme Talent <no-reply@acme.com>",
		"Subject: =?UTF-8?Q?Thank_you_for_applying_=E2=80=93_Engineer?=",
		"Message-ID: <m1@acme.com>",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"We received your application for Software =",
		"Engineer.",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"PHA+SGVsbG88L3A+",
		"--b1--",
		"",
	)

	b := Decode(raw, "")
	assert.Equal(t, "Thank you for applying – Engineer", b.Subject)
	assert.Contains(t, b.Text, "Software Engineer.")
	assert.Equal(t, "<p>Hello</p>", b.HTML)
}

func TestDecode_PlainAndGarbage(t *testing.T) {
	b := Decode(rfc822("Subject: Hi", "", "body text"), "x")
	assert.Equal(t, "Hi", b.Subject)
	assert.Equal(t, "body text", b.Text)

	b = Decode([]byte("not an email"), "fallback")
	assert.Equal(t, "fallback", b.Subject)
	assert.Equal(t, "not an email", b.Text)

	assert.Equal(t, Body{Subject: "s"}, Decode(nil, "s"))
}

func TestFillFromHeaders(t *testing.T) {
	m := Message{
		UID: 3,
		Raw: rfc822(
			"From: recruiting@globex.com",
			"Subject: Interview invitation",
			"Message-Id: <x1@globex.com>",
			"Date: Mon, 06 Jan 2025 10:00:00 +0000",
			"",
			"hello",
		),
	}
	m.fillFromHeaders()
	require.Equal(t, "Interview invitation", m.Subject)
	assert.Equal(t, "recruiting@globex.com", m.From)
	assert.Equal(t, "x1@globex.com", m.ID())
	assert.True(t, m.Date.Equal(time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "imap.gmail.com:993", Addr("imap.gmail.com", 0))
	assert.Equal(t, "imap.example.com:143", Addr("imap.example.com", 143))
	assert.Equal(t, "host:1993", Addr("host:1993", 993))
}
