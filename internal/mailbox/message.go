package mailbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"
)

// Message is one fetched email with its full RFC822 bytes.
type Message struct {
	Mailbox   string
	UID       uint32
	MessageID string
	From      string
	Subject   string
	Date      time.Time
	Raw       []byte
}

// ID is the stable email id used by the processed-email ledger: the Message-ID
// header when present, else mailbox and UID.
func (m Message) ID() string {
	if id := strings.Trim(strings.TrimSpace(m.MessageID), "<>"); id != "" {
		return id
	}
	if m.UID == 0 {
		return ""
	}
	mbox := m.Mailbox
	if mbox == "" {
		mbox = "INBOX"
	}
	return fmt.Sprintf("%s:%d", mbox, m.UID)
}

// fillFromHeaders backfills envelope fields the server did not return.
func (m *Message) fillFromHeaders() {
	if len(m.Raw) == 0 || (m.Subject != "" && m.From != "" && m.MessageID != "" && !m.Date.IsZero()) {
		return
	}
	msg, err := mail.ReadMessage(bytes.NewReader(m.Raw))
	if err != nil {
		return
	}
	h := msg.Header
	if m.Subject == "" {
		m.Subject = DecodeHeader(h.Get("Subject"))
	}
	if m.From == "" {
		m.From = DecodeHeader(h.Get("From"))
	}
	if m.MessageID == "" {
		m.MessageID = strings.TrimSpace(h.Get("Message-Id"))
	}
	if m.Date.IsZero() {
		if t, err := mail.ParseDate(h.Get("Date")); err == nil {
			m.Date = t
		}
	}
}

// Body is the decoded content of a message.
type Body struct {
	Subject string
	Text    string
	HTML    string
}

// Decode parses raw RFC822 bytes into subject and text/html bodies. Unparseable input
// is returned as plain text.
func Decode(raw []byte, fallbackSubject string) Body {
	if len(raw) == 0 {
		return Body{Subject: fallbackSubject}
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Body{Subject: fallbackSubject, Text: string(raw)}
	}

	b := Body{Subject: DecodeHeader(msg.Header.Get("Subject"))}
	if b.Subject == "" {
		b.Subject = fallbackSubject
	}

	bodyRaw, _ := io.ReadAll(io.LimitReader(msg.Body, 25<<20))
	b.Text, b.HTML = textParts(msg.Header, bodyRaw)
	if b.Text == "" && b.HTML == "" {
		b.Text = string(bodyRaw)
	}
	return b
}

func textParts(h mail.Header, body []byte) (plain, htmlPart string) {
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))

	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return string(decodeTransfer(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return string(decodeTransfer(body, cte)), ""
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)

		var bestPlain, bestHTML string
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			partCTE := strings.ToLower(strings.TrimSpace(p.Header.Get("Content-Transfer-Encoding")))
			pMedia, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			pMedia = strings.ToLower(pMedia)

			b, _ := io.ReadAll(io.LimitReader(p, 20<<20))

			if strings.HasPrefix(pMedia, "multipart/") {
				pl, ht := textParts(mail.Header(p.Header), b)
				if len(pl) > len(bestPlain) {
					bestPlain = pl
				}
				if len(ht) > len(bestHTML) {
					bestHTML = ht
				}
				continue
			}

			b = decodeTransfer(b, partCTE)
			switch {
			case strings.HasPrefix(pMedia, "text/plain"):
				if len(b) > len(bestPlain) {
					bestPlain = string(b)
				}
			case strings.HasPrefix(pMedia, "text/html"):
				if len(b) > len(bestHTML) {
					bestHTML = string(b)
				}
			}
		}
		return bestPlain, bestHTML
	}

	s := decodeTransfer(body, cte)
	if strings.HasPrefix(mediaType, "text/html") {
		return "", string(s)
	}
	return string(s), ""
}

func decodeTransfer(b []byte, cte string) []byte {
	switch cte {
	case "base64":
		out, _ := io.ReadAll(io.LimitReader(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b)), 6<<20))
		return out
	case "quoted-printable":
		out, _ := io.ReadAll(io.LimitReader(quotedprintable.NewReader(bytes.NewReader(b)), 6<<20))
		return out
	default:
		return b
	}
}

// DecodeHeader decodes RFC 2047 encoded words, returning s unchanged on error.
func DecodeHeader(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	out, err := new(mime.WordDecoder).DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
