// Package mailbox reads job-application notification emails over IMAP.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Addr     string // host:port
	Username string
	Password string
	TLS      *tls.Config
}

// Query selects which messages of a mailbox are fetched.
type Query struct {
	Mailbox    string
	OnlyUnseen bool
	Since      time.Time
	Max        int
}

type Client struct {
	c   *imapclient.Client
	log logrus.FieldLogger

	selected string
}

// Addr joins host and port, defaulting to the IMAPS port.
func Addr(host string, port int) string {
	host = strings.TrimSpace(host)
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

// Dial connects over TLS and logs in. The connection is closed when ctx is done.
func Dial(ctx context.Context, o Options, log logrus.FieldLogger) (*Client, error) {
	if o.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if o.Username == "" || o.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	tlsCfg := o.TLS
	if tlsCfg == nil {
		host, _, _ := net.SplitHostPort(o.Addr)
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c, err := imapclient.DialTLS(o.Addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(o.Username, o.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return &Client{c: c, log: log.WithField("component", "mailbox")}, nil
}

// Fetch returns up to q.Max messages, newest first, with their raw RFC822 bytes.
// Bodies are fetched with BODY.PEEK[] so nothing is marked \Seen here.
func (cl *Client) Fetch(ctx context.Context, q Query) ([]Message, error) {
	mbox := strings.TrimSpace(q.Mailbox)
	if mbox == "" {
		mbox = "INBOX"
	}
	if _, err := cl.c.Select(mbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", mbox, err)
	}
	cl.selected = mbox

	max := q.Max
	if max <= 0 {
		max = 50
	}

	criteria := &imap.SearchCriteria{}
	if q.OnlyUnseen {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}

	searchData, err := cl.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []Message{}, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := cl.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{Mailbox: mbox, UID: uint32(buf.UID)}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.Date = buf.Envelope.Date
			m.From = joinAddrs(buf.Envelope.From)
			m.MessageID = buf.Envelope.MessageID
		}
		if m.Date.IsZero() {
			m.Date = buf.InternalDate
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.Raw = append([]byte(nil), b...)
		}
		m.fillFromHeaders()
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	cl.log.WithFields(logrus.Fields{"mailbox": mbox, "count": len(out)}).Debug("fetched messages")
	return out, nil
}

// MarkSeen sets \Seen on messages of the mailbox selected by the last Fetch.
func (cl *Client) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	if cl.selected == "" {
		return errors.New("imap: no mailbox selected")
	}
	set := make([]imap.UID, 0, len(uids))
	for _, u := range uids {
		set = append(set, imap.UID(u))
	}

	cmd := cl.c.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

// Close logs out then closes the connection.
func (cl *Client) Close() error {
	if cl == nil || cl.c == nil {
		return nil
	}
	if err := cl.c.Logout().Wait(); err != nil {
		cl.log.WithError(err).Debug("imap logout")
	}
	return cl.c.Close()
}

func joinAddrs(addrs []imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		name := strings.TrimSpace(a.Name)
		switch {
		case addr != "" && name != "":
			parts = append(parts, fmt.Sprintf("%s <%s>", name, addr))
		case addr != "":
			parts = append(parts, addr)
		case name != "":
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}
