package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"eventdesk/internal/config"
	"eventdesk/internal/models"
)

const mailDialTimeout = 15 * time.Second

var linkRx = regexp.MustCompile(`https?://[^\s<>"]+`)

// MailboxSource drains unseen messages from the partner announcements
// mailbox. Each message becomes one candidate; messages without a link get
// the invite sentinel so they bypass url uniqueness.
type MailboxSource struct {
	cfg config.Config
}

func NewMailboxSource(cfg config.Config) *MailboxSource {
	return &MailboxSource{cfg: cfg}
}

func (s *MailboxSource) Name() string { return "mailbox:" + s.cfg.PartnerIMAPUser }

func (s *MailboxSource) Fetch(ctx context.Context) ([]RawItem, error) {
	cli, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer cli.Logout()

	if _, err := cli.Select(s.cfg.PartnerIMAPBox, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.cfg.PartnerIMAPBox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := cli.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- cli.Fetch(seqset, []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}, messages)
	}()

	var out []RawItem
	for msg := range messages {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		item, ok := s.parseMessage(msg, section)
		if ok {
			out = append(out, item)
		}
	}
	if err := <-done; err != nil {
		return out, err
	}

	// Mark everything we pulled as seen so the next cycle skips it.
	flags := []interface{}{imap.SeenFlag}
	if err := cli.Store(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return out, err
	}
	return out, nil
}

func (s *MailboxSource) parseMessage(msg *imap.Message, section *imap.BodySectionName) (RawItem, bool) {
	subject := ""
	if msg.Envelope != nil {
		subject = strings.TrimSpace(msg.Envelope.Subject)
	}
	if subject == "" {
		return RawItem{}, false
	}
	body := msg.GetBody(section)
	if body == nil {
		return RawItem{}, false
	}
	text := extractPlainText(body)
	url := models.SentinelInvite
	if m := linkRx.FindString(text); m != "" {
		url = m
	}
	return RawItem{
		Title:       subject,
		Description: text,
		SourceURL:   url,
		Source:      models.SourcePartner,
	}, true
}

// extractPlainText walks the MIME tree and returns the first text part.
func extractPlainText(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil {
			return ""
		}
		if _, ok := p.Header.(*mail.InlineHeader); ok {
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(b))
		}
	}
}

func (s *MailboxSource) connect() (*imapclient.Client, error) {
	if s.cfg.PartnerIMAPHost == "" || s.cfg.PartnerIMAPPass == "" {
		return nil, fmt.Errorf("partner mailbox credentials not configured")
	}
	dialer := &net.Dialer{Timeout: mailDialTimeout}
	addr := net.JoinHostPort(s.cfg.PartnerIMAPHost, strconv.Itoa(s.cfg.PartnerIMAPPort))
	tlsConfig := &tls.Config{ServerName: s.cfg.PartnerIMAPHost, InsecureSkipVerify: s.cfg.PartnerIMAPSkipV}

	var cli *imapclient.Client
	var err error
	if s.cfg.PartnerIMAPTLS {
		cli, err = imapclient.DialWithDialerTLS(dialer, addr, tlsConfig)
	} else {
		cli, err = imapclient.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, err
	}
	if err := cli.Login(s.cfg.PartnerIMAPUser, s.cfg.PartnerIMAPPass); err != nil {
		_ = cli.Logout()
		return nil, err
	}
	return cli, nil
}
