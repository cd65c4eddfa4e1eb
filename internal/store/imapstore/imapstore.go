// Package imapstore implements mailbox.Store over an IMAP session.
package imapstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

// Config holds connection parameters for one session.
type Config struct {
	Server   string
	Port     int
	Login    string
	Password string
	// InsecureSkipVerify disables certificate checks. Test servers only.
	InsecureSkipVerify bool
	// Debug receives the raw protocol exchange when non-nil.
	Debug io.Writer
}

// Store is one authenticated IMAP session. Not safe for concurrent use: the
// protocol is a single command stream. Every method checks ctx before it
// issues a command; a command already on the wire runs to completion.
type Store struct {
	c      *client.Client
	logger *slog.Logger
}

// Dial connects over implicit TLS and logs in.
func Dial(cfg Config, logger *slog.Logger) (*Store, error) {
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         cfg.Server,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // test environment only, enforced by config validation
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled", "server", cfg.Server)
	}

	c, err := client.DialTLS(addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	if err := c.Login(cfg.Login, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login as %s: %w", cfg.Login, err)
	}
	// Tracing starts after LOGIN so the password never reaches the writer.
	if cfg.Debug != nil {
		c.SetDebug(cfg.Debug)
	}
	logger.Debug("imap session established", "server", addr, "login", cfg.Login)
	return &Store{c: c, logger: logger}, nil
}

func (s *Store) Select(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	status, err := s.c.Select(name, false)
	if err != nil {
		return err
	}
	s.logger.Debug("selected mailbox", "mailbox", name, "messages", status.Messages)
	return nil
}

func (s *Store) Search(ctx context.Context, q mailbox.Query) ([]types.UID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	return toUIDs(uids), nil
}

var dateSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier, Fields: []string{"Date"}},
	Peek:         true,
}

var textSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
	Peek:         true,
}

// FetchEnvelopes fetches ENVELOPE plus the raw Date header; the envelope
// date is pre-parsed by the client and drops malformed values.
func (s *Store) FetchEnvelopes(ctx context.Context, ids []types.UID) ([]mailbox.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, dateSection.FetchItem()}

	var envs []mailbox.Envelope
	err := s.fetch(ids, items, func(msg *imap.Message) {
		envs = append(envs, toEnvelope(msg))
	})
	if err != nil {
		return nil, err
	}
	return envs, nil
}

func (s *Store) SearchBodies(ctx context.Context, ids []types.UID, cond mailbox.TextCondition) ([]types.UID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 || len(cond.Terms) == 0 {
		return nil, nil
	}
	criteria := bodyCriteria(cond)
	criteria.Uid = toSeqSet(ids)

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	return toUIDs(uids), nil
}

func (s *Store) FetchBodies(ctx context.Context, ids []types.UID) (map[types.UID][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[types.UID][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items := []imap.FetchItem{imap.FetchUid, textSection.FetchItem()}

	var readErr error
	err := s.fetch(ids, items, func(msg *imap.Message) {
		lit := msg.GetBody(textSection)
		if lit == nil {
			return
		}
		body, err := io.ReadAll(lit)
		if err != nil && readErr == nil {
			readErr = fmt.Errorf("read body of uid %d: %w", msg.Uid, err)
			return
		}
		out[types.UID(msg.Uid)] = body
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

// Delete flags ids \Deleted and expunges them in one batch.
func (s *Store) Delete(ctx context.Context, ids []types.UID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.c.UidStore(toSeqSet(ids), op, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("flag deleted: %w", err)
	}
	if err := s.c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func (s *Store) EnsureMailbox(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.c.List("", name, ch)
	}()

	exists := false
	for range ch {
		exists = true
	}
	if err := <-done; err != nil {
		return fmt.Errorf("list %s: %w", name, err)
	}
	if exists {
		return nil
	}

	s.logger.Info("storage mailbox doesn't exist, creating", "mailbox", name)
	return s.c.Create(name)
}

func (s *Store) Move(ctx context.Context, ids []types.UID, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.c.UidMove(toSeqSet(ids), dest)
}

func (s *Store) Close() error {
	return s.c.Logout()
}

// fetch runs one UID FETCH and hands every message to fn in arrival order.
func (s *Store) fetch(ids []types.UID, items []imap.FetchItem, fn func(*imap.Message)) error {
	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(toSeqSet(ids), items, ch)
	}()
	for msg := range ch {
		fn(msg)
	}
	return <-done
}

// bodyCriteria builds BODY search keys. All terms are ANDed by listing them
// together; any-of needs a nested OR chain.
func bodyCriteria(cond mailbox.TextCondition) *imap.SearchCriteria {
	if cond.Mode == mailbox.MatchAll || len(cond.Terms) == 1 {
		c := imap.NewSearchCriteria()
		c.Body = append([]string(nil), cond.Terms...)
		return c
	}
	first := imap.NewSearchCriteria()
	first.Body = []string{cond.Terms[0]}
	rest := bodyCriteria(mailbox.TextCondition{Mode: mailbox.MatchAny, Terms: cond.Terms[1:]})

	c := imap.NewSearchCriteria()
	c.Or = [][2]*imap.SearchCriteria{{first, rest}}
	return c
}

func toEnvelope(msg *imap.Message) mailbox.Envelope {
	env := mailbox.Envelope{UID: types.UID(msg.Uid)}
	if msg.Envelope != nil {
		for _, a := range msg.Envelope.From {
			if a == nil {
				continue
			}
			env.From = append(env.From, mailbox.Address{
				Name:    nonEmpty(a.PersonalName),
				Mailbox: nonEmpty(a.MailboxName),
				Host:    nonEmpty(a.HostName),
			})
		}
		// The client library decodes NIL and "" to the same empty string.
		env.Subject = []byte(msg.Envelope.Subject)
	}
	if lit := msg.GetBody(dateSection); lit != nil {
		env.Date = rawDate(lit)
	}
	return env
}

// rawDate extracts the unparsed Date header value, or nil when absent.
func rawDate(r io.Reader) []byte {
	hdr, err := io.ReadAll(r)
	if err != nil || len(bytes.TrimSpace(hdr)) == 0 {
		return nil
	}
	if !bytes.HasSuffix(hdr, []byte("\r\n\r\n")) {
		hdr = append(hdr, "\r\n\r\n"...)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(hdr))
	if err != nil {
		return nil
	}
	values := msg.Header["Date"]
	if len(values) == 0 {
		return nil
	}
	return []byte(values[0])
}

func nonEmpty(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func toSeqSet(ids []types.UID) *imap.SeqSet {
	set := new(imap.SeqSet)
	for _, id := range ids {
		set.AddNum(uint32(id))
	}
	return set
}

func toUIDs(raw []uint32) []types.UID {
	out := make([]types.UID, len(raw))
	for i, u := range raw {
		out[i] = types.UID(u)
	}
	return out
}

var _ mailbox.Store = (*Store)(nil)
