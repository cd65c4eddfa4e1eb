// Package mailboxtest provides an in-memory mailbox.Store for tests.
package mailboxtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

// Message is one stored fixture message.
type Message struct {
	Envelope mailbox.Envelope
	Received time.Time
	Body     []byte
	Deleted  bool
}

// Store is a mailbox.Store backed by maps. Calls are recorded so tests can
// assert how many round trips the evaluator made.
type Store struct {
	Mailboxes map[string]map[types.UID]*Message
	Current   string
	nextUID   types.UID

	SearchBodiesCalls []mailbox.TextCondition
	FetchBodiesCalls  [][]types.UID
	DeleteCalls       [][]types.UID
	MoveCalls         [][]types.UID

	// Fail makes the named operation return an error.
	Fail map[string]error
	// ShortFetch drops this many bodies from every FetchBodies answer.
	ShortFetch int
}

// New returns an empty store with the given mailboxes created.
func New(mailboxes ...string) *Store {
	s := &Store{Mailboxes: make(map[string]map[types.UID]*Message), Fail: make(map[string]error)}
	for _, name := range mailboxes {
		s.Mailboxes[name] = make(map[types.UID]*Message)
	}
	return s
}

// Add appends a message to mailbox and returns its UID.
func (s *Store) Add(mailboxName, from, subject string, date time.Time, body string) types.UID {
	s.nextUID++
	uid := s.nextUID
	local, host, _ := strings.Cut(from, "@")
	if s.Mailboxes[mailboxName] == nil {
		s.Mailboxes[mailboxName] = make(map[types.UID]*Message)
	}
	s.Mailboxes[mailboxName][uid] = &Message{
		Envelope: mailbox.Envelope{
			UID:     uid,
			From:    []mailbox.Address{{Mailbox: []byte(local), Host: []byte(host)}},
			Subject: []byte(subject),
			Date:    []byte(date.Format(time.RFC1123Z)),
		},
		Received: date,
		Body:     []byte(body),
	}
	return uid
}

// AddEnvelope stores a raw envelope, for malformed-message fixtures.
func (s *Store) AddEnvelope(mailboxName string, env mailbox.Envelope, received time.Time, body []byte) types.UID {
	s.nextUID++
	env.UID = s.nextUID
	if s.Mailboxes[mailboxName] == nil {
		s.Mailboxes[mailboxName] = make(map[types.UID]*Message)
	}
	s.Mailboxes[mailboxName][env.UID] = &Message{Envelope: env, Received: received, Body: body}
	return env.UID
}

// UIDs lists the UIDs in mailbox in ascending order.
func (s *Store) UIDs(mailboxName string) []types.UID {
	var uids []types.UID
	for uid := range s.Mailboxes[mailboxName] {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

func (s *Store) fail(op string) error {
	if err, ok := s.Fail[op]; ok {
		return err
	}
	return nil
}

func (s *Store) current() (map[types.UID]*Message, error) {
	mb, ok := s.Mailboxes[s.Current]
	if !ok {
		return nil, fmt.Errorf("no mailbox selected")
	}
	return mb, nil
}

func (s *Store) Select(_ context.Context, name string) error {
	if err := s.fail("select"); err != nil {
		return err
	}
	if _, ok := s.Mailboxes[name]; !ok {
		return fmt.Errorf("mailbox %q does not exist", name)
	}
	s.Current = name
	return nil
}

func (s *Store) Search(_ context.Context, q mailbox.Query) ([]types.UID, error) {
	if err := s.fail("search"); err != nil {
		return nil, err
	}
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	var uids []types.UID
	for _, uid := range s.UIDs(s.Current) {
		m := mb[uid]
		if m.Deleted {
			continue
		}
		if !q.Since.IsZero() && m.Received.Before(q.Since) {
			continue
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (s *Store) FetchEnvelopes(_ context.Context, ids []types.UID) ([]mailbox.Envelope, error) {
	if err := s.fail("fetch_envelopes"); err != nil {
		return nil, err
	}
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	var envs []mailbox.Envelope
	for _, uid := range ids {
		if m, ok := mb[uid]; ok {
			envs = append(envs, m.Envelope)
		}
	}
	return envs, nil
}

func (s *Store) SearchBodies(_ context.Context, ids []types.UID, cond mailbox.TextCondition) ([]types.UID, error) {
	s.SearchBodiesCalls = append(s.SearchBodiesCalls, cond)
	if err := s.fail("search_bodies"); err != nil {
		return nil, err
	}
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	var out []types.UID
	for _, uid := range ids {
		m, ok := mb[uid]
		if !ok {
			continue
		}
		if bodyMatches(string(m.Body), cond) {
			out = append(out, uid)
		}
	}
	return out, nil
}

func bodyMatches(body string, cond mailbox.TextCondition) bool {
	body = strings.ToLower(body)
	for _, term := range cond.Terms {
		found := strings.Contains(body, strings.ToLower(term))
		if cond.Mode == mailbox.MatchAny && found {
			return true
		}
		if cond.Mode == mailbox.MatchAll && !found {
			return false
		}
	}
	return cond.Mode == mailbox.MatchAll
}

func (s *Store) FetchBodies(_ context.Context, ids []types.UID) (map[types.UID][]byte, error) {
	s.FetchBodiesCalls = append(s.FetchBodiesCalls, append([]types.UID(nil), ids...))
	if err := s.fail("fetch_bodies"); err != nil {
		return nil, err
	}
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make(map[types.UID][]byte, len(ids))
	skip := s.ShortFetch
	for _, uid := range ids {
		m, ok := mb[uid]
		if !ok {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out[uid] = m.Body
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, ids []types.UID) error {
	s.DeleteCalls = append(s.DeleteCalls, append([]types.UID(nil), ids...))
	if err := s.fail("delete"); err != nil {
		return err
	}
	mb, err := s.current()
	if err != nil {
		return err
	}
	for _, uid := range ids {
		delete(mb, uid)
	}
	return nil
}

func (s *Store) EnsureMailbox(_ context.Context, name string) error {
	if err := s.fail("ensure_mailbox"); err != nil {
		return err
	}
	if _, ok := s.Mailboxes[name]; !ok {
		s.Mailboxes[name] = make(map[types.UID]*Message)
	}
	return nil
}

func (s *Store) Move(_ context.Context, ids []types.UID, dest string) error {
	s.MoveCalls = append(s.MoveCalls, append([]types.UID(nil), ids...))
	if err := s.fail("move"); err != nil {
		return err
	}
	mb, err := s.current()
	if err != nil {
		return err
	}
	target, ok := s.Mailboxes[dest]
	if !ok {
		return fmt.Errorf("mailbox %q does not exist", dest)
	}
	for _, uid := range ids {
		if m, ok := mb[uid]; ok {
			target[uid] = m
			delete(mb, uid)
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

var _ mailbox.Store = (*Store)(nil)
