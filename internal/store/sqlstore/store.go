package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

// ErrNoMailbox indicates a mailbox name that does not exist in the archive.
var ErrNoMailbox = errors.New("mailbox does not exist")

// Store is a mailbox.Store over archived messages. Body search is a
// byte-exact, case-sensitive substring match on both dialects.
type Store struct {
	db      *sqlx.DB
	q       *Queries
	logger  *slog.Logger
	current int64
	name    string
}

// New wraps an open, migrated database.
func New(db *sqlx.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, q: q, logger: logger}, nil
}

// Message is an archived message to append.
type Message struct {
	FromName    string
	FromMailbox string
	FromHost    string
	// Subject and Date are stored as given; nil records an absent header.
	Subject  []byte
	Date     []byte
	Received time.Time
	Body     []byte
}

// Append stores m in the named mailbox and returns its UID.
func (s *Store) Append(ctx context.Context, mailboxName string, m Message) (types.UID, error) {
	id, err := s.mailboxID(ctx, mailboxName)
	if err != nil {
		return 0, err
	}
	body := m.Body
	if body == nil {
		body = []byte{}
	}
	var uid types.UID
	err = s.q.Get(ctx, "insert-message", &uid,
		id, nullString(m.FromName), nullString(m.FromMailbox), nullString(m.FromHost),
		nullBytes(m.Subject), nullBytes(m.Date), s.timeArg(m.Received), body)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return uid, nil
}

func (s *Store) Select(ctx context.Context, name string) error {
	id, err := s.mailboxID(ctx, name)
	if err != nil {
		return err
	}
	s.current, s.name = id, name
	s.logger.Debug("selected mailbox", "mailbox", name)
	return nil
}

func (s *Store) Search(ctx context.Context, q mailbox.Query) ([]types.UID, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	var uids []types.UID
	var err error
	if q.Since.IsZero() {
		err = s.q.Select(ctx, "search-all", &uids, s.current)
	} else {
		err = s.q.Select(ctx, "search-since", &uids, s.current, s.timeArg(q.Since))
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.name, err)
	}
	return uids, nil
}

type envelopeRow struct {
	UID         types.UID `db:"uid"`
	FromName    []byte    `db:"from_name"`
	FromMailbox []byte    `db:"from_mailbox"`
	FromHost    []byte    `db:"from_host"`
	Subject     []byte    `db:"subject"`
	DateHeader  []byte    `db:"date_header"`
}

func (s *Store) FetchEnvelopes(ctx context.Context, ids []types.UID) ([]mailbox.Envelope, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []envelopeRow
	if err := s.q.Select(ctx, "fetch-envelopes", &rows, s.current, ids); err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}
	envs := make([]mailbox.Envelope, 0, len(rows))
	for _, r := range rows {
		env := mailbox.Envelope{UID: r.UID, Subject: r.Subject, Date: r.DateHeader}
		if r.FromName != nil || r.FromMailbox != nil || r.FromHost != nil {
			env.From = []mailbox.Address{{Name: r.FromName, Mailbox: r.FromMailbox, Host: r.FromHost}}
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (s *Store) SearchBodies(ctx context.Context, ids []types.UID, cond mailbox.TextCondition) ([]types.UID, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	if len(ids) == 0 || len(cond.Terms) == 0 {
		return nil, nil
	}

	base, err := s.q.raw("search-bodies")
	if err != nil {
		return nil, err
	}
	fragment, err := s.q.raw("body-contains-" + s.dialect())
	if err != nil {
		return nil, err
	}

	joiner := " OR "
	if cond.Mode == mailbox.MatchAll {
		joiner = " AND "
	}
	clauses := make([]string, len(cond.Terms))
	args := []interface{}{s.current, ids}
	for i, term := range cond.Terms {
		clauses[i] = fragment
		args = append(args, term)
	}
	query := base + " AND (" + strings.Join(clauses, joiner) + ") ORDER BY uid"

	var uids []types.UID
	if err := s.q.SelectWith(ctx, &uids, query, args...); err != nil {
		return nil, fmt.Errorf("search bodies: %w", err)
	}
	return uids, nil
}

type bodyRow struct {
	UID  types.UID `db:"uid"`
	Body []byte    `db:"body"`
}

func (s *Store) FetchBodies(ctx context.Context, ids []types.UID) (map[types.UID][]byte, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	out := make(map[types.UID][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []bodyRow
	if err := s.q.Select(ctx, "fetch-bodies", &rows, s.current, ids); err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}
	for _, r := range rows {
		out[r.UID] = r.Body
	}
	return out, nil
}

// Delete flags ids and expunges every flagged message of the mailbox in one
// transaction.
func (s *Store) Delete(ctx context.Context, ids []types.UID) error {
	if err := s.requireSelected(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.q.ExecTx(ctx, tx, "mark-deleted", s.current, ids); err != nil {
			return fmt.Errorf("flag deleted: %w", err)
		}
		res, err := s.q.ExecTx(ctx, tx, "expunge", s.current)
		if err != nil {
			return fmt.Errorf("expunge: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			s.logger.Debug("expunged", "mailbox", s.name, "count", n)
		}
		return nil
	})
}

func (s *Store) EnsureMailbox(ctx context.Context, name string) error {
	_, err := s.mailboxID(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoMailbox) {
		return err
	}
	s.logger.Info("storage mailbox doesn't exist, creating", "mailbox", name)
	if _, err := s.q.Exec(ctx, "create-mailbox", name); err != nil {
		return fmt.Errorf("create mailbox %s: %w", name, err)
	}
	return nil
}

func (s *Store) Move(ctx context.Context, ids []types.UID, dest string) error {
	if err := s.requireSelected(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	destID, err := s.mailboxID(ctx, dest)
	if err != nil {
		return err
	}
	if _, err := s.q.Exec(ctx, "move-messages", destID, s.current, ids); err != nil {
		return fmt.Errorf("move to %s: %w", dest, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) mailboxID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.q.Get(ctx, "find-mailbox", &id, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNoMailbox, name)
	}
	if err != nil {
		return 0, fmt.Errorf("find mailbox %s: %w", name, err)
	}
	return id, nil
}

func (s *Store) requireSelected() error {
	if s.name == "" {
		return errors.New("no mailbox selected")
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) dialect() string {
	if s.db.DriverName() == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// timeArg binds a timestamp. SQLite stores fixed-width UTC text so string
// comparison orders correctly.
func (s *Store) timeArg(t time.Time) interface{} {
	if s.dialect() == "sqlite" {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t
}

// nullBytes binds nil as NULL; some drivers bind a nil slice as an empty blob.
func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var _ mailbox.Store = (*Store)(nil)
