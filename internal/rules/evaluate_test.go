// internal/rules/evaluate_test.go
package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/mailbox/mailboxtest"
	"github.com/solatis/amcheck/internal/types"
)

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// logCapture records JSON log lines for assertions.
type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&c.buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func (c *logCapture) records(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(c.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("json.Unmarshal(%q) error = %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

// find returns the records with msg.
func (c *logCapture) find(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, rec := range c.records(t) {
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

type harness struct {
	store *mailboxtest.Store
	logs  *logCapture
	exec  *Executor
	eval  *Evaluator
}

func newHarness(t *testing.T, dryRun bool) *harness {
	t.Helper()
	h := &harness{store: mailboxtest.New("INBOX"), logs: &logCapture{}}
	h.store.Current = "INBOX"
	logger := h.logs.logger()
	h.exec = NewExecutor(h.store, logger, WithDryRun(dryRun))
	h.eval = NewEvaluator(h.store, h.exec, logger, WithClock(func() time.Time { return testNow }))
	return h
}

func (h *harness) add(t *testing.T, from, subject string, date time.Time, body string) mailbox.Item {
	t.Helper()
	uid := h.store.Add("INBOX", from, subject, date, body)
	env := h.store.Mailboxes["INBOX"][uid].Envelope
	item, err := mailbox.NewItem(env)
	if err != nil {
		t.Fatalf("NewItem() error = %v, want nil", err)
	}
	return item
}

func subjectCond(pattern string) Condition {
	return Condition{Polarity: Positive, Field: FieldSubject, Regex: regexp.MustCompile(pattern)}
}

func TestEvaluate_MatchSplitsItems(t *testing.T) {
	h := newHarness(t, false)
	items := []mailbox.Item{
		h.add(t, "cron@example.org", "Cron daily", testNow, ""),
		h.add(t, "cron@example.org", "Cron weekly", testNow, ""),
		h.add(t, "alice@example.org", "Lunch?", testNow, ""),
	}
	tree := &MatchNode{
		Conditions: []Condition{subjectCond("^Cron ")},
		Matched:    Action{Kind: ActionSuccess},
		Unmatched:  Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "cron", tree, items); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	passed := h.logs.find(t, "check passed")
	if len(passed) != 1 || passed[0]["count"] != float64(2) {
		t.Fatalf("check passed records = %v, want one with count 2", passed)
	}
	failed := h.logs.find(t, "CHECK FAILED")
	if len(failed) != 1 || failed[0]["count"] != float64(1) {
		t.Fatalf("CHECK FAILED records = %v, want one with count 1", failed)
	}
	details := h.logs.find(t, "alerted message")
	if len(details) != 1 || details[0]["subject"] != "Lunch?" {
		t.Errorf("alerted message records = %v, want the Lunch? item", details)
	}

	sum := h.exec.Summary()
	if sum.Total.Successes != 1 || sum.Total.Alerts != 1 || sum.Total.AlertedItems != 1 {
		t.Errorf("Summary().Total = %+v, want 1 success, 1 alert with 1 item", sum.Total)
	}
}

func TestEvaluate_CountOnEmptySet(t *testing.T) {
	h := newHarness(t, false)
	tree := &CountNode{
		Threshold: 1,
		Greater:   Action{Kind: ActionSuccess},
		Less:      Action{Kind: ActionAlert},
		Equal:     Action{Kind: ActionNothing},
	}

	if err := h.eval.Evaluate(context.Background(), "heartbeat", tree, nil); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	failed := h.logs.find(t, "CHECK FAILED")
	if len(failed) != 1 || failed[0]["count"] != float64(0) {
		t.Fatalf("CHECK FAILED records = %v, want one with count 0", failed)
	}
	if got := h.exec.Summary().ByRuleSet["heartbeat"].Alerts; got != 1 {
		t.Errorf("Alerts = %d, want 1", got)
	}
}

func TestEvaluate_CountNeverSplits(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string
	}{
		{"less", 1, "less"},
		{"equal", 2, "equal"},
		{"greater", 5, "greater"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			var items []mailbox.Item
			for i := 0; i < tt.count; i++ {
				items = append(items, h.add(t, "a@example.org", "s", testNow, ""))
			}
			tree := &CountNode{
				Threshold: 2,
				Greater:   &MatchNode{Matched: Action{Kind: ActionSuccess}},
				Less:      &MatchNode{Matched: Action{Kind: ActionAlert}},
				Equal:     &MatchNode{Matched: Action{Kind: ActionNothing}},
			}
			if err := h.eval.Evaluate(context.Background(), "c", tree, items); err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			actions := h.logs.find(t, "action")
			if len(actions) != 1 {
				t.Fatalf("action records = %d, want 1", len(actions))
			}
			if !strings.Contains(actions[0]["path"].(string), ".count."+tt.want+".") {
				t.Errorf("path = %v, want branch %s", actions[0]["path"], tt.want)
			}
			if actions[0]["count"] != float64(tt.count) {
				t.Errorf("count = %v, want %d", actions[0]["count"], tt.count)
			}
		})
	}
}

func TestEvaluate_DateRoutesOlderToDelete(t *testing.T) {
	h := newHarness(t, false)
	old := h.add(t, "a@example.org", "old", testNow.Add(-72*time.Hour), "")
	young := h.add(t, "a@example.org", "young", testNow.Add(-24*time.Hour), "")
	tree := &DateNode{
		Days:    2,
		Older:   Action{Kind: ActionDelete},
		Younger: Action{Kind: ActionNothing},
	}

	if err := h.eval.Evaluate(context.Background(), "cleanup", tree, []mailbox.Item{old, young}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if len(h.store.DeleteCalls) != 1 {
		t.Fatalf("DeleteCalls = %d, want 1", len(h.store.DeleteCalls))
	}
	if got := h.store.DeleteCalls[0]; len(got) != 1 || got[0] != old.UID {
		t.Errorf("deleted = %v, want [%v]", got, old.UID)
	}
	if _, ok := h.store.Mailboxes["INBOX"][young.UID]; !ok {
		t.Errorf("young message was deleted")
	}
	if got := h.exec.Summary().Total.Deleted; got != 1 {
		t.Errorf("Deleted = %d, want 1", got)
	}
}

func TestEvaluate_DateBoundaryIsYounger(t *testing.T) {
	h := newHarness(t, false)
	exact := h.add(t, "a@example.org", "exact", testNow.Add(-48*time.Hour), "")
	tree := &DateNode{
		Days:    2,
		Older:   Action{Kind: ActionAlert},
		Younger: Action{Kind: ActionSuccess},
	}

	if err := h.eval.Evaluate(context.Background(), "d", tree, []mailbox.Item{exact}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if sum := h.exec.Summary().Total; sum.Successes != 1 || sum.Alerts != 0 {
		t.Errorf("Summary().Total = %+v, want the item routed to younger", sum)
	}
}

func TestEvaluate_DateOverflow(t *testing.T) {
	h := newHarness(t, false)
	item := h.add(t, "a@example.org", "s", testNow, "")
	tree := &DateNode{Days: types.MaxThresholdDays + 1, Older: Action{Kind: ActionDelete}}

	err := h.eval.Evaluate(context.Background(), "d", tree, []mailbox.Item{item})
	if !errors.Is(err, types.ErrDateSubtraction) {
		t.Fatalf("Evaluate() error = %v, want ErrDateSubtraction", err)
	}
	if len(h.store.DeleteCalls) != 0 {
		t.Errorf("DeleteCalls = %d, want 0", len(h.store.DeleteCalls))
	}
}

func TestEvaluate_BodyAnyUsesOneQuery(t *testing.T) {
	h := newHarness(t, false)
	hit := h.add(t, "a@example.org", "one", testNow, "the foo happened")
	miss1 := h.add(t, "a@example.org", "two", testNow, "quiet night")
	miss2 := h.add(t, "a@example.org", "three", testNow, "nothing to see")
	tree := &BodyTermsNode{
		Mode:      mailbox.MatchAny,
		Terms:     []string{"foo", "bar"},
		Matched:   Action{Kind: ActionSuccess},
		Unmatched: Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "body", tree, []mailbox.Item{hit, miss1, miss2}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if len(h.store.SearchBodiesCalls) != 1 {
		t.Fatalf("SearchBodiesCalls = %d, want 1", len(h.store.SearchBodiesCalls))
	}
	if len(h.store.FetchBodiesCalls) != 0 {
		t.Errorf("FetchBodiesCalls = %d, want 0", len(h.store.FetchBodiesCalls))
	}
	passed := h.logs.find(t, "check passed")
	if len(passed) != 1 || passed[0]["count"] != float64(1) {
		t.Errorf("check passed records = %v, want count 1", passed)
	}
	failed := h.logs.find(t, "CHECK FAILED")
	if len(failed) != 1 || failed[0]["count"] != float64(2) {
		t.Errorf("CHECK FAILED records = %v, want count 2", failed)
	}
}

func TestEvaluate_BodyAllRequiresEveryTerm(t *testing.T) {
	h := newHarness(t, false)
	both := h.add(t, "a@example.org", "one", testNow, "backup finished: OK")
	partial := h.add(t, "a@example.org", "two", testNow, "backup failed")
	tree := &BodyTermsNode{
		Mode:      mailbox.MatchAll,
		Terms:     []string{"backup", "ok"},
		Matched:   Action{Kind: ActionSuccess},
		Unmatched: Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "body", tree, []mailbox.Item{both, partial}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	details := h.logs.find(t, "alerted message")
	if len(details) != 1 || details[0]["uid"] != float64(partial.UID) {
		t.Errorf("alerted = %v, want uid %v", details, partial.UID)
	}
}

func TestEvaluate_BodyTermsEmptyListSkipsSubtree(t *testing.T) {
	h := newHarness(t, false)
	item := h.add(t, "a@example.org", "s", testNow, "body")
	tree := &BodyTermsNode{
		Mode:      mailbox.MatchAny,
		Matched:   Action{Kind: ActionAlert},
		Unmatched: Action{Kind: ActionAlert},
		Empty:     EmptyDescendA,
	}

	if err := h.eval.Evaluate(context.Background(), "body", tree, []mailbox.Item{item}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.SearchBodiesCalls) != 0 {
		t.Errorf("SearchBodiesCalls = %d, want 0", len(h.store.SearchBodiesCalls))
	}
	if got := h.exec.Summary().Total.Alerts; got != 0 {
		t.Errorf("Alerts = %d, want 0", got)
	}
	if warn := h.logs.find(t, "body node has no terms, skipping subtree"); len(warn) != 1 {
		t.Errorf("warning records = %d, want 1", len(warn))
	}
}

func TestEvaluate_BodyTermsSkipsQueryForEmptySet(t *testing.T) {
	h := newHarness(t, false)
	tree := &BodyTermsNode{
		Mode:      mailbox.MatchAny,
		Terms:     []string{"foo"},
		Empty:     EmptyDescendB,
		Unmatched: Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "body", tree, nil); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.SearchBodiesCalls) != 0 {
		t.Errorf("SearchBodiesCalls = %d, want 0", len(h.store.SearchBodiesCalls))
	}
	if got := h.exec.Summary().Total.Alerts; got != 1 {
		t.Errorf("Alerts = %d, want 1 from the forced empty side", got)
	}
}

func TestEvaluate_BodyRegex(t *testing.T) {
	h := newHarness(t, false)
	ok := h.add(t, "a@example.org", "one", testNow, "exit status 0\n")
	bad := h.add(t, "a@example.org", "two", testNow, "exit status 3\n")
	tree := &BodyRegexNode{
		Pattern:   regexp.MustCompile(`exit status 0\b`),
		Matched:   Action{Kind: ActionSuccess},
		Unmatched: Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "regex", tree, []mailbox.Item{ok, bad}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.FetchBodiesCalls) != 1 {
		t.Fatalf("FetchBodiesCalls = %d, want 1", len(h.store.FetchBodiesCalls))
	}
	if got := len(h.store.FetchBodiesCalls[0]); got != 2 {
		t.Errorf("fetched %d bodies, want 2", got)
	}
	details := h.logs.find(t, "alerted message")
	if len(details) != 1 || details[0]["uid"] != float64(bad.UID) {
		t.Errorf("alerted = %v, want uid %v", details, bad.UID)
	}
}

func TestEvaluate_BodyRegexErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		short   int
		wantErr error
	}{
		{"short fetch", "fine", 1, types.ErrBodyCountMismatch},
		{"invalid utf-8", "\xff\xfe", 0, types.ErrBodyNotText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			h.store.ShortFetch = tt.short
			item := h.add(t, "a@example.org", "Nightly report", testNow, tt.body)
			tree := &BodyRegexNode{
				Pattern: regexp.MustCompile("."),
				Matched: Action{Kind: ActionDelete},
			}

			err := h.eval.Evaluate(context.Background(), "regex", tree, []mailbox.Item{item})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == types.ErrBodyNotText && !strings.Contains(err.Error(), "Nightly report") {
				t.Errorf("error %q does not name the message subject", err)
			}
			if len(h.store.DeleteCalls) != 0 {
				t.Errorf("DeleteCalls = %d, want 0", len(h.store.DeleteCalls))
			}
		})
	}
}

func TestEvaluate_EmptyPolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     EmptyPolicy
		wantAlerts int
	}{
		{"skip", EmptySkip, 0},
		{"descend matched", EmptyDescendA, 1},
		{"descend unmatched", EmptyDescendB, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			item := h.add(t, "a@example.org", "Lunch?", testNow, "")
			// Nothing matches, so the matched side is empty.
			tree := &MatchNode{
				Conditions: []Condition{subjectCond("^Cron ")},
				Empty:      tt.policy,
				Matched:    Action{Kind: ActionAlert},
				Unmatched:  Action{Kind: ActionNothing},
			}
			if err := h.eval.Evaluate(context.Background(), "p", tree, []mailbox.Item{item}); err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if got := h.exec.Summary().Total.Alerts; got != tt.wantAlerts {
				t.Errorf("Alerts = %d, want %d", got, tt.wantAlerts)
			}
			if got := h.exec.Summary().Total.AlertedItems; got != 0 {
				t.Errorf("AlertedItems = %d, want 0", got)
			}
			recs := h.logs.find(t, "CHECK FAILED")
			if len(recs) != tt.wantAlerts {
				t.Fatalf("CHECK FAILED records = %d, want %d", len(recs), tt.wantAlerts)
			}
			for _, rec := range recs {
				if rec["count"] != float64(0) {
					t.Errorf("CHECK FAILED count = %v, want 0", rec["count"])
				}
			}
		})
	}
}

func TestEvaluate_ActionRunsWithZeroItems(t *testing.T) {
	h := newHarness(t, false)
	if err := h.eval.Evaluate(context.Background(), "z", Action{Kind: ActionAlert}, nil); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got := h.exec.Summary().Total.Alerts; got != 1 {
		t.Errorf("Alerts = %d, want 1", got)
	}
}

func TestEvaluate_NilAndEmptyAreNoOps(t *testing.T) {
	h := newHarness(t, false)
	item := h.add(t, "a@example.org", "s", testNow, "")
	for _, tree := range []Node{nil, Empty{}} {
		if err := h.eval.Evaluate(context.Background(), "n", tree, []mailbox.Item{item}); err != nil {
			t.Fatalf("Evaluate(%T) error = %v, want nil", tree, err)
		}
	}
	if len(h.exec.Summary().Order) != 0 {
		t.Errorf("Summary().Order = %v, want none", h.exec.Summary().Order)
	}
}

func TestEvaluate_DryRunNeverMutates(t *testing.T) {
	h := newHarness(t, true)
	item := h.add(t, "a@example.org", "s", testNow.Add(-30*24*time.Hour), "")
	tree := &DateNode{Days: 7, Older: Action{Kind: ActionDelete}}

	if err := h.eval.Evaluate(context.Background(), "dry", tree, []mailbox.Item{item}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.DeleteCalls) != 0 {
		t.Errorf("DeleteCalls = %d, want 0", len(h.store.DeleteCalls))
	}
	if _, ok := h.store.Mailboxes["INBOX"][item.UID]; !ok {
		t.Errorf("message removed during dry run")
	}
	sum := h.exec.Summary().Total
	if sum.WouldDelete != 1 || sum.Deleted != 0 {
		t.Errorf("Summary().Total = %+v, want WouldDelete 1", sum)
	}
	if recs := h.logs.find(t, "would delete"); len(recs) != 1 || recs[0]["uids"] != item.UID.String() {
		t.Errorf("would delete records = %v", recs)
	}
}

func TestEvaluate_DryRunIsIdempotent(t *testing.T) {
	h := newHarness(t, true)
	items := []mailbox.Item{
		h.add(t, "cron@example.org", "Cron daily", testNow.Add(-10*24*time.Hour), "ok"),
		h.add(t, "alice@example.org", "Lunch?", testNow, "hi"),
	}
	tree := &MatchNode{
		Conditions: []Condition{subjectCond("^Cron ")},
		Matched:    &DateNode{Days: 7, Older: Action{Kind: ActionDelete}, Younger: Action{Kind: ActionSuccess}},
		Unmatched:  Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "idem", tree, items); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	first := h.logs.buf.String()
	h.logs.buf.Reset()
	if err := h.eval.Evaluate(context.Background(), "idem", tree, items); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if second := h.logs.buf.String(); first != second {
		t.Errorf("second dry run logged differently:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestEvaluate_DeleteEmptySetNeverReachesStore(t *testing.T) {
	h := newHarness(t, false)
	if err := h.eval.Evaluate(context.Background(), "d", Action{Kind: ActionDelete}, nil); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.DeleteCalls) != 0 {
		t.Errorf("DeleteCalls = %d, want 0", len(h.store.DeleteCalls))
	}
}

func TestEvaluate_DeleteErrorPropagates(t *testing.T) {
	h := newHarness(t, false)
	boom := errors.New("connection reset")
	h.store.Fail["delete"] = boom
	item := h.add(t, "a@example.org", "s", testNow, "")

	err := h.eval.Evaluate(context.Background(), "d", Action{Kind: ActionDelete}, []mailbox.Item{item})
	if !errors.Is(err, boom) {
		t.Fatalf("Evaluate() error = %v, want %v", err, boom)
	}
}

func TestEvaluate_MatchBodyConditionFetchesPerItem(t *testing.T) {
	h := newHarness(t, false)
	a := h.add(t, "a@example.org", "one", testNow, "disk full")
	b := h.add(t, "a@example.org", "two", testNow, "all good")
	tree := &MatchNode{
		Conditions: []Condition{{Polarity: Negated, Field: FieldBody, Regex: regexp.MustCompile("full")}},
		Matched:    Action{Kind: ActionSuccess},
		Unmatched:  Action{Kind: ActionAlert},
	}

	if err := h.eval.Evaluate(context.Background(), "m", tree, []mailbox.Item{a, b}); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if len(h.store.FetchBodiesCalls) != 2 {
		t.Errorf("FetchBodiesCalls = %d, want 2", len(h.store.FetchBodiesCalls))
	}
	details := h.logs.find(t, "alerted message")
	if len(details) != 1 || details[0]["uid"] != float64(a.UID) {
		t.Errorf("alerted = %v, want uid %v", details, a.UID)
	}
}

func TestEvaluate_AlertDetailsCapped(t *testing.T) {
	h := newHarness(t, false)
	var items []mailbox.Item
	for i := 0; i < 12; i++ {
		items = append(items, h.add(t, "a@example.org", "s", testNow, ""))
	}

	if err := h.eval.Evaluate(context.Background(), "cap", Action{Kind: ActionAlert}, items); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got := len(h.logs.find(t, "alerted message")); got != types.DefaultMaxAlertDetails {
		t.Errorf("detail records = %d, want %d", got, types.DefaultMaxAlertDetails)
	}
	omitted := h.logs.find(t, "further alerted messages not shown")
	if len(omitted) != 1 || omitted[0]["omitted"] != float64(3) {
		t.Errorf("omitted records = %v, want omitted 3", omitted)
	}
}

func TestEvaluate_ContextCancelled(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.eval.Evaluate(ctx, "c", Action{Kind: ActionAlert}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestExecutor_RemainingDropsDeletedMail(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		h := newHarness(t, dryRun)
		old := h.add(t, "a@example.org", "s", testNow.Add(-30*24*time.Hour), "")
		fresh := h.add(t, "b@example.org", "s", testNow, "")
		items := []mailbox.Item{old, fresh}

		if got := h.exec.Remaining(items); len(got) != 2 {
			t.Fatalf("dryRun=%v: Remaining() before delete = %d items, want 2", dryRun, len(got))
		}
		if err := h.exec.Execute(context.Background(), "cleanup", ActionDelete, []mailbox.Item{old}); err != nil {
			t.Fatalf("dryRun=%v: Execute() error = %v, want nil", dryRun, err)
		}
		got := h.exec.Remaining(items)
		if len(got) != 1 || got[0].UID != fresh.UID {
			t.Errorf("dryRun=%v: Remaining() = %v, want only uid %v", dryRun, got, fresh.UID)
		}
	}
}
