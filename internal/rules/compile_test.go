// internal/rules/compile_test.go
package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

const sampleRules = `
move:
  - - match: {from: "^.*cron@example\\.org"}
  - []
check:
  - name: backups
    filters:
      - match: {subject: "^Backup"}
      - unmatch: {subject: "test"}
    tree:
      date:
        days: 2
        older:
          action: delete
        younger:
          count:
            threshold: 1
            less: {action: alert}
            equal:
              body_any:
                terms: [error, failed]
                descend_empty: unmatched
                matched: {action: alert}
                unmatched: {action: success}
  - name: heartbeat
    tree:
      body_regex:
        pattern: "status: (ok|green)"
        descend_empty: matched
        matched: {action: success}
`

func TestParse_SampleRules(t *testing.T) {
	cfg, err := Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	if len(cfg.Move) != 2 {
		t.Fatalf("len(Move) = %d, want 2", len(cfg.Move))
	}
	if len(cfg.Move[0]) != 1 || cfg.Move[0][0].Field != FieldFrom {
		t.Errorf("Move[0] = %v, want one from condition", cfg.Move[0])
	}
	if len(cfg.Move[1]) != 0 {
		t.Errorf("Move[1] = %v, want empty list kept", cfg.Move[1])
	}

	if len(cfg.Check) != 2 {
		t.Fatalf("len(Check) = %d, want 2", len(cfg.Check))
	}
	backups := cfg.Check[0]
	if backups.Name != "backups" {
		t.Errorf("Name = %q, want backups", backups.Name)
	}
	if len(backups.Filters) != 2 || backups.Filters[1].Polarity != Negated {
		t.Errorf("Filters = %v, want match then unmatch", backups.Filters)
	}

	date, ok := backups.Tree.(*DateNode)
	if !ok {
		t.Fatalf("Tree = %T, want *DateNode", backups.Tree)
	}
	if date.Days != 2 {
		t.Errorf("Days = %d, want 2", date.Days)
	}
	if a, ok := date.Older.(Action); !ok || a.Kind != ActionDelete {
		t.Errorf("Older = %#v, want delete action", date.Older)
	}
	count, ok := date.Younger.(*CountNode)
	if !ok {
		t.Fatalf("Younger = %T, want *CountNode", date.Younger)
	}
	if _, ok := count.Greater.(Empty); !ok {
		t.Errorf("Greater = %T, want Empty for an omitted child", count.Greater)
	}
	body, ok := count.Equal.(*BodyTermsNode)
	if !ok {
		t.Fatalf("Equal = %T, want *BodyTermsNode", count.Equal)
	}
	if body.Mode != mailbox.MatchAny || body.Empty != EmptyDescendB {
		t.Errorf("body node = %+v, want any with descend unmatched", body)
	}

	heartbeat := cfg.Check[1]
	if len(heartbeat.Filters) != 0 {
		t.Errorf("heartbeat Filters = %v, want none", heartbeat.Filters)
	}
	re, ok := heartbeat.Tree.(*BodyRegexNode)
	if !ok {
		t.Fatalf("heartbeat Tree = %T, want *BodyRegexNode", heartbeat.Tree)
	}
	if re.Empty != EmptyDescendA {
		t.Errorf("Empty = %v, want descend-a", re.Empty)
	}
	if !re.Pattern.MatchString("status: green") {
		t.Errorf("Pattern %q does not match sample", re.Pattern)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if len(cfg.Move) != 0 || len(cfg.Check) != 0 {
		t.Errorf("Parse(nil) = %+v, want empty config", cfg)
	}
}

func TestParse_NoTreeIsEmpty(t *testing.T) {
	cfg, err := Parse([]byte("check:\n  - name: idle\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if _, ok := cfg.Check[0].Tree.(Empty); !ok {
		t.Errorf("Tree = %T, want Empty", cfg.Check[0].Tree)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "two kinds on one node",
			yaml:    "check:\n  - name: x\n    tree: {action: alert, count: {threshold: 1}}\n",
			wantErr: types.ErrNodeKind,
		},
		{
			name:    "unknown action",
			yaml:    "check:\n  - name: x\n    tree: {action: explode}\n",
			wantErr: types.ErrUnknownAction,
		},
		{
			name:    "negative days",
			yaml:    "check:\n  - name: x\n    tree: {date: {days: -1}}\n",
			wantErr: types.ErrNegativeThreshold,
		},
		{
			name:    "negative count",
			yaml:    "check:\n  - name: x\n    tree: {count: {threshold: -3}}\n",
			wantErr: types.ErrNegativeThreshold,
		},
		{
			name:    "empty body terms",
			yaml:    "check:\n  - name: x\n    tree: {body_all: {terms: []}}\n",
			wantErr: types.ErrEmptyBodyTerms,
		},
		{
			name:    "descend side from another node kind",
			yaml:    "check:\n  - name: x\n    tree: {date: {days: 1, descend_empty: matched}}\n",
			wantErr: types.ErrUnknownEmptyPolicy,
		},
		{
			name:    "condition with two fields",
			yaml:    "move:\n  - - match: {from: a, subject: b}\n",
			wantErr: types.ErrConditionField,
		},
		{
			name:    "condition with both polarities",
			yaml:    "move:\n  - - {match: {from: a}, unmatch: {from: b}}\n",
			wantErr: types.ErrConditionPolarity,
		},
		{
			name:    "duplicate rule-set",
			yaml:    "check:\n  - name: x\n  - name: x\n",
			wantErr: types.ErrDuplicateRuleSet,
		},
		{
			name:    "unnamed rule-set",
			yaml:    "check:\n  - tree: {action: alert}\n",
			wantErr: types.ErrUnnamedRuleSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("check:\n  - name: x\n    tree: {match: {conditions: [], matchd: {action: alert}}}\n"))
	if err == nil {
		t.Fatal("Parse() error = nil, want unknown field error")
	}
	if !strings.Contains(err.Error(), "matchd") {
		t.Errorf("error %q does not name the unknown key", err)
	}
}

func TestParse_InvalidRegex(t *testing.T) {
	_, err := Parse([]byte("move:\n  - - match: {subject: \"(\"}\n"))
	if err == nil {
		t.Fatal("Parse() error = nil, want regex error")
	}
}

func TestCompile_TooManyBodyTerms(t *testing.T) {
	terms := make([]string, types.MaxBodyTerms+1)
	for i := range terms {
		terms[i] = "t"
	}
	file := &types.RuleFile{Check: []types.RuleSetDef{{
		Name: "big",
		Tree: &types.NodeDef{BodyAny: &types.BodyTermsDef{Terms: terms}},
	}}}

	_, err := Compile(file)
	if !errors.Is(err, types.ErrTooManyBodyTerms) {
		t.Fatalf("Compile() error = %v, want ErrTooManyBodyTerms", err)
	}
}

func TestCompile_DepthLimit(t *testing.T) {
	build := func(depth int) *types.NodeDef {
		root := &types.NodeDef{Action: "alert"}
		for i := 1; i < depth; i++ {
			root = &types.NodeDef{Count: &types.CountDef{Threshold: 1, Less: root}}
		}
		return root
	}

	if _, err := Compile(&types.RuleFile{Check: []types.RuleSetDef{{Name: "ok", Tree: build(types.MaxTreeDepth)}}}); err != nil {
		t.Fatalf("Compile() at max depth error = %v, want nil", err)
	}
	_, err := Compile(&types.RuleFile{Check: []types.RuleSetDef{{Name: "deep", Tree: build(types.MaxTreeDepth + 1)}}})
	if !errors.Is(err, types.ErrTreeTooDeep) {
		t.Fatalf("Compile() error = %v, want ErrTreeTooDeep", err)
	}
}

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		in   string
		want ActionKind
	}{
		{"nothing", ActionNothing},
		{"Success", ActionSuccess},
		{" alert ", ActionAlert},
		{"DELETE", ActionDelete},
	}
	for _, tt := range tests {
		got, err := ParseActionKind(tt.in)
		if err != nil {
			t.Fatalf("ParseActionKind(%q) error = %v, want nil", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseActionKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRules), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}
	if len(cfg.Check) != 2 {
		t.Errorf("len(Check) = %d, want 2", len(cfg.Check))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(missing) error = %v, want os.ErrNotExist", err)
	}
}
