package rules

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	nodeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	branchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#737373"))
	alertStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	deleteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	emptyStyle    = lipgloss.NewStyle().Faint(true)
	enumeratorSty = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
)

// Render draws a compiled rule file as text trees, one per move filter list
// and one per check rule-set.
func Render(cfg *Config) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render("move"))
	b.WriteString("\n")
	if len(cfg.Move) == 0 {
		b.WriteString(emptyStyle.Render("  (no filters)"))
		b.WriteString("\n")
	}
	for i, conds := range cfg.Move {
		t := tree.Root(fmt.Sprintf("filter %d", i)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(enumeratorSty)
		if len(conds) == 0 {
			t.Child(emptyStyle.Render("(empty, ignored)"))
		}
		for _, c := range conds {
			t.Child(nodeStyle.Render(c.String()))
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	for _, rs := range cfg.Check {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("check " + rs.Name))
		b.WriteString("\n")

		filters := tree.Root("filters").
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(enumeratorSty)
		if len(rs.Filters) == 0 {
			filters.Child(emptyStyle.Render("(all messages)"))
		}
		for _, c := range rs.Filters {
			filters.Child(nodeStyle.Render(c.String()))
		}

		t := tree.Root(rs.Name).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(enumeratorSty).
			Child(filters, renderNode("tree", rs.Tree))
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	return b.String()
}

// renderNode builds the subtree for n, labelled with the branch that leads
// to it.
func renderNode(branch string, n Node) any {
	label := branchStyle.Render(branch + ":")

	switch node := n.(type) {
	case nil, Empty:
		return label + " " + emptyStyle.Render("(empty)")

	case Action:
		return label + " " + actionStyle(node.Kind).Render(node.Kind.String())

	case *MatchNode:
		parts := make([]string, len(node.Conditions))
		for i, c := range node.Conditions {
			parts[i] = c.String()
		}
		head := fmt.Sprintf("match [%s]%s", strings.Join(parts, " && "), policySuffix(node.Empty, "matched", "unmatched"))
		return branchTree(label, head,
			renderNode("matched", node.Matched),
			renderNode("unmatched", node.Unmatched))

	case *DateNode:
		head := fmt.Sprintf("date older than %d days%s", node.Days, policySuffix(node.Empty, "older", "younger"))
		return branchTree(label, head,
			renderNode("older", node.Older),
			renderNode("younger", node.Younger))

	case *CountNode:
		head := fmt.Sprintf("count vs %d", node.Threshold)
		return branchTree(label, head,
			renderNode("greater", node.Greater),
			renderNode("less", node.Less),
			renderNode("equal", node.Equal))

	case *BodyTermsNode:
		quoted := make([]string, len(node.Terms))
		for i, t := range node.Terms {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		head := fmt.Sprintf("body_%s [%s]%s", node.Mode, strings.Join(quoted, ", "), policySuffix(node.Empty, "matched", "unmatched"))
		return branchTree(label, head,
			renderNode("matched", node.Matched),
			renderNode("unmatched", node.Unmatched))

	case *BodyRegexNode:
		head := fmt.Sprintf("body_regex %q%s", node.Pattern.String(), policySuffix(node.Empty, "matched", "unmatched"))
		return branchTree(label, head,
			renderNode("matched", node.Matched),
			renderNode("unmatched", node.Unmatched))

	default:
		return label + fmt.Sprintf(" %T", n)
	}
}

func branchTree(label, head string, children ...any) *tree.Tree {
	return tree.Root(label+" "+nodeStyle.Render(head)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumeratorSty).
		Child(children...)
}

func policySuffix(p EmptyPolicy, sideA, sideB string) string {
	switch p {
	case EmptyDescendA:
		return " (descend empty " + sideA + ")"
	case EmptyDescendB:
		return " (descend empty " + sideB + ")"
	default:
		return ""
	}
}

func actionStyle(k ActionKind) lipgloss.Style {
	switch k {
	case ActionAlert:
		return alertStyle
	case ActionDelete:
		return deleteStyle
	case ActionSuccess:
		return successStyle
	default:
		return emptyStyle
	}
}
