// internal/rules/cost.go
package rules

/*
 * Cost model for decision tree evaluation.
 *
 * Counts the store round trips one evaluation of a tree can make, so the
 * rules command can flag trees that will be slow against a remote server.
 *
 * Cost formula: per_node_cost summed over every node, with per-item body
 * conditions scaled by the working set size.
 *
 *   - body_any / body_all: one SEARCH, no body transfer
 *   - body_regex:          one bulk FETCH of every body in the set
 *   - match with a body condition: one FETCH per item
 *   - delete action:       one STORE + EXPUNGE
 *
 * The estimate is an upper bound: sides that come out empty are usually
 * skipped, and match conditions short-circuit before reaching the body.
 */

const (
	CostBodyQuery     = 8
	CostBulkFetch     = 64
	CostPerItemFetch  = 16
	CostDeleteCommand = 4
)

// Cost summarises the store round trips of one tree.
type Cost struct {
	BodyQueries     int
	BulkFetches     int
	PerItemFetchers int
	DeleteCommands  int
	MaxDepth        int
	NodeCount       int
}

// Score weighs the round trips for a working set of n items.
func (c Cost) Score(n int) int {
	return c.BodyQueries*CostBodyQuery +
		c.BulkFetches*CostBulkFetch +
		c.PerItemFetchers*CostPerItemFetch*n +
		c.DeleteCommands*CostDeleteCommand
}

// EstimateCost walks tree and counts its store-facing nodes.
func EstimateCost(tree Node) Cost {
	var c Cost
	c.walk(tree, 1)
	return c
}

func (c *Cost) walk(n Node, depth int) {
	switch n.(type) {
	case nil, Empty:
		return
	}
	c.NodeCount++
	if depth > c.MaxDepth {
		c.MaxDepth = depth
	}

	switch node := n.(type) {
	case Action:
		if node.Kind == ActionDelete {
			c.DeleteCommands++
		}
	case *MatchNode:
		if needsBodies(node.Conditions) {
			c.PerItemFetchers++
		}
		c.walk(node.Matched, depth+1)
		c.walk(node.Unmatched, depth+1)
	case *DateNode:
		c.walk(node.Older, depth+1)
		c.walk(node.Younger, depth+1)
	case *CountNode:
		c.walk(node.Greater, depth+1)
		c.walk(node.Less, depth+1)
		c.walk(node.Equal, depth+1)
	case *BodyTermsNode:
		c.BodyQueries++
		c.walk(node.Matched, depth+1)
		c.walk(node.Unmatched, depth+1)
	case *BodyRegexNode:
		c.BulkFetches++
		c.walk(node.Matched, depth+1)
		c.walk(node.Unmatched, depth+1)
	}
}
