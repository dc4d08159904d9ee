package graph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// visitFunc is called for every node reached by walkTree together with the
// chain of its ancestors (outermost first). Returning false skips the
// node's children.
type visitFunc func(n *tree_sitter.Node, ancestors []*tree_sitter.Node) bool

// walkTree performs a depth-first pre-order traversal from root. The
// ancestor slice is reused between calls; callbacks must copy it to keep it.
func walkTree(root *tree_sitter.Node, fn visitFunc) {
	if root == nil {
		return
	}
	cursor := root.Walk()
	defer cursor.Close()

	ancestors := make([]*tree_sitter.Node, 0, 16)
	for {
		node := cursor.Node()
		if fn(node, ancestors) && cursor.GotoFirstChild() {
			ancestors = append(ancestors, node)
			continue
		}
		for !cursor.GotoNextSibling() {
			if len(ancestors) == 0 || !cursor.GotoParent() {
				return
			}
			ancestors = ancestors[:len(ancestors)-1]
			if len(ancestors) == 0 {
				return
			}
		}
	}
}

// namedChildren returns the named children of n.
func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// children returns every child of n, named or anonymous.
func children(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// text returns the source text of n, or "" for a nil node.
func text(n *tree_sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(src)
}

// field returns the text of n's child under the given field name.
func field(n *tree_sitter.Node, name string, src []byte) string {
	if n == nil {
		return ""
	}
	return text(n.ChildByFieldName(name), src)
}

// firstNamedOfKind returns the first named child of n whose kind is one of
// kinds.
func firstNamedOfKind(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	for _, c := range namedChildren(n) {
		for _, k := range kinds {
			if c.Kind() == k {
				return c
			}
		}
	}
	return nil
}

// startLine and endLine convert zero-based tree-sitter rows to 1-based lines.
func startLine(n *tree_sitter.Node) int { return int(n.StartPosition().Row) + 1 }
func endLine(n *tree_sitter.Node) int   { return int(n.EndPosition().Row) + 1 }
