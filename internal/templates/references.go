package templates

import "text/template/parse"

// references returns the names of templates invoked anywhere in tree, in
// the order they appear.
func references(tree *parse.Tree) []string {
	if tree == nil || tree.Root == nil {
		return nil
	}
	var names []string
	collect(tree.Root, &names)
	return names
}

func collect(node parse.Node, names *[]string) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collect(c, names)
		}
	case *parse.TemplateNode:
		*names = append(*names, n.Name)
	case *parse.IfNode:
		collectBranch(&n.BranchNode, names)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, names)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, names)
	}
}

func collectBranch(b *parse.BranchNode, names *[]string) {
	if b.List != nil {
		collect(b.List, names)
	}
	if b.ElseList != nil {
		collect(b.ElseList, names)
	}
}
