package accounts

import (
	"encoding/json"
	"iter"
	"sort"
)

// Node is one account placed in the tree.
type Node struct {
	Account  Account
	Depth    int
	children []int
}

// Tree is an arena of accounts indexed by id. Children reference arena slots,
// never pointers, so the structure can be rebuilt or copied freely.
type Tree struct {
	nodes []Node
	index map[int64]int
	roots []int
}

// BuildTree arranges accounts by parent id. Accounts whose parent is absent
// from the input become roots. Siblings are ordered by code.
func BuildTree(accounts []Account) Tree {
	t := Tree{nodes: make([]Node, len(accounts)), index: make(map[int64]int, len(accounts))}
	for i, a := range accounts {
		t.nodes[i] = Node{Account: a}
		t.index[a.ID] = i
	}
	for i, n := range t.nodes {
		if n.Account.ParentID != nil {
			if p, ok := t.index[*n.Account.ParentID]; ok && p != i {
				t.nodes[p].children = append(t.nodes[p].children, i)
				continue
			}
		}
		t.roots = append(t.roots, i)
	}
	byCode := func(slots []int) {
		sort.SliceStable(slots, func(a, b int) bool {
			return t.nodes[slots[a]].Account.Code < t.nodes[slots[b]].Account.Code
		})
	}
	byCode(t.roots)
	for i := range t.nodes {
		byCode(t.nodes[i].children)
	}
	return t
}

// Len returns the number of accounts in the tree.
func (t Tree) Len() int { return len(t.nodes) }

// Roots returns the top-level accounts ordered by code.
func (t Tree) Roots() []Account {
	out := make([]Account, 0, len(t.roots))
	for _, slot := range t.roots {
		out = append(out, t.nodes[slot].Account)
	}
	return out
}

// Lookup returns the account with id.
func (t Tree) Lookup(id int64) (Account, bool) {
	slot, ok := t.index[id]
	if !ok {
		return Account{}, false
	}
	return t.nodes[slot].Account, true
}

// Walk yields every node depth first, parents before children. The sequence
// can be ranged over any number of times.
func (t Tree) Walk() iter.Seq[Node] {
	return t.walk(t.roots)
}

// Descendants yields the account with rootID and everything below it.
func (t Tree) Descendants(rootID int64) iter.Seq[Node] {
	slot, ok := t.index[rootID]
	if !ok {
		return func(func(Node) bool) {}
	}
	return t.walk([]int{slot})
}

func (t Tree) walk(start []int) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		seen := make(map[int]bool, len(t.nodes))
		var visit func(slot, depth int) bool
		visit = func(slot, depth int) bool {
			if seen[slot] {
				return true
			}
			seen[slot] = true
			n := t.nodes[slot]
			n.Depth = depth
			if !yield(n) {
				return false
			}
			for _, child := range n.children {
				if !visit(child, depth+1) {
					return false
				}
			}
			return true
		}
		for _, slot := range start {
			if !visit(slot, 0) {
				return
			}
		}
	}
}

// Subtree returns the root account and all its descendants.
func Subtree(accounts []Account, rootID int64) []Account {
	var out []Account
	for n := range BuildTree(accounts).Descendants(rootID) {
		out = append(out, n.Account)
	}
	return out
}

// SubtreeIDs returns the ids of Subtree.
func SubtreeIDs(accounts []Account, rootID int64) []int64 {
	var ids []int64
	for n := range BuildTree(accounts).Descendants(rootID) {
		ids = append(ids, n.Account.ID)
	}
	return ids
}

type treeJSON struct {
	Account
	Children []treeJSON `json:"children"`
}

// MarshalJSON renders the nested view clients consume.
func (t Tree) MarshalJSON() ([]byte, error) {
	var build func(slot int) treeJSON
	build = func(slot int) treeJSON {
		n := t.nodes[slot]
		out := treeJSON{Account: n.Account, Children: make([]treeJSON, 0, len(n.children))}
		for _, child := range n.children {
			out.Children = append(out.Children, build(child))
		}
		return out
	}
	roots := make([]treeJSON, 0, len(t.roots))
	for _, slot := range t.roots {
		roots = append(roots, build(slot))
	}
	return json.Marshal(roots)
}
