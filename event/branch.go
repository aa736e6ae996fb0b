package event

import "strings"

// Branch is a dotted composition ("a.b.c") recording sub-agent lineage. The
// root agent's branch is the empty string; a sub-agent's branch is its
// parent's branch with the sub-agent's invocation-local name appended.
type Branch string

// Root is the branch assigned to a top-level invocation.
const Root Branch = ""

// Child returns the branch assigned to a sub-agent delegated to from b,
// identified by name. Delegating to the same sub-agent name twice from the
// same parent branch yields the same child branch, which is intentional:
// branch identifies lineage, not invocation instance.
func (b Branch) Child(name string) Branch {
	if b == Root {
		return Branch(name)
	}
	return Branch(string(b) + "." + name)
}

// IsAncestorOf reports whether b is an ancestor of, or equal to, other. The
// root branch is an ancestor of every branch.
func (b Branch) IsAncestorOf(other Branch) bool {
	if b == Root || b == other {
		return true
	}
	return strings.HasPrefix(string(other), string(b)+".")
}

// Segments splits the branch into its dotted components. Root returns nil.
func (b Branch) Segments() []string {
	if b == Root {
		return nil
	}
	return strings.Split(string(b), ".")
}
