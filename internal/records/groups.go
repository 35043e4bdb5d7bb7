package records

import "strings"

// Group holds the bodies of one thread in their original relative order
type Group struct {
	Key    string
	Bodies []string
}

// CombinedText joins the bodies with a single space and trims the result
func (g Group) CombinedText() string {
	return strings.TrimSpace(strings.Join(g.Bodies, " "))
}

// Groups is an insertion-ordered mapping from thread key to Group.
// Iteration follows the order in which each key was first seen, which keeps
// batch output reproducible.
type Groups struct {
	index  map[string]int
	groups []Group
}

// GroupByKey partitions records by thread key, skipping unkeyed records
func GroupByKey(records []ThreadRecord) *Groups {
	g := &Groups{index: make(map[string]int)}
	for _, r := range records {
		if r.GroupKey == nil {
			continue
		}
		g.add(*r.GroupKey, r.Body)
	}
	return g
}

func (g *Groups) add(key, body string) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.groups)
		g.index[key] = i
		g.groups = append(g.groups, Group{Key: key})
	}
	g.groups[i].Bodies = append(g.groups[i].Bodies, body)
}

// Len returns the number of distinct keys
func (g *Groups) Len() int {
	return len(g.groups)
}

// Keys returns the keys in first-seen order
func (g *Groups) Keys() []string {
	keys := make([]string, len(g.groups))
	for i, grp := range g.groups {
		keys[i] = grp.Key
	}
	return keys
}

// All returns the groups in first-seen order
func (g *Groups) All() []Group {
	out := make([]Group, len(g.groups))
	copy(out, g.groups)
	return out
}
