package needs

import (
	"strings"

	"needsls/internal/errors"
)

// ResolveParents fills in DocType for needs that omit it but declare a
// parent_need, by walking the parent chain to the first need with a
// non-empty DocType. Every need on the walked path that lacked a DocType
// receives it.
//
// A chain ending at an unknown id (or at a need without parent and without
// doctype) leaves the need unresolved with PARENT_UNRESOLVED; a chain that
// loops back on itself is aborted with PARENT_CYCLE. Unresolved needs keep
// an empty DocType and are therefore not locatable.
func ResolveParents(m *Map) []error {
	var problems []error

	for _, n := range m.All() {
		if n.DocType != "" || n.ParentNeed == "" {
			continue
		}

		path := []*Need{n}
		visited := map[string]bool{n.ID: true}
		cur := n

		for {
			pid := cur.ParentNeed
			if pid == "" {
				problems = append(problems, errors.Newf(errors.ParentUnresolved,
					"need %s: parent chain ends at %s without a doctype", n.ID, cur.ID))
				break
			}
			if visited[pid] {
				problems = append(problems, errors.Newf(errors.ParentCycle,
					"need %s: parent chain loops (%s -> %s)", n.ID, chainString(path), pid))
				break
			}
			parent, ok := m.Get(pid)
			if !ok {
				problems = append(problems, errors.Newf(errors.ParentUnresolved,
					"need %s: parent_need %s does not exist", n.ID, pid))
				break
			}
			if parent.DocType != "" {
				for _, p := range path {
					p.DocType = parent.DocType
				}
				break
			}
			visited[pid] = true
			path = append(path, parent)
			cur = parent
		}
	}

	return problems
}

func chainString(path []*Need) string {
	ids := make([]string, len(path))
	for i, p := range path {
		ids[i] = p.ID
	}
	return strings.Join(ids, " -> ")
}
