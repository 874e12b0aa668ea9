package needs

// ComputeBackLinks resets and recomputes BkLinks for every need.
//
// A reverse-link field of N (links_back, tests_back, ...) lists the needs
// referencing N, so its ids are appended to N's own BkLinks. A forward link
// from N to T appends N's id to T's BkLinks. Both rules agree on snapshots
// that carry links and links_back side by side. Ids missing from m are
// dropped silently: documents often reference needs outside the loaded
// snapshot. Running it twice yields the same result.
func ComputeBackLinks(m *Map) {
	all := m.All()
	for _, n := range all {
		n.BkLinks = []string{}
	}

	for _, n := range all {
		for _, field := range n.ReverseLinks {
			for _, id := range field.IDs {
				if _, ok := m.Get(id); ok {
					n.addBackLink(id)
				}
			}
		}
		for _, id := range n.Links {
			if target, ok := m.Get(id); ok {
				target.addBackLink(n.ID)
			}
		}
	}
}
