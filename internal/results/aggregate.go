package results

import "math"

// GroupByOffice buckets records by displayed contest. Records for offices
// outside Offices are dropped silently. Within a bucket the input order is
// kept.
func GroupByOffice(records []Record) map[Office][]Record {
	groups := make(map[Office][]Record, len(Offices))
	for _, r := range records {
		if !r.Office.Known() {
			continue
		}
		groups[r.Office] = append(groups[r.Office], r)
	}
	return groups
}

// LeaderIndex returns the index of the record with the strictly greatest
// percentage, or -1 for an empty group. The first record starts as leader
// and a later record only takes over with a strictly greater value, so
// ties resolve to the earliest record. An unparseable percentage never
// beats a parseable one.
func LeaderIndex(group []Record) int {
	if len(group) == 0 {
		return -1
	}
	leader := 0
	best := group[0].Percentage.Value()
	for i := 1; i < len(group); i++ {
		if v := group[i].Percentage.Value(); v > best || (math.IsNaN(best) && !math.IsNaN(v)) {
			leader, best = i, v
		}
	}
	return leader
}

// FindLeader returns the leading record of group, if any.
func FindLeader(group []Record) (Record, bool) {
	i := LeaderIndex(group)
	if i < 0 {
		return Record{}, false
	}
	return group[i], true
}
