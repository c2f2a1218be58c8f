package board

import "sort"

// Sort orders boards in place with Less.
func Sort(boards []Board) {
	sort.SliceStable(boards, func(i, j int) bool { return Less(boards[i], boards[j]) })
}

// Sorted returns a sorted copy.
func Sorted(boards []Board) []Board {
	out := Copy(boards)
	Sort(out)
	return out
}

// Copy returns a deep copy of boards. A nil slice stays nil.
func Copy(boards []Board) []Board {
	if boards == nil {
		return nil
	}
	out := make([]Board, len(boards))
	for i, b := range boards {
		out[i] = b.Clone()
	}
	return out
}

// Index returns the position of the board with id, or -1.
func Index(boards []Board, id string) int {
	for i, b := range boards {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the board with id.
func Find(boards []Board, id string) (Board, bool) {
	if i := Index(boards, id); i >= 0 {
		return boards[i], true
	}
	return Board{}, false
}

// Merge folds found into existing: boards already known are refreshed in
// place (keeping their ID and manual name), new ones are appended. Matching
// is by ID first, then by IP.
func Merge(existing, found []Board) []Board {
	out := Copy(existing)
	for _, f := range found {
		if i := Match(out, f); i >= 0 {
			out[i] = Absorb(out[i], f)
			continue
		}
		out = append(out, f.Clone())
	}
	return out
}

// Match returns the index of the board f refers to, by ID and then by
// address, or -1.
func Match(boards []Board, f Board) int {
	if i := Index(boards, f.ID); i >= 0 {
		return i
	}
	return indexByIP(boards, f.IP, f.Port)
}

// Absorb returns f under known's identity. A manual board keeps its name.
func Absorb(known, f Board) Board {
	merged := f.Clone()
	merged.ID = known.ID
	if known.Manual {
		merged.Name = known.Name
		merged.Manual = true
	}
	return merged
}

func indexByIP(boards []Board, ip string, port int) int {
	for i, b := range boards {
		if b.IP == ip && b.port() == portOrDefault(port) {
			return i
		}
	}
	return -1
}

func portOrDefault(p int) int {
	if p == 0 {
		return 80
	}
	return p
}
