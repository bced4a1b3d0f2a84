package node

import "sort"

// orderedNameSet is a sorted-slice/map hybrid standing in for a red-black
// tree treated as a black-box ordered map. It backs the Node's
// initial-actor set, where deterministic,
// lowest-to-highest iteration order matters (NODE_START walks the set in
// a stable order so replays are reproducible) but the set itself is never
// a hot path — spawns/sends don't touch it. No third-party ordered-map
// library is pulled in for this one internal structure; see DESIGN.md.
type orderedNameSet struct {
	present map[int32]bool
	sorted  []int32 // kept sorted; rebuilt lazily by Ordered after an Add
	dirty   bool
}

func newOrderedNameSet() *orderedNameSet {
	return &orderedNameSet{present: make(map[int32]bool)}
}

// Add inserts name, a no-op if already present.
func (s *orderedNameSet) Add(name int32) {
	if s.present[name] {
		return
	}
	s.present[name] = true
	s.dirty = true
}

// Contains reports whether name is in the set.
func (s *orderedNameSet) Contains(name int32) bool {
	return s.present[name]
}

// Len returns the set's size.
func (s *orderedNameSet) Len() int {
	return len(s.present)
}

// Ordered returns the set's members in ascending order. The backing slice
// is rebuilt only when the set has changed since the last call.
func (s *orderedNameSet) Ordered() []int32 {
	if s.dirty {
		s.sorted = s.sorted[:0]
		for name := range s.present {
			s.sorted = append(s.sorted, name)
		}
		sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i] < s.sorted[j] })
		s.dirty = false
	}
	out := make([]int32, len(s.sorted))
	copy(out, s.sorted)
	return out
}
