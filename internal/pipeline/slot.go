package pipeline

import "duelmatch/server/internal/kernel"

// slot holds the admission state for one (player, tick) pair: the
// highest input_seq observed, the move_dir it carried, whether the slot is
// currently tied between two equal-seq messages, and how many messages
// have been counted against the per-tick rate limit.
type slot struct {
	hasValue      bool
	maxSeq        uint64
	moveDir       kernel.Vec2
	tied          bool
	receivedCount int
}

// merge applies the slot-evolution rule from the spec: a strictly greater
// seq replaces the move_dir and clears the tie; an equal seq marks the slot
// tied (both current and incoming intent are semantically undistinguished);
// a lesser seq is ignored for selection purposes.
func (s *slot) merge(seq uint64, moveDir kernel.Vec2) {
	switch {
	case !s.hasValue:
		s.hasValue = true
		s.maxSeq = seq
		s.moveDir = moveDir
		s.tied = false
	case seq > s.maxSeq:
		s.maxSeq = seq
		s.moveDir = moveDir
		s.tied = false
	case seq == s.maxSeq:
		s.tied = true
	default:
		// seq < maxSeq: ignored for selection.
	}
}
