package session

// Progress is the display-facing view of the session derived from store
// state. It is recomputed on demand and never stored.
type Progress struct {
	CurrentQuestion int
	TotalQuestions  int
	CurrentLevel    int
	// LevelDelta is the actual observed level change caused by the last
	// answer. It is derived from stored levels, not taken from the
	// evaluator, so a recommendation that was neutralized by clamping
	// (e.g. +1 at level 5) shows as 0.
	LevelDelta int
	Percent    float64
}

// Progress derives the current view model. The displayed question number
// and percentage are clamped even when the backend reports an out-of-range
// ordinal.
func (s *Store) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.askedCount
	total := s.totalQuestions
	if total > 0 && current > total {
		current = total
	}

	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
	}

	return Progress{
		CurrentQuestion: current,
		TotalQuestions:  total,
		CurrentLevel:    s.currentLevel,
		LevelDelta:      s.currentLevel - s.levelBeforeLast,
		Percent:         percent,
	}
}
