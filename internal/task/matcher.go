package task

// #region match

// Match pairs an in-progress task with the step the user should take next.
type Match struct {
	Task     Task `json:"task"`
	NextStep Step `json:"nextStep"`
	Progress int  `json:"progress"` // completed steps, equals the live prefix length
}

// #endregion match

// #region matcher

// Matcher is a deterministic prefix automaton over known tasks: states are
// prefix lengths, transitions are exact selector equality, and the terminal
// state (full length) means the task is complete rather than in progress.
// First match wins in discovery order.
type Matcher struct {
	minLength int
	order     []string
	tasks     map[string]Task
}

// NewMatcher creates an empty matcher. Live sequences shorter than minLength
// never match.
func NewMatcher(minLength int) *Matcher {
	return &Matcher{
		minLength: minLength,
		tasks:     make(map[string]Task),
	}
}

// Upsert registers or overwrites a task. Overwriting keeps the original
// discovery position.
func (m *Matcher) Upsert(t Task) {
	if _, seen := m.tasks[t.ID]; !seen {
		m.order = append(m.order, t.ID)
	}
	m.tasks[t.ID] = t
}

// Tasks returns all known tasks in discovery order.
func (m *Matcher) Tasks() []Task {
	out := make([]Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	return out
}

// Len returns the number of known tasks.
func (m *Matcher) Len() int {
	return len(m.order)
}

// Reset forgets all tasks.
func (m *Matcher) Reset() {
	m.order = nil
	m.tasks = make(map[string]Task)
}

// #endregion matcher

// #region match-fn

// MatchPrefix returns the first task whose step selectors start with the
// live trailing sequence and whose total length strictly exceeds it, plus
// the next step. Returns nil when no task is in progress.
func (m *Matcher) MatchPrefix(live []string) *Match {
	if len(live) < m.minLength {
		return nil
	}
	for _, id := range m.order {
		t := m.tasks[id]
		if len(t.Steps) <= len(live) {
			continue
		}
		if !prefixEqual(t.Steps, live) {
			continue
		}
		return &Match{
			Task:     t,
			NextStep: t.Steps[len(live)],
			Progress: len(live),
		}
	}
	return nil
}

func prefixEqual(steps []Step, live []string) bool {
	for i, sel := range live {
		if steps[i].Selector != sel {
			return false
		}
	}
	return true
}

// #endregion match-fn
