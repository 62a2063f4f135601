package vocab

// #region config

// UnknownID is the reserved sentinel id. It doubles as the padding token for
// the sequence model, matching the tokenizer's out-of-vocabulary handling.
const UnknownID = 0

// Config bounds the vocabulary.
type Config struct {
	Capacity int // maximum number of assigned entries, excluding the sentinel
}

// DefaultConfig returns the standard vocabulary bounds.
func DefaultConfig() Config {
	return Config{Capacity: 5000}
}

// #endregion config

// #region vocabulary

// Vocabulary is the bidirectional selector↔id table. Ids are assigned
// monotonically starting at 1 and are never reassigned or reused within a
// process lifetime. Once the capacity is reached, unseen selectors map to
// UnknownID.
type Vocabulary struct {
	config     Config
	toID       map[string]int
	toSelector []string // index = id; index 0 is the unknown sentinel
}

// New creates an empty vocabulary.
func New(config Config) *Vocabulary {
	return &Vocabulary{
		config:     config,
		toID:       make(map[string]int),
		toSelector: []string{""},
	}
}

// #endregion vocabulary

// #region to-index

// ToIndex returns the id for selector, assigning a fresh one if the selector
// is unseen and capacity remains. Empty selectors and overflow map to
// UnknownID.
func (v *Vocabulary) ToIndex(selector string) int {
	if selector == "" {
		return UnknownID
	}
	if id, ok := v.toID[selector]; ok {
		return id
	}
	if len(v.toID) >= v.config.Capacity {
		return UnknownID
	}
	id := len(v.toSelector)
	v.toID[selector] = id
	v.toSelector = append(v.toSelector, selector)
	return id
}

// #endregion to-index

// #region lookup

// Lookup returns the id for an already-seen selector without assigning one.
func (v *Vocabulary) Lookup(selector string) (int, bool) {
	id, ok := v.toID[selector]
	return id, ok
}

// ToSelector returns the selector for id, or false for the sentinel and
// unassigned ids.
func (v *Vocabulary) ToSelector(id int) (string, bool) {
	if id <= 0 || id >= len(v.toSelector) {
		return "", false
	}
	return v.toSelector[id], true
}

// Size returns the number of assigned entries.
func (v *Vocabulary) Size() int {
	return len(v.toID)
}

// #endregion lookup

// #region reset

// Reset discards all entries. Ids assigned after a reset start from 1 again.
func (v *Vocabulary) Reset() {
	v.toID = make(map[string]int)
	v.toSelector = []string{""}
}

// #endregion reset
