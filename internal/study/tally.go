package study

// Tally counts the answers given during one study run.
type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

// Record adds one answer.
func (t *Tally) Record(correct bool) {
	if correct {
		t.Correct++
	} else {
		t.Incorrect++
	}
}

// Total is the number of answers recorded.
func (t Tally) Total() int { return t.Correct + t.Incorrect }

// Reset zeroes the counters.
func (t *Tally) Reset() { *t = Tally{} }
