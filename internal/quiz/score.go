package quiz

// Score is the result of grading a quiz.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Grade scores answers (question id -> option id) against questions.
// Unanswered questions and unknown option ids count as wrong.
func Grade(questions []Question, answers map[string]string) Score {
	return Score{
		Correct: CountCorrect(questions, answers),
		Total:   len(questions),
	}
}

// CountCorrect counts the questions whose recorded answer is a correct option.
func CountCorrect(questions []Question, answers map[string]string) int {
	correct := 0
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok || selected == "" {
			continue
		}
		for _, opt := range q.Options {
			if opt.ID == selected {
				if opt.IsCorrect {
					correct++
				}
				break
			}
		}
	}
	return correct
}
