package models

// OptionsPerQuestion is the fixed number of answer options per question item.
const OptionsPerQuestion = 4

// QuestionItem is a validated multiple-choice question. It is immutable once
// produced by the question provider.
type QuestionItem struct {
	Text         string   `json:"question_text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer"`
	Explanation  string   `json:"explanation"`
}

// CandidateQuestion is a raw generator candidate before validation. Pointer
// fields distinguish "missing" from zero values.
type CandidateQuestion struct {
	Text          string   `json:"question_text" validate:"required,not_blank"`
	Options       []string `json:"options" validate:"len=4,dive,required,not_blank"`
	CorrectAnswer *int     `json:"correct_answer" validate:"required,option_index"`
	Explanation   string   `json:"explanation" validate:"required,not_blank"`
}

// ToQuestionItem converts a validated candidate.
func (c *CandidateQuestion) ToQuestionItem() QuestionItem {
	options := make([]string, len(c.Options))
	copy(options, c.Options)

	return QuestionItem{
		Text:         c.Text,
		Options:      options,
		CorrectIndex: *c.CorrectAnswer,
		Explanation:  c.Explanation,
	}
}

// PublicQuestion is what the candidate sees; answers and explanations stay server side.
type PublicQuestion struct {
	Index   int      `json:"index"`
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
}

func (q QuestionItem) Public(index int) PublicQuestion {
	return PublicQuestion{
		Index:   index,
		Text:    q.Text,
		Options: q.Options,
	}
}

// OptionText returns the option label or an empty string when out of range.
func (q QuestionItem) OptionText(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}
