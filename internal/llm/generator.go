// Package llm produces raw multiple-choice question candidates from a job
// role description through a hosted language model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Generator returns raw, unvalidated question candidates for a role description.
type Generator interface {
	Generate(ctx context.Context, roleDescription string) ([]json.RawMessage, error)
}

// Options shared by every backend.
type Options struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	QuestionCount int
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.Temperature == 0 {
		o.Temperature = 0.7
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 4000
	}
	if o.QuestionCount == 0 {
		o.QuestionCount = 10
	}
	return o
}

const systemPrompt = `You are a technical interviewer creating multiple choice questions.
Generate technical questions specific to the provided job description. Each question must be challenging
and relevant to assess the candidate's expertise for this specific role.`

func userPrompt(roleDescription string, count int) string {
	return fmt.Sprintf(`Based on this job description:
%s

Create %d technical multiple choice questions that specifically test the skills and knowledge required for this role.
Each question must follow this exact format:
{
    "question_text": "Technical question here",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct_answer": 2,
    "explanation": "Explanation why the correct answer is right"
}

Requirements:
1. Questions must be technical and directly related to the job description
2. Each question must have exactly 4 options
3. "correct_answer" is the zero-based index of the correct option; vary its position between questions
4. Include clear explanations
5. Format as a JSON array

Return ONLY the JSON array with no additional text or formatting.`, roleDescription, count)
}
