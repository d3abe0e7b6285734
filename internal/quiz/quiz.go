package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// OptionsPerQuestion is the number of answer choices shown per word
const OptionsPerQuestion = 4

// TypeMultipleChoice identifies the multiple-choice quiz in stored
// results
const TypeMultipleChoice = "multiple_choice"

// Question represents a single quiz question
type Question struct {
	Word         models.Word // The word being tested
	Options      []string    // Possible translations
	CorrectIndex int         // Index of correct answer in Options
}

// WordSource supplies random catalog words for quiz questions
type WordSource interface {
	GetRandom(ctx context.Context, limit int) ([]models.Word, error)
}

// Module generates vocabulary quizzes from the word catalog
type Module struct {
	words WordSource
	rnd   *rand.Rand
}

// NewModule creates a new quiz module
func NewModule(words WordSource) *Module {
	return &Module{
		words: words,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateQuiz generates up to count multiple-choice questions. Wrong
// translations are drawn from other catalog words.
func (m *Module) CreateQuiz(ctx context.Context, count int) ([]Question, error) {
	// Fetch extra words so every question has enough distractors
	words, err := m.words.GetRandom(ctx, count*OptionsPerQuestion)
	if err != nil {
		return nil, err
	}
	if len(words) < OptionsPerQuestion {
		return nil, fmt.Errorf("not enough words in the catalog for a quiz (have %d, need %d)", len(words), OptionsPerQuestion)
	}

	if len(words) < count {
		count = len(words)
	}

	questions := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		word := words[i]

		options := []string{word.Translation}
		for _, other := range m.sampleDistractors(words, i, OptionsPerQuestion-1) {
			options = append(options, other.Translation)
		}
		m.rnd.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})

		correct := 0
		for idx, opt := range options {
			if opt == word.Translation {
				correct = idx
				break
			}
		}

		questions = append(questions, Question{
			Word:         word,
			Options:      options,
			CorrectIndex: correct,
		})
	}

	return questions, nil
}

// sampleDistractors picks n words other than the one at skip, with
// distinct translations from it
func (m *Module) sampleDistractors(words []models.Word, skip, n int) []models.Word {
	indexes := m.rnd.Perm(len(words))
	picked := make([]models.Word, 0, n)
	for _, idx := range indexes {
		if idx == skip || words[idx].Translation == words[skip].Translation {
			continue
		}
		picked = append(picked, words[idx])
		if len(picked) == n {
			break
		}
	}
	return picked
}
