package ai

import (
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"github.com/spigell/interview-trainer/internal/session"
)

//go:embed question_prompt.md
var questionTemplate string

//go:embed evaluation_prompt.md
var evaluationTemplate string

func questionPrompt(settings session.Settings, level int, category session.Category, previous []string) string {
	keywords := strings.Join(settings.Keywords, ", ")
	if keywords == "" {
		keywords = "general topics for the role"
	}

	asked := "(none yet)"
	if len(previous) > 0 {
		var b strings.Builder
		for i, text := range previous {
			fmt.Fprintf(&b, "%d. %s\n", i+1, text)
		}
		asked = strings.TrimRight(b.String(), "\n")
	}

	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", settings.JobTitle,
		"{{CATEGORY}}", string(category),
		"{{LEVEL}}", strconv.Itoa(level),
		"{{KEYWORDS}}", keywords,
		"{{LANGUAGE}}", settings.Language,
		"{{PREVIOUS_QUESTIONS}}", asked,
	)

	return replacer.Replace(questionTemplate)
}

func evaluationPrompt(q session.Question, answer, jobTitle string) string {
	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", jobTitle,
		"{{CATEGORY}}", string(q.Category),
		"{{LEVEL}}", strconv.Itoa(q.Level),
		"{{QUESTION}}", q.Text,
		"{{ANSWER}}", answer,
	)

	return replacer.Replace(evaluationTemplate)
}
