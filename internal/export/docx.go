package export

import (
	"bytes"
	"fmt"

	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/fumiama/go-docx"
)

// RequirementDoc is the fully fetched content of one requirement document:
// the template with its papers, each paper's questions in display order and
// each question's rubric items.
type RequirementDoc struct {
	Template model.AssessmentTemplate
	Papers   []PaperSection
}

type PaperSection struct {
	Paper     model.Paper
	Questions []QuestionSection
}

type QuestionSection struct {
	Question model.Question
	Rubrics  []model.RubricItem
}

// RenderRequirementDoc produces the DOCX bytes for a requirement document:
// template name as title, optional italic description, then per-paper
// sections with question subsections and rubric lines.
func RenderRequirementDoc(doc RequirementDoc) ([]byte, error) {
	w := docx.New().WithDefaultTheme()

	title := w.AddParagraph().Justification("center")
	title.AddText(doc.Template.Name).Size("36").Bold()

	if doc.Template.Description != "" {
		w.AddParagraph().AddText(doc.Template.Description).Italic()
	}

	for _, section := range doc.Papers {
		w.AddParagraph() // spacing
		heading := w.AddParagraph()
		heading.AddText(section.Paper.Name).Size("28").Bold()
		if section.Paper.Description != "" {
			w.AddParagraph().AddText(section.Paper.Description)
		}

		for _, qs := range section.Questions {
			q := qs.Question

			sub := w.AddParagraph()
			sub.AddText(questionHeading(q)).Bold()
			if q.Content != "" {
				w.AddParagraph().AddText(q.Content)
			}
			if q.SampleInput != "" {
				w.AddParagraph().AddText("Sample input: " + q.SampleInput)
			}
			if q.SampleOutput != "" {
				w.AddParagraph().AddText("Sample output: " + q.SampleOutput)
			}

			for _, rubric := range qs.Rubrics {
				w.AddParagraph().AddText("- " + rubricLine(rubric))
			}
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize requirement document: %w", err)
	}
	return buf.Bytes(), nil
}

func questionHeading(q model.Question) string {
	number := 0
	if q.QuestionNumber != nil {
		number = *q.QuestionNumber
	}
	if q.Score != nil {
		return fmt.Sprintf("Question %d (%.1f points)", number, *q.Score)
	}
	return fmt.Sprintf("Question %d", number)
}

func rubricLine(r model.RubricItem) string {
	line := r.Description
	if r.Input != nil && *r.Input != "" {
		line += fmt.Sprintf(" | input: %s", *r.Input)
	}
	if r.Output != nil && *r.Output != "" {
		line += fmt.Sprintf(" | output: %s", *r.Output)
	}
	if r.Score != nil {
		line += fmt.Sprintf(" | score: %.1f", *r.Score)
	}
	return line
}
