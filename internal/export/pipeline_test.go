package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lethanbinh/apsas-export-service/internal/assessment"
	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/export"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeResources struct {
	templates     map[int64]model.AssessmentTemplate
	papers        map[int64][]model.Paper
	questions     map[int64][]model.Question
	rubrics       map[int64][]model.RubricItem
	templateFiles map[int64][]model.TemplateFile
	failQuestions bool
}

func (f *fakeResources) GetTemplate(ctx context.Context, templateID int64) (*model.AssessmentTemplate, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %d not found", templateID)
	}
	return &t, nil
}

func (f *fakeResources) ListPapers(ctx context.Context, templateID int64) ([]model.Paper, error) {
	return f.papers[templateID], nil
}

func (f *fakeResources) ListQuestions(ctx context.Context, paperID int64) ([]model.Question, error) {
	if f.failQuestions {
		return nil, fmt.Errorf("question service unavailable")
	}
	return f.questions[paperID], nil
}

func (f *fakeResources) ListRubricItems(ctx context.Context, questionID int64) ([]model.RubricItem, error) {
	return f.rubrics[questionID], nil
}

func (f *fakeResources) ListTemplateFiles(ctx context.Context, templateID int64) ([]model.TemplateFile, error) {
	return f.templateFiles[templateID], nil
}

type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, remoteURL string) ([]byte, error) {
	if data, ok := f.data[remoteURL]; ok {
		return data, nil
	}
	return nil, assessment.ProxyStatusError{StatusCode: 404, URL: remoteURL}
}

func testConfig() *config.Config {
	return &config.Config{
		Export: config.ExportConfig{
			Workers:       1,
			DownloadRate:  10000, // no throttling in tests
			DownloadBurst: 100,
		},
	}
}

func intPtr(v int) *int { return &v }

func groupWithSubs(id, templateID int64, semesterCode string, subs ...model.ExportSubmission) model.ExportGroup {
	var tpl *int64
	if templateID != 0 {
		tpl = &templateID
	}
	return model.ExportGroup{
		GradingGroup: model.GradingGroup{
			ID:                   id,
			AssessmentTemplateID: tpl,
			LecturerID:           5,
			LecturerName:         "Alice",
			CreatedAt:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		SemesterCode: semesterCode,
		Subs:         subs,
	}
}

func hierarchyWith(groups ...model.ExportGroup) []model.GroupedCourse {
	return []model.GroupedCourse{
		{
			CourseID:   1,
			CourseName: "Programming Fundamentals",
			CourseCode: "PRF192",
			Templates: []model.GroupedTemplate{
				{
					TemplateID:   10,
					TemplateName: "Practical Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 5, LecturerName: "Alice", Groups: groups},
					},
				},
			},
		},
	}
}

func defaultResources() *fakeResources {
	return &fakeResources{
		templates: map[int64]model.AssessmentTemplate{
			10: {ID: 10, Name: "Practical Exam", Description: "Final practical"},
		},
		papers: map[int64][]model.Paper{
			10: {{ID: 1, AssessmentTemplateID: 10, Name: "Paper 1", Description: "Coding tasks"}},
		},
		questions: map[int64][]model.Question{
			1: {
				{ID: 2, AssessmentPaperID: 1, QuestionNumber: intPtr(2), Content: "Second"},
				{ID: 1, AssessmentPaperID: 1, QuestionNumber: intPtr(1), Content: "First"},
			},
		},
		rubrics:       map[int64][]model.RubricItem{},
		templateFiles: map[int64][]model.TemplateFile{},
	}
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, file := range reader.File {
		rc, err := file.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		entries[file.Name] = buf.Bytes()
	}
	return entries
}

func TestRunEmptyHierarchy(t *testing.T) {
	pipeline := export.NewPipeline(defaultResources(), &fakeFetcher{}, testConfig())

	result, err := pipeline.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Nil(t, result.Archive)
}

func TestRunAllSubmissionsDroppedWithoutSemester(t *testing.T) {
	sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001", FileURL: "https://files.example.com/a.zip"}
	courses := hierarchyWith(groupWithSubs(100, 10, "", sub))

	pipeline := export.NewPipeline(defaultResources(), &fakeFetcher{}, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Equal(t, 1, result.DroppedCount)
	assert.Nil(t, result.Archive)
}

func TestRunGroupsWithoutSubmissionsProduceNothing(t *testing.T) {
	courses := hierarchyWith(groupWithSubs(100, 10, "FA24"))

	pipeline := export.NewPipeline(defaultResources(), &fakeFetcher{}, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	assert.True(t, result.Empty)
}

func TestRunArchiveCompleteness(t *testing.T) {
	okSub := model.ExportSubmission{ID: 201, StudentCode: "SE150001", FileURL: "https://files.example.com/a.zip"}
	failSub := model.ExportSubmission{ID: 202, StudentCode: "SE150002", FileURL: "https://files.example.com/missing.zip"}
	noFileSub := model.ExportSubmission{ID: 203, StudentCode: "SE150003"}

	courses := hierarchyWith(groupWithSubs(100, 10, "FA24", okSub, failSub, noFileSub))

	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://files.example.com/a.zip": []byte("binary-a"),
	}}

	pipeline := export.NewPipeline(defaultResources(), fetcher, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	require.False(t, result.Empty)
	assert.Equal(t, 3, result.SubmissionCount)
	assert.Contains(t, result.Name, "Teacher_Assignment_Submissions_")

	entries := readArchive(t, result.Archive)

	// One entry per submission: binary or placeholder, never both.
	assert.Equal(t, []byte("binary-a"), entries["Programming_Fundamentals_FA24/Submissions/SE150001.zip"])
	assert.NotContains(t, entries, "Programming_Fundamentals_FA24/Submissions/SE150001.txt")

	placeholder := entries["Programming_Fundamentals_FA24/Submissions/SE150002.txt"]
	require.NotNil(t, placeholder)
	assert.Contains(t, string(placeholder), "https://files.example.com/missing.zip")
	assert.NotContains(t, entries, "Programming_Fundamentals_FA24/Submissions/SE150002.zip")

	noFile := entries["Programming_Fundamentals_FA24/Submissions/SE150003.txt"]
	require.NotNil(t, noFile)
	assert.Contains(t, string(noFile), "No submission file")

	// Requirement document and summary manifest are present.
	doc := entries["Programming_Fundamentals_FA24/Requirements_Practical_Exam/Practical_Exam_Requirement.docx"]
	assert.NotEmpty(t, doc)
	assert.NotEmpty(t, entries["Summary.xlsx"])
}

func TestRunSkipsRequirementsWithoutTemplate(t *testing.T) {
	sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001", FileURL: "https://files.example.com/a.zip"}
	courses := hierarchyWith(groupWithSubs(100, 0, "FA24", sub))

	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://files.example.com/a.zip": []byte("binary-a"),
	}}

	pipeline := export.NewPipeline(defaultResources(), fetcher, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	entries := readArchive(t, result.Archive)

	assert.Contains(t, entries, "Programming_Fundamentals_FA24/Submissions/SE150001.zip")
	for name := range entries {
		assert.NotContains(t, name, "Requirements_")
	}
}

func TestRunAttachesTemplateFiles(t *testing.T) {
	resources := defaultResources()
	resources.templateFiles[10] = []model.TemplateFile{
		{ID: 1, AssessmentTemplateID: 10, Name: "starter code.zip", FileURL: "https://files.example.com/starter.zip"},
		{ID: 2, AssessmentTemplateID: 10, Name: "broken.pdf", FileURL: "https://files.example.com/broken.pdf"},
	}

	sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001", FileURL: "https://files.example.com/a.zip"}
	courses := hierarchyWith(groupWithSubs(100, 10, "FA24", sub))

	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://files.example.com/a.zip":       []byte("binary-a"),
		"https://files.example.com/starter.zip": []byte("starter"),
	}}

	pipeline := export.NewPipeline(resources, fetcher, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	entries := readArchive(t, result.Archive)

	assert.Equal(t, []byte("starter"), entries["Programming_Fundamentals_FA24/Requirements_Practical_Exam/starter_code.zip"])
	// Broken attachment is skipped, not placeholdered.
	assert.NotContains(t, entries, "Programming_Fundamentals_FA24/Requirements_Practical_Exam/broken.pdf")
}

func TestRunSurvivesQuestionFetchFailure(t *testing.T) {
	resources := defaultResources()
	resources.failQuestions = true

	sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001", FileURL: "https://files.example.com/a.zip"}
	courses := hierarchyWith(groupWithSubs(100, 10, "FA24", sub))

	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://files.example.com/a.zip": []byte("binary-a"),
	}}

	pipeline := export.NewPipeline(resources, fetcher, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	entries := readArchive(t, result.Archive)
	assert.NotEmpty(t, entries["Programming_Fundamentals_FA24/Requirements_Practical_Exam/Practical_Exam_Requirement.docx"])
}

func TestRunBucketsByCourseAndSemester(t *testing.T) {
	fa24Sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001"}
	sp25Sub := model.ExportSubmission{ID: 202, StudentCode: "SE150002"}

	courses := hierarchyWith(
		groupWithSubs(100, 10, "FA24", fa24Sub),
		groupWithSubs(101, 10, "SP25", sp25Sub),
	)

	pipeline := export.NewPipeline(defaultResources(), &fakeFetcher{}, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	entries := readArchive(t, result.Archive)

	assert.Contains(t, entries, "Programming_Fundamentals_FA24/Submissions/SE150001.txt")
	assert.Contains(t, entries, "Programming_Fundamentals_SP25/Submissions/SE150002.txt")
}

func TestRunSummaryListsFlattenedRows(t *testing.T) {
	sub := model.ExportSubmission{ID: 201, StudentCode: "SE150001"}
	courses := hierarchyWith(groupWithSubs(100, 10, "FA24", sub))

	pipeline := export.NewPipeline(defaultResources(), &fakeFetcher{}, testConfig())
	result, err := pipeline.Run(context.Background(), courses)

	require.NoError(t, err)
	entries := readArchive(t, result.Archive)

	workbook, err := excelize.OpenReader(bytes.NewReader(entries["Summary.xlsx"]))
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one flattened row
	assert.Equal(t, "PRF192", rows[1][0])
	assert.Equal(t, "Practical Exam", rows[1][2])
}
