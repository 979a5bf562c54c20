package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/grouping"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ResourceFetcher is the slice of the assessment client the pipeline needs
// for requirement content.
type ResourceFetcher interface {
	GetTemplate(ctx context.Context, templateID int64) (*model.AssessmentTemplate, error)
	ListPapers(ctx context.Context, templateID int64) ([]model.Paper, error)
	ListQuestions(ctx context.Context, paperID int64) ([]model.Question, error)
	ListRubricItems(ctx context.Context, questionID int64) ([]model.RubricItem, error)
	ListTemplateFiles(ctx context.Context, templateID int64) ([]model.TemplateFile, error)
}

// BinaryFetcher downloads one remote binary through the file proxy.
type BinaryFetcher interface {
	Fetch(ctx context.Context, remoteURL string) ([]byte, error)
}

// Result is the outcome of one pipeline run. Archive is nil when Empty is
// set; exactly one of the two shapes leaves Run without an error.
type Result struct {
	Archive         []byte
	Name            string
	SubmissionCount int
	DroppedCount    int
	Empty           bool
}

// submissionTuple pairs one submission with the group and course context it
// is exported under.
type submissionTuple struct {
	sub          model.ExportSubmission
	group        model.ExportGroup
	courseName   string
	courseCode   string
	semesterCode string
}

type bucket struct {
	folder string
	tuples []submissionTuple
}

// Pipeline assembles the export archive: per (course, semester) folder, a
// requirements subfolder per grading group and a submissions subfolder with
// one entry per submission. Downloads go through the file proxy, paced by
// the configured limiter; every per-item failure degrades to a placeholder
// or a skipped entry, never an abort.
type Pipeline struct {
	resources ResourceFetcher
	files     BinaryFetcher
	limiter   *rate.Limiter
	log       zerolog.Logger
}

func NewPipeline(resources ResourceFetcher, files BinaryFetcher, cfg *config.Config) *Pipeline {
	return &Pipeline{
		resources: resources,
		files:     files,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Export.DownloadRate), cfg.Export.DownloadBurst),
		log:       logger.Get(),
	}
}

func (p *Pipeline) Run(ctx context.Context, courses []model.GroupedCourse) (*Result, error) {
	if len(courses) == 0 {
		p.log.Warn().Msg("Export requested with empty hierarchy, no archive produced")
		return &Result{Empty: true}, nil
	}

	tuples, dropped := p.flattenTuples(courses)

	buckets := p.bucketTuples(tuples)
	if len(buckets) == 0 {
		p.log.Warn().Int("dropped", dropped).Msg("No submissions survived semester filtering, no archive produced")
		return &Result{Empty: true, DroppedCount: dropped}, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := 0
	for _, b := range buckets {
		count, err := p.writeBucket(ctx, zw, b)
		if err != nil {
			return nil, err
		}
		written += count
	}

	if err := p.writeSummary(zw, courses); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	name := fmt.Sprintf("Teacher_Assignment_Submissions_%d.zip", time.Now().UnixMilli())
	p.log.Info().
		Str("archive", name).
		Int("submissions", written).
		Int("dropped", dropped).
		Int("buckets", len(buckets)).
		Msg("Export archive assembled")

	return &Result{
		Archive:         buf.Bytes(),
		Name:            name,
		SubmissionCount: written,
		DroppedCount:    dropped,
	}, nil
}

// flattenTuples walks the hierarchy and emits one tuple per submission on
// groups that have any. Tuples without a semester code are counted as
// dropped here so bucketing stays total.
func (p *Pipeline) flattenTuples(courses []model.GroupedCourse) ([]submissionTuple, int) {
	var tuples []submissionTuple
	dropped := 0

	for _, course := range courses {
		for _, template := range course.Templates {
			for _, lecturer := range template.Lecturers {
				for _, group := range lecturer.Groups {
					if len(group.Subs) == 0 {
						continue
					}
					if group.SemesterCode == "" {
						dropped += len(group.Subs)
						p.log.Warn().
							Int64("group_id", group.ID).
							Int("submissions", len(group.Subs)).
							Msg("Group has no semester code, submissions excluded from export")
						continue
					}
					for _, sub := range group.Subs {
						tuples = append(tuples, submissionTuple{
							sub:          sub,
							group:        group,
							courseName:   course.CourseName,
							courseCode:   course.CourseCode,
							semesterCode: group.SemesterCode,
						})
					}
				}
			}
		}
	}

	return tuples, dropped
}

func (p *Pipeline) bucketTuples(tuples []submissionTuple) []bucket {
	var buckets []bucket
	idx := make(map[string]int)

	for _, t := range tuples {
		key := t.courseCode + "_" + t.semesterCode
		i, ok := idx[key]
		if !ok {
			i = len(buckets)
			buckets = append(buckets, bucket{
				folder: sanitizeName(t.courseName) + "_" + t.semesterCode,
			})
			idx[key] = i
		}
		buckets[i].tuples = append(buckets[i].tuples, t)
	}

	return buckets
}

func (p *Pipeline) writeBucket(ctx context.Context, zw *zip.Writer, b bucket) (int, error) {
	// Requirements once per distinct group, in first-appearance order.
	seen := make(map[int64]bool)
	for _, t := range b.tuples {
		if seen[t.group.ID] {
			continue
		}
		seen[t.group.ID] = true

		if err := p.writeRequirements(ctx, zw, b.folder, t.group); err != nil {
			return 0, err
		}
	}

	written := 0
	for _, t := range b.tuples {
		if err := p.writeSubmission(ctx, zw, b.folder, t); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// writeRequirements renders the requirement document for one grading group
// and attaches the template's requirement files. Fetch failures for
// individual papers, questions, rubrics or files degrade that item to
// empty; only archive-write errors propagate.
func (p *Pipeline) writeRequirements(ctx context.Context, zw *zip.Writer, folder string, group model.ExportGroup) error {
	if group.AssessmentTemplateID == nil {
		return nil
	}
	templateID := *group.AssessmentTemplateID

	log := p.log.With().Int64("group_id", group.ID).Int64("template_id", templateID).Logger()

	template, err := p.resources.GetTemplate(ctx, templateID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch assessment template, requirements skipped")
		return nil
	}

	doc := RequirementDoc{Template: *template}

	papers, err := p.resources.ListPapers(ctx, templateID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch papers, rendering requirement document without them")
		papers = nil
	}

	for _, paper := range papers {
		section := PaperSection{Paper: paper}

		questions, err := p.resources.ListQuestions(ctx, paper.ID)
		if err != nil {
			log.Warn().Err(err).Int64("paper_id", paper.ID).Msg("Failed to fetch questions, paper rendered empty")
			questions = nil
		}
		sort.SliceStable(questions, func(i, j int) bool {
			return questionNumber(questions[i]) < questionNumber(questions[j])
		})

		for _, question := range questions {
			rubrics, err := p.resources.ListRubricItems(ctx, question.ID)
			if err != nil {
				log.Warn().Err(err).Int64("question_id", question.ID).Msg("Failed to fetch rubric items, question rendered without rubric")
				rubrics = nil
			}
			section.Questions = append(section.Questions, QuestionSection{
				Question: question,
				Rubrics:  rubrics,
			})
		}

		doc.Papers = append(doc.Papers, section)
	}

	docBytes, err := RenderRequirementDoc(doc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render requirement document, skipped")
		return nil
	}

	templateName := sanitizeName(template.Name)
	subfolder := folder + "/Requirements_" + templateName
	if err := writeEntry(zw, subfolder+"/"+templateName+"_Requirement.docx", docBytes); err != nil {
		return err
	}

	files, err := p.resources.ListTemplateFiles(ctx, templateID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list template files, attachments skipped")
		return nil
	}

	for _, file := range files {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		data, err := p.files.Fetch(ctx, file.FileURL)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name).Msg("Failed to download requirement file, skipped")
			continue
		}
		if err := writeEntry(zw, subfolder+"/"+sanitizeName(file.Name), data); err != nil {
			return err
		}
	}

	return nil
}

// writeSubmission stores exactly one entry per tuple: the downloaded binary
// on success, a .txt placeholder on any failure or when no file exists.
func (p *Pipeline) writeSubmission(ctx context.Context, zw *zip.Writer, folder string, t submissionTuple) error {
	base := t.sub.StudentCode
	if base == "" {
		base = fmt.Sprintf("submission_%d", t.sub.ID)
	}
	path := folder + "/Submissions/" + sanitizeName(base)

	if t.sub.FileURL == "" {
		placeholder := fmt.Sprintf("No submission file is available for student %s (submission %d).\n", t.sub.StudentCode, t.sub.ID)
		return writeEntry(zw, path+".txt", []byte(placeholder))
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := p.files.Fetch(ctx, t.sub.FileURL)
	if err != nil {
		p.log.Warn().
			Err(err).
			Int64("submission_id", t.sub.ID).
			Str("student_code", t.sub.StudentCode).
			Msg("Failed to download submission file, placeholder written")
		placeholder := fmt.Sprintf("Failed to download submission file: %v\nOriginal URL: %s\n", err, t.sub.FileURL)
		return writeEntry(zw, path+".txt", []byte(placeholder))
	}

	return writeEntry(zw, path+".zip", data)
}

func (p *Pipeline) writeSummary(zw *zip.Writer, courses []model.GroupedCourse) error {
	rows := grouping.Flatten(courses)
	data, err := RenderSummary(rows)
	if err != nil {
		return fmt.Errorf("failed to render summary workbook: %w", err)
	}
	return writeEntry(zw, "Summary.xlsx", data)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

func questionNumber(q model.Question) int {
	if q.QuestionNumber == nil {
		return 0
	}
	return *q.QuestionNumber
}
