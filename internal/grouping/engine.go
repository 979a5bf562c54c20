package grouping

import (
	"time"

	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/rs/zerolog"
)

// Filter narrows the built hierarchy. An empty or "all" semester and zero
// IDs disable the corresponding predicate. Predicates are applied in
// order: semester, course, template, lecturer.
type Filter struct {
	Semester   string
	CourseID   int64
	TemplateID int64
	LecturerID int64
}

func (f Filter) filtersSemester() bool {
	return f.Semester != "" && f.Semester != "all"
}

// BuildReport counts what the engine excluded, so data-integrity problems
// upstream stay visible to operators.
type BuildReport struct {
	Total       int
	Kept        int
	Dropped     int // broken template/course/semester chain
	FilteredOut int // excluded by the active filter
}

// Engine transforms a flat list of grading groups into the
// Course → Template → Lecturer → Group hierarchy.
type Engine struct {
	resolver *Resolver
	lookups  Lookups
	now      func() time.Time
	log      zerolog.Logger
}

func NewEngine(lookups Lookups) *Engine {
	return &Engine{
		resolver: NewResolver(lookups),
		lookups:  lookups,
		now:      time.Now,
		log:      logger.Get(),
	}
}

// Build resolves every grading group through the template/course/semester
// chain, applies the filter, attaches submissions and emits the ordered
// hierarchy. Groups with a broken chain are dropped with a structured
// warning, never an error.
func (e *Engine) Build(groups []model.GradingGroup, submissions []model.Submission, filter Filter) ([]model.GroupedCourse, BuildReport) {
	report := BuildReport{Total: len(groups)}

	subsByGroup := make(map[int64][]model.Submission)
	for _, sub := range submissions {
		subsByGroup[sub.GradingGroupID] = append(subsByGroup[sub.GradingGroupID], sub)
	}

	builder := newHierarchyBuilder()

	for _, group := range groups {
		template, ok := e.resolver.Template(group)
		if !ok {
			e.dropGroup(group, "assessment template", &report)
			continue
		}

		course, ok := e.resolver.Course(template)
		if !ok {
			e.dropGroup(group, "course element chain", &report)
			continue
		}

		semester, ok := e.resolver.SemesterCode(template)
		if !ok {
			e.dropGroup(group, "semester chain", &report)
			continue
		}

		// Semesters that have not begun are excluded even when the
		// filter names them.
		if semester.StartDate.After(e.now()) {
			report.FilteredOut++
			continue
		}

		if filter.filtersSemester() && semester.Code != filter.Semester {
			report.FilteredOut++
			continue
		}
		if filter.CourseID != 0 && course.ID != filter.CourseID {
			report.FilteredOut++
			continue
		}
		if filter.TemplateID != 0 && template.ID != filter.TemplateID {
			report.FilteredOut++
			continue
		}
		if filter.LecturerID != 0 && group.LecturerID != filter.LecturerID {
			report.FilteredOut++
			continue
		}

		exportGroup := model.ExportGroup{
			GradingGroup: group,
			SemesterCode: semester.Code,
			Subs:         e.enrichSubmissions(subsByGroup[group.ID]),
		}

		builder.add(course, template, exportGroup)
		report.Kept++
	}

	return builder.build(), report
}

func (e *Engine) dropGroup(group model.GradingGroup, link string, report *BuildReport) {
	report.Dropped++
	e.log.Warn().
		Int64("group_id", group.ID).
		Int64("lecturer_id", group.LecturerID).
		Str("missing_link", link).
		Msg("Grading group dropped from hierarchy")
}

func (e *Engine) enrichSubmissions(subs []model.Submission) []model.ExportSubmission {
	enriched := make([]model.ExportSubmission, 0, len(subs))
	for _, sub := range subs {
		es := model.ExportSubmission{
			ID:          sub.ID,
			StudentID:   sub.StudentID,
			StudentCode: sub.StudentCode,
			SubmittedAt: sub.SubmittedAt,
		}
		if file, ok := e.lookups.SubmissionFiles[sub.ID]; ok {
			es.FileName = file.Name
			es.FileURL = file.SubmissionURL
		} else if sub.SubmissionFile != nil {
			es.FileName = sub.SubmissionFile.Name
			es.FileURL = sub.SubmissionFile.SubmissionURL
		}
		enriched = append(enriched, es)
	}
	return enriched
}

// hierarchyBuilder accumulates the three-level hierarchy in ordered
// association lists. Index maps point into the slices so insertion stays
// O(1) while first-insertion order is preserved; no mutable map structure
// leaves the builder.
type hierarchyBuilder struct {
	courses     []model.GroupedCourse
	courseIdx   map[int64]int
	templateIdx map[int64]map[int64]int          // courseID → templateID → index
	lecturerIdx map[int64]map[int64]map[int64]int // courseID → templateID → lecturerID → index
}

func newHierarchyBuilder() *hierarchyBuilder {
	return &hierarchyBuilder{
		courseIdx:   make(map[int64]int),
		templateIdx: make(map[int64]map[int64]int),
		lecturerIdx: make(map[int64]map[int64]map[int64]int),
	}
}

func (b *hierarchyBuilder) add(course model.Course, template model.AssessmentTemplate, group model.ExportGroup) {
	ci, ok := b.courseIdx[course.ID]
	if !ok {
		ci = len(b.courses)
		b.courses = append(b.courses, model.GroupedCourse{
			CourseID:   course.ID,
			CourseName: course.Name,
			CourseCode: course.Code,
		})
		b.courseIdx[course.ID] = ci
		b.templateIdx[course.ID] = make(map[int64]int)
		b.lecturerIdx[course.ID] = make(map[int64]map[int64]int)
	}

	ti, ok := b.templateIdx[course.ID][template.ID]
	if !ok {
		ti = len(b.courses[ci].Templates)
		b.courses[ci].Templates = append(b.courses[ci].Templates, model.GroupedTemplate{
			TemplateID:   template.ID,
			TemplateName: template.Name,
		})
		b.templateIdx[course.ID][template.ID] = ti
		b.lecturerIdx[course.ID][template.ID] = make(map[int64]int)
	}

	li, ok := b.lecturerIdx[course.ID][template.ID][group.LecturerID]
	if !ok {
		lecturerName := group.LecturerName
		if lecturerName == "" {
			lecturerName = "Unknown"
		}
		li = len(b.courses[ci].Templates[ti].Lecturers)
		b.courses[ci].Templates[ti].Lecturers = append(b.courses[ci].Templates[ti].Lecturers, model.GroupedLecturer{
			LecturerID:   group.LecturerID,
			LecturerName: lecturerName,
			LecturerCode: group.LecturerCode,
		})
		b.lecturerIdx[course.ID][template.ID][group.LecturerID] = li
	}

	lecturer := &b.courses[ci].Templates[ti].Lecturers[li]
	lecturer.Groups = append(lecturer.Groups, group)
}

func (b *hierarchyBuilder) build() []model.GroupedCourse {
	return b.courses
}
