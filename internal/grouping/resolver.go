package grouping

import (
	"time"

	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/rs/zerolog"
)

// Lookups carries the reference data needed to resolve a grading group's
// template → course element → semester course → semester chain. All maps
// are keyed by record ID.
type Lookups struct {
	Templates       map[int64]model.AssessmentTemplate
	CourseElements  map[int64]model.CourseElement
	SemesterCourses map[int64]model.SemesterCourse
	Semesters       map[int64]model.Semester
	Courses         map[int64]model.Course
	// SubmissionFiles holds enriched file info keyed by submission ID;
	// absent entries fall back to the submission's own file fields.
	SubmissionFiles map[int64]model.SubmissionFile
}

func NewLookups(
	templates []model.AssessmentTemplate,
	courseElements []model.CourseElement,
	semesterCourses []model.SemesterCourse,
	semesters []model.Semester,
	courses []model.Course,
) Lookups {
	l := Lookups{
		Templates:       make(map[int64]model.AssessmentTemplate, len(templates)),
		CourseElements:  make(map[int64]model.CourseElement, len(courseElements)),
		SemesterCourses: make(map[int64]model.SemesterCourse, len(semesterCourses)),
		Semesters:       make(map[int64]model.Semester, len(semesters)),
		Courses:         make(map[int64]model.Course, len(courses)),
		SubmissionFiles: make(map[int64]model.SubmissionFile),
	}
	for _, t := range templates {
		l.Templates[t.ID] = t
	}
	for _, ce := range courseElements {
		l.CourseElements[ce.ID] = ce
	}
	for _, sc := range semesterCourses {
		l.SemesterCourses[sc.ID] = sc
	}
	for _, s := range semesters {
		l.Semesters[s.ID] = s
	}
	for _, c := range courses {
		l.Courses[c.ID] = c
	}
	return l
}

// SemesterRef is the resolved end of the semester chain.
type SemesterRef struct {
	Code      string
	StartDate time.Time
}

// Resolver makes the chain-resolution drop policy explicit: every lookup
// returns (value, ok) and a broken link is reported to the caller instead
// of vanishing inside control flow.
type Resolver struct {
	lookups Lookups
	log     zerolog.Logger
}

func NewResolver(lookups Lookups) *Resolver {
	return &Resolver{
		lookups: lookups,
		log:     logger.Get(),
	}
}

// Template resolves a group's assessment template.
func (r *Resolver) Template(group model.GradingGroup) (model.AssessmentTemplate, bool) {
	if group.AssessmentTemplateID == nil {
		return model.AssessmentTemplate{}, false
	}
	template, ok := r.lookups.Templates[*group.AssessmentTemplateID]
	return template, ok
}

// Course walks template → course element → semester course → course.
func (r *Resolver) Course(template model.AssessmentTemplate) (model.Course, bool) {
	if template.CourseElementID == nil {
		return model.Course{}, false
	}
	element, ok := r.lookups.CourseElements[*template.CourseElementID]
	if !ok || element.SemesterCourseID == nil {
		return model.Course{}, false
	}
	semesterCourse, ok := r.lookups.SemesterCourses[*element.SemesterCourseID]
	if !ok {
		return model.Course{}, false
	}
	course, ok := r.lookups.Courses[semesterCourse.CourseID]
	return course, ok
}

// SemesterCode walks template → course element → semester course → semester.
// The second return is false whenever any link in the chain is missing;
// callers decide whether that means drop or error.
func (r *Resolver) SemesterCode(template model.AssessmentTemplate) (SemesterRef, bool) {
	if template.CourseElementID == nil {
		return SemesterRef{}, false
	}
	element, ok := r.lookups.CourseElements[*template.CourseElementID]
	if !ok || element.SemesterCourseID == nil {
		return SemesterRef{}, false
	}
	semesterCourse, ok := r.lookups.SemesterCourses[*element.SemesterCourseID]
	if !ok {
		return SemesterRef{}, false
	}
	semester, ok := r.lookups.Semesters[semesterCourse.SemesterID]
	if !ok {
		return SemesterRef{}, false
	}
	return SemesterRef{Code: semester.SemesterCode, StartDate: semester.StartDate}, true
}
