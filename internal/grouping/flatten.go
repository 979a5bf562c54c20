package grouping

import (
	"fmt"

	"github.com/lethanbinh/apsas-export-service/internal/model"
)

// Flatten projects the hierarchy back into one deduplicated row per
// (course, template, lecturer) identity. Rows merge every grading group
// sharing the key; the representative group (and the row ID) is the member
// with the latest CreatedAt, ties kept first-wins. Groups without a
// semester code never reach a row.
func Flatten(courses []model.GroupedCourse) []model.FlatGradingGroup {
	var rows []model.FlatGradingGroup
	rowIdx := make(map[string]int)

	for _, course := range courses {
		for _, template := range course.Templates {
			for _, lecturer := range template.Lecturers {
				for _, group := range lecturer.Groups {
					if group.SemesterCode == "" {
						continue
					}

					key := fmt.Sprintf("%d_%d_%d", course.CourseID, template.TemplateID, lecturer.LecturerID)
					if i, ok := rowIdx[key]; ok {
						row := &rows[i]
						row.SubmissionCount += len(group.Subs)
						row.GroupIDs = append(row.GroupIDs, group.ID)
						if group.CreatedAt.After(row.Group.CreatedAt) {
							row.ID = group.ID
							row.Group = group
						}
						continue
					}

					rowIdx[key] = len(rows)
					rows = append(rows, model.FlatGradingGroup{
						ID:              group.ID,
						CourseCode:      course.CourseCode,
						CourseName:      course.CourseName,
						TemplateName:    template.TemplateName,
						LecturerNames:   []string{lecturer.LecturerName},
						LecturerCodes:   []*string{lecturer.LecturerCode},
						SemesterCode:    group.SemesterCode,
						SubmissionCount: len(group.Subs),
						GroupIDs:        []int64{group.ID},
						Group:           group,
					})
				}
			}
		}
	}

	return rows
}

// FilterBySelection is the inverse of Flatten for "download selected": it
// keeps only the grading groups behind the chosen rows and prunes any
// lecturer, template or course node left empty.
func FilterBySelection(courses []model.GroupedCourse, selected []model.FlatGradingGroup) []model.GroupedCourse {
	keep := make(map[int64]bool)
	for _, row := range selected {
		for _, id := range row.GroupIDs {
			keep[id] = true
		}
	}

	var filtered []model.GroupedCourse
	for _, course := range courses {
		var templates []model.GroupedTemplate
		for _, template := range course.Templates {
			var lecturers []model.GroupedLecturer
			for _, lecturer := range template.Lecturers {
				var groups []model.ExportGroup
				for _, group := range lecturer.Groups {
					if keep[group.ID] {
						groups = append(groups, group)
					}
				}
				if len(groups) > 0 {
					kept := lecturer
					kept.Groups = groups
					lecturers = append(lecturers, kept)
				}
			}
			if len(lecturers) > 0 {
				kept := template
				kept.Lecturers = lecturers
				templates = append(templates, kept)
			}
		}
		if len(templates) > 0 {
			kept := course
			kept.Templates = templates
			filtered = append(filtered, kept)
		}
	}

	return filtered
}

// FilterByGroupIDs rebuilds a selection from raw group IDs, used when the
// caller sends IDs instead of flat rows.
func FilterByGroupIDs(courses []model.GroupedCourse, groupIDs []int64) []model.GroupedCourse {
	rows := make([]model.FlatGradingGroup, 0, 1)
	rows = append(rows, model.FlatGradingGroup{GroupIDs: groupIDs})
	return FilterBySelection(courses, rows)
}
