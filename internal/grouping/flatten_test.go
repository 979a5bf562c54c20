package grouping_test

import (
	"testing"
	"time"

	"github.com/lethanbinh/apsas-export-service/internal/grouping"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportGroup(id, lecturerID int64, semesterCode string, createdAt time.Time, subCount int) model.ExportGroup {
	subs := make([]model.ExportSubmission, subCount)
	for i := range subs {
		subs[i] = model.ExportSubmission{ID: id*1000 + int64(i)}
	}
	return model.ExportGroup{
		GradingGroup: model.GradingGroup{
			ID:         id,
			LecturerID: lecturerID,
			CreatedAt:  createdAt,
		},
		SemesterCode: semesterCode,
		Subs:         subs,
	}
}

func singleLecturerHierarchy(groups ...model.ExportGroup) []model.GroupedCourse {
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

func TestFlattenMergesGroupsSharingIdentity(t *testing.T) {
	older := exportGroup(100, 5, "FA24", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	newer := exportGroup(101, 5, "FA24", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 2)

	rows := grouping.Flatten(singleLecturerHierarchy(older, newer))

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 5, row.SubmissionCount)
	assert.ElementsMatch(t, []int64{100, 101}, row.GroupIDs)
	assert.Equal(t, int64(101), row.ID)
	assert.Equal(t, int64(101), row.Group.ID)
	assert.Contains(t, row.GroupIDs, row.ID)
	assert.Equal(t, "FA24", row.SemesterCode)
	assert.Equal(t, "PRF192", row.CourseCode)

	// The key already fixes the lecturer; merging must not repeat them.
	assert.Equal(t, []string{"Alice"}, row.LecturerNames)
	assert.Len(t, row.LecturerCodes, 1)
}

func TestFlattenKeepsFirstOnEqualTimestamps(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := exportGroup(100, 5, "FA24", created, 1)
	second := exportGroup(101, 5, "FA24", created, 1)

	rows := grouping.Flatten(singleLecturerHierarchy(first, second))

	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0].ID)
}

func TestFlattenSplitsDistinctLecturers(t *testing.T) {
	courses := []model.GroupedCourse{
		{
			CourseID: 1, CourseName: "Programming Fundamentals", CourseCode: "PRF192",
			Templates: []model.GroupedTemplate{
				{
					TemplateID: 10, TemplateName: "Practical Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 5, LecturerName: "Alice", Groups: []model.ExportGroup{exportGroup(100, 5, "FA24", time.Now(), 1)}},
						{LecturerID: 6, LecturerName: "Bob", Groups: []model.ExportGroup{exportGroup(101, 6, "FA24", time.Now(), 2)}},
					},
				},
			},
		},
	}

	rows := grouping.Flatten(courses)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Alice"}, rows[0].LecturerNames)
	assert.Equal(t, []string{"Bob"}, rows[1].LecturerNames)
}

func TestFlattenDropsGroupsWithoutSemesterCode(t *testing.T) {
	withSemester := exportGroup(100, 5, "FA24", time.Now(), 1)
	withoutSemester := exportGroup(101, 5, "", time.Now(), 4)

	rows := grouping.Flatten(singleLecturerHierarchy(withSemester, withoutSemester))

	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0].ID)
	assert.Equal(t, 1, rows[0].SubmissionCount)
	assert.NotContains(t, rows[0].GroupIDs, int64(101))
}

func TestFilterBySelectionRoundTrip(t *testing.T) {
	courses := []model.GroupedCourse{
		{
			CourseID: 1, CourseName: "Programming Fundamentals", CourseCode: "PRF192",
			Templates: []model.GroupedTemplate{
				{
					TemplateID: 10, TemplateName: "Practical Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 5, LecturerName: "Alice", Groups: []model.ExportGroup{exportGroup(100, 5, "FA24", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1)}},
						{LecturerID: 6, LecturerName: "Bob", Groups: []model.ExportGroup{exportGroup(101, 6, "FA24", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 2)}},
					},
				},
			},
		},
		{
			CourseID: 2, CourseName: "Data Structures", CourseCode: "CSD201",
			Templates: []model.GroupedTemplate{
				{
					TemplateID: 20, TemplateName: "Lab Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 7, LecturerName: "Carol", Groups: []model.ExportGroup{exportGroup(102, 7, "FA24", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 3)}},
					},
				},
			},
		},
	}

	all := grouping.Flatten(courses)
	require.Len(t, all, 3)

	// Any non-empty sub-selection survives the round trip intact.
	selection := all[1:]
	filtered := grouping.FilterBySelection(courses, selection)
	assert.Equal(t, selection, grouping.Flatten(filtered))
}

func TestFilterBySelectionPrunesEmptyNodes(t *testing.T) {
	courses := []model.GroupedCourse{
		{
			CourseID: 1, CourseName: "Programming Fundamentals", CourseCode: "PRF192",
			Templates: []model.GroupedTemplate{
				{
					TemplateID: 10, TemplateName: "Practical Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 5, LecturerName: "Alice", Groups: []model.ExportGroup{exportGroup(100, 5, "FA24", time.Now(), 1)}},
					},
				},
			},
		},
		{
			CourseID: 2, CourseName: "Data Structures", CourseCode: "CSD201",
			Templates: []model.GroupedTemplate{
				{
					TemplateID: 20, TemplateName: "Lab Exam",
					Lecturers: []model.GroupedLecturer{
						{LecturerID: 7, LecturerName: "Carol", Groups: []model.ExportGroup{exportGroup(102, 7, "FA24", time.Now(), 3)}},
					},
				},
			},
		},
	}

	selection := []model.FlatGradingGroup{{GroupIDs: []int64{102}}}
	filtered := grouping.FilterBySelection(courses, selection)

	require.Len(t, filtered, 1)
	assert.Equal(t, int64(2), filtered[0].CourseID)
	require.Len(t, filtered[0].Templates, 1)
	require.Len(t, filtered[0].Templates[0].Lecturers, 1)
	assert.Len(t, filtered[0].Templates[0].Lecturers[0].Groups, 1)
}

func TestFilterBySelectionEmptySelection(t *testing.T) {
	courses := singleLecturerHierarchy(exportGroup(100, 5, "FA24", time.Now(), 1))

	filtered := grouping.FilterBySelection(courses, nil)

	assert.Empty(t, filtered)
}
