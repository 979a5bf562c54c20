package export

import (
	"fmt"
	"strings"

	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/xuri/excelize/v2"
)

// RenderSummary builds the Summary.xlsx manifest placed at the archive
// root: one row per flattened grading group.
func RenderSummary(rows []model.FlatGradingGroup) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{"Course Code", "Course Name", "Template", "Lecturers", "Semester", "Submissions", "Group IDs"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		values := []interface{}{
			row.CourseCode,
			row.CourseName,
			row.TemplateName,
			strings.Join(row.LecturerNames, ", "),
			row.SemesterCode,
			row.SubmissionCount,
			joinIDs(row.GroupIDs),
		}
		for c, value := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize summary workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
