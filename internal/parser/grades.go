package parser

import (
	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

// GradeColumns 成绩表列，仅学号和姓名必需
var GradeColumns = []Column{
	{Field: FieldClass, Header: "班级"},
	{Field: FieldID, Header: "学号", Required: true},
	{Field: FieldName, Header: "姓名", Required: true},
	{Field: FieldCourse, Header: "课程名称"},
	{Field: FieldScore, Header: "成绩"},
	{Field: FieldGrade, Header: "年级"},
	{Field: FieldMajor, Header: "专业"},
	{Field: FieldTeacherID, Header: "任课教师"},
}

// ReadGrades 读取成绩表首个工作表
// 学号与姓名都为空时才跳过该行；未出现的列默认为空串。
func ReadGrades(path string) (*Result[model.GradeRecord], error) {
	sheetName, rows, err := loadRows(path)
	if err != nil {
		return nil, err
	}

	result, err := ParseGradeRows(rows)
	if err != nil {
		return nil, err
	}
	result.SheetName = sheetName
	return result, nil
}

func ParseGradeRows(rows [][]string) (*Result[model.GradeRecord], error) {
	if len(rows) == 0 {
		return nil, &apperr.SchemaMismatchError{Missing: requiredHeaders(GradeColumns)}
	}

	index, missing := MapHeader(rows[0], GradeColumns)
	if len(missing) > 0 {
		return nil, &apperr.SchemaMismatchError{Missing: missing}
	}

	result := &Result[model.GradeRecord]{
		Records: make([]model.GradeRecord, 0, len(rows)-1),
	}
	for _, row := range rows[1:] {
		result.TotalRows++

		rec := model.GradeRecord{
			ID:        cellAt(row, index[FieldID]),
			Name:      cellAt(row, index[FieldName]),
			Class:     cellAt(row, index[FieldClass]),
			Course:    cellAt(row, index[FieldCourse]),
			Score:     cellAt(row, index[FieldScore]),
			Grade:     cellAt(row, index[FieldGrade]),
			Major:     cellAt(row, index[FieldMajor]),
			TeacherID: cellAt(row, index[FieldTeacherID]),
		}
		if rec.ID == "" && rec.Name == "" {
			result.SkippedRows++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// LastByID 按学号去重，保留最后一次出现的记录（顺序按首次出现）
func LastByID(records []model.GradeRecord) []model.GradeRecord {
	pos := make(map[string]int, len(records))
	out := make([]model.GradeRecord, 0, len(records))
	for _, rec := range records {
		if i, ok := pos[rec.ID]; ok {
			out[i] = rec
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}
