package parser

import (
	"gradebook/internal/model"
	apperr "gradebook/pkg/errors"
)

// RosterColumns 花名册必需的六列
var RosterColumns = []Column{
	{Field: FieldClass, Header: "班级", Required: true},
	{Field: FieldID, Header: "学号", Required: true},
	{Field: FieldName, Header: "姓名", Required: true},
	{Field: FieldCollege, Header: "学院", Required: true},
	{Field: FieldMajor, Header: "专业", Required: true},
	{Field: FieldGrade, Header: "年级", Required: true},
}

// ReadRoster 读取花名册首个工作表
// 首行为表头，缺少任一必需列时整体失败；学号或姓名为空的行跳过；组合键重复的行丢弃。
func ReadRoster(path string) (*Result[model.StudentRecord], error) {
	sheetName, rows, err := loadRows(path)
	if err != nil {
		return nil, err
	}

	result, err := ParseRosterRows(rows)
	if err != nil {
		return nil, err
	}
	result.SheetName = sheetName
	return result, nil
}

// ParseRosterRows 解析已读出的行（rows[0] 为表头）
func ParseRosterRows(rows [][]string) (*Result[model.StudentRecord], error) {
	if len(rows) == 0 {
		return nil, &apperr.SchemaMismatchError{Missing: requiredHeaders(RosterColumns)}
	}

	index, missing := MapHeader(rows[0], RosterColumns)
	if len(missing) > 0 {
		return nil, &apperr.SchemaMismatchError{Missing: missing}
	}

	result := &Result[model.StudentRecord]{
		Records: make([]model.StudentRecord, 0, len(rows)-1),
	}
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows[1:] {
		result.TotalRows++
		if isBlankRow(row) {
			result.SkippedRows++
			continue
		}

		rec := model.StudentRecord{
			Class:   cellAt(row, index[FieldClass]),
			ID:      cellAt(row, index[FieldID]),
			Name:    cellAt(row, index[FieldName]),
			College: cellAt(row, index[FieldCollege]),
			Major:   cellAt(row, index[FieldMajor]),
			Grade:   cellAt(row, index[FieldGrade]),
		}
		if rec.ID == "" || rec.Name == "" {
			result.SkippedRows++
			continue
		}

		key := rec.Key()
		if _, dup := seen[key]; dup {
			result.DuplicateRows++
			continue
		}
		seen[key] = struct{}{}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}
