package model

import "strings"

// keySep 组合键分隔符（ASCII unit separator，表格内容中不会出现）
const keySep = "\x1f"

// StudentRecord 花名册中的一行学生信息
type StudentRecord struct {
	Class   string `json:"class"`   // 班级
	ID      string `json:"id"`      // 学号
	Name    string `json:"name"`    // 姓名
	College string `json:"college"` // 学院
	Major   string `json:"major"`   // 专业
	Grade   string `json:"grade"`   // 年级
}

// Key 去重用的组合键 (class, id, name, college, major, grade)
func (s StudentRecord) Key() string {
	return strings.Join([]string{s.Class, s.ID, s.Name, s.College, s.Major, s.Grade}, keySep)
}

// Values 按 StudentColumns 顺序返回绑定参数，可选字段为空串而不是 NULL
func (s StudentRecord) Values() []any {
	return []any{s.ID, s.Name, s.Class, s.College, s.Major, s.Grade}
}

// StudentColumns 分表列顺序
var StudentColumns = []string{"id", "name", "class", "college", "major", "grade"}
