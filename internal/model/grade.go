package model

// GradeRecord 成绩表中的一行（课程成绩导入）
type GradeRecord struct {
	ID        string `json:"id"`        // 学号
	Name      string `json:"name"`      // 姓名
	Class     string `json:"class"`     // 班级
	Course    string `json:"course"`    // 课程名称
	Score     string `json:"score"`     // 成绩
	Grade     string `json:"grade"`     // 年级
	Major     string `json:"major"`     // 专业
	TeacherID string `json:"teacherId"` // 任课教师
}

func (g GradeRecord) Values() []any {
	return []any{g.ID, g.Name, g.Class, g.Course, g.Score, g.Grade, g.Major, g.TeacherID}
}

// CanonicalTable 统一的学生表
const CanonicalTable = "StudentInfo"

// CanonicalColumns StudentInfo 的八列标准结构
var CanonicalColumns = []string{"id", "name", "class", "course", "score", "grade", "major", "teacher_id"}
