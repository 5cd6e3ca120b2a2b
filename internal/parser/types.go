package parser

// Field 解析后的内部字段名
type Field string

const (
	FieldClass     Field = "class"
	FieldID        Field = "id"
	FieldName      Field = "name"
	FieldCollege   Field = "college"
	FieldMajor     Field = "major"
	FieldGrade     Field = "grade"
	FieldCourse    Field = "course"
	FieldScore     Field = "score"
	FieldTeacherID Field = "teacher_id"
)

// Column 表头列定义
type Column struct {
	Field    Field
	Header   string // 表头文字（精确匹配，不区分大小写）
	Required bool
}

// Result 单个工作表的解析结果
type Result[T any] struct {
	SheetName     string `json:"sheetName"`
	Records       []T    `json:"-"`
	TotalRows     int    `json:"totalRows"`     // 表头之后的行数
	SkippedRows   int    `json:"skippedRows"`   // 空行或缺少学号/姓名
	DuplicateRows int    `json:"duplicateRows"` // 组合键重复被丢弃
}
