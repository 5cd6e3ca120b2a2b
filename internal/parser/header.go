package parser

import "strings"

// MapHeader 根据表头定位列索引
// 匹配规则：去除首尾空白后精确比较，不区分大小写；同名列取第一个。
// 未找到的列索引为 -1；返回缺失的必填表头（按 columns 顺序）。
func MapHeader(header []string, columns []Column) (map[Field]int, []string) {
	index := make(map[Field]int, len(columns))
	var missing []string

	for _, col := range columns {
		index[col.Field] = -1
		for i, text := range header {
			if strings.EqualFold(strings.TrimSpace(text), col.Header) {
				index[col.Field] = i
				break
			}
		}
		if index[col.Field] < 0 && col.Required {
			missing = append(missing, col.Header)
		}
	}

	return index, missing
}

func requiredHeaders(columns []Column) []string {
	var out []string
	for _, col := range columns {
		if col.Required {
			out = append(out, col.Header)
		}
	}
	return out
}
