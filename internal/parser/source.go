package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// loadRows 读取首个工作表的全部行（单元格显示文本）
// 文件在返回前关闭；缺失的行以 nil 表示。
func loadRows(path string) (string, [][]string, error) {
	if err := CheckExtension(path); err != nil {
		return "", nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		return loadXLS(path)
	case ".csv":
		return loadCSV(path)
	default:
		return loadXLSX(path)
	}
}

func loadXLSX(path string) (string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	// GetRows 按单元格数字格式输出显示文本
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return sheets[0], rows, nil
}

func loadXLS(path string) (string, [][]string, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open xls workbook: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	sheet, err := wb.GetSheet(0)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read first sheet: %w", err)
	}

	// GetNumberRows 为最大行号加一；中间缺失的行读出为空行
	total := sheet.GetNumberRows()
	rows := make([][]string, 0, total)
	for r := 0; r < total; r++ {
		row, err := sheet.GetRow(r)
		if err != nil {
			rows = append(rows, nil)
			continue
		}
		cols := row.GetCols()
		values := make([]string, len(cols))
		for c, cell := range cols {
			values[c] = toUTF8(cell.GetString())
		}
		rows = append(rows, values)
	}

	return sheet.GetName(), trimTrailingNil(rows), nil
}

func loadCSV(path string) (string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(decodeReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return name, rows, nil
}

// decodeReader 非 UTF-8 内容按 GB18030 解码（中文 Excel 导出的 CSV 默认 GBK）
func decodeReader(data []byte) *bytes.Reader {
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}
	decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil {
		return bytes.NewReader(bytes.ToValidUTF8(data, []byte("\uFFFD")))
	}
	return bytes.NewReader(decoded)
}

func toUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return decoded
}

func trimTrailingNil(rows [][]string) [][]string {
	for len(rows) > 0 && rows[len(rows)-1] == nil {
		rows = rows[:len(rows)-1]
	}
	return rows
}
