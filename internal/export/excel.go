package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// featureSheetName 特征导出工作表名
const featureSheetName = "Tremor Features"

// featureBaseHeader 固定前缀列（特征列按名称排序追加在其后，Error 列始终最后）
var featureBaseHeader = []string{"Sensor", "Axis", "Window"}

// GenerateFeatureWorkbook 将特征表导出为 Excel 工作簿
// 特征列为所有记录特征名的并集（按字典序），错误行的特征单元格留空
func GenerateFeatureWorkbook(table models.FeatureTable) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	index, err := f.NewSheet(featureSheetName)
	if err != nil {
		f.Close() // Close on error
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	featureNames := featureColumns(table.Records)
	headers := make([]string, 0, len(featureBaseHeader)+len(featureNames)+1)
	headers = append(headers, featureBaseHeader...)
	headers = append(headers, featureNames...)
	headers = append(headers, "Error")

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(featureSheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(featureSheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 设置列宽：固定列较窄，特征列统一宽度，Error 列最宽
	for i := 0; i < len(headers); i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		width := 18.0
		switch {
		case i < len(featureBaseHeader):
			width = 14
		case i == len(headers)-1:
			width = 36
		}
		if err := f.SetColWidth(featureSheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据
	for rowIdx, rec := range table.Records {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）

		if err := setCellValue(f, 1, row, rec.Sensor); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
		}
		if err := setCellValue(f, 2, row, rec.Axis); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
		}
		if err := setCellValue(f, 3, row, rec.Window); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
		}

		for colIdx, name := range featureNames {
			value, ok := rec.Features[name]
			if !ok {
				continue
			}
			if err := setCellValue(f, len(featureBaseHeader)+colIdx+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
			}
		}

		if err := setCellValue(f, len(headers), row, rec.Error); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(featureSheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	// Write to bytes buffer
	// Note: File must remain open during Write operation
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

// featureColumns 汇总所有记录的特征名并集并按字典序排序
func featureColumns(records []models.FeatureRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for name := range rec.Features {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setCellValue 设置单元格值
func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(featureSheetName, cell, value)
}
