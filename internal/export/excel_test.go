package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/th1vairam/mHealthTools/internal/models"
)

func sampleTable() models.FeatureTable {
	return models.FeatureTable{
		Sensor: models.SensorAccelerometer,
		Records: []models.FeatureRecord{
			{
				Sensor:   models.SensorAccelerometer,
				Axis:     "x",
				Window:   0,
				Features: map[string]float64{"mean": 1.5, "rms": 2.0},
				Error:    "None",
			},
			{
				Sensor:   models.SensorAccelerometer,
				Axis:     "y",
				Window:   0,
				Features: map[string]float64{"mean": -1.0},
				Error:    "None",
			},
		},
	}
}

func TestGenerateFeatureWorkbook_HeaderAndRows(t *testing.T) {
	data, err := GenerateFeatureWorkbook(sampleTable())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	// 表头：固定列 + 排序后的特征列 + Error
	for i, want := range []string{"Sensor", "Axis", "Window", "mean", "rms", "Error"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		got, err := f.GetCellValue(featureSheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, "header column %d", i+1)
	}

	// 第一条记录
	for cell, want := range map[string]string{
		"A2": models.SensorAccelerometer,
		"B2": "x",
		"C2": "0",
		"D2": "1.5",
		"E2": "2",
		"F2": "None",
	} {
		got, err := f.GetCellValue(featureSheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, "cell %s", cell)
	}

	// 第二条记录没有 rms，特征单元格留空
	got, err := f.GetCellValue(featureSheetName, "E3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateFeatureWorkbook_ErrorRow(t *testing.T) {
	table := models.NewErrorTable(models.SensorGyroscope, models.ErrorMalformedGyroscope)

	data, err := GenerateFeatureWorkbook(table)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	// 错误行没有特征列，表头为固定列 + Error
	for i, want := range []string{"Sensor", "Axis", "Window", "Error"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		got, err := f.GetCellValue(featureSheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	window, err := f.GetCellValue(featureSheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "-1", window)

	errCell, err := f.GetCellValue(featureSheetName, "D2")
	require.NoError(t, err)
	assert.Equal(t, models.ErrorMalformedGyroscope, errCell)
}

func TestGenerateFeatureWorkbook_EmptyTable(t *testing.T) {
	data, err := GenerateFeatureWorkbook(models.FeatureTable{Sensor: models.SensorAccelerometer})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(featureSheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Sensor", got)
}
