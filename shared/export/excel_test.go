package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook_WriteAvailability(t *testing.T) {
	mon := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	days := []DayAvailability{
		{Date: mon, Slots: []string{"09:00", "10:00"}},
		{Date: mon.AddDate(0, 0, 1), Slots: []string{"09:30", "09:00"}},
		{Date: mon.AddDate(0, 0, 6), Closed: true},
	}

	w := NewWorkbook()
	defer w.Close()
	require.NoError(t, w.AddSheet("Staff 1 availability from 2026-02-16"))
	require.NoError(t, w.WriteAvailability(days))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.Len(t, sheets[0], 31)

	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "09:00", "09:30", "10:00"}, rows[0])
	assert.Equal(t, []string{"2026-02-16 Mon", "free", "", "free"}, rows[1])
	assert.Equal(t, []string{"2026-02-17 Tue", "free", "free"}, rows[2])
	assert.Equal(t, []string{"2026-02-22 Sun", "closed"}, rows[3])
}

func TestWorkbook_NoSheet(t *testing.T) {
	w := NewWorkbook()
	defer w.Close()
	assert.Error(t, w.WriteAvailability(nil))
}
