// Package drag maps pointer geometry on a day-column calendar to (date, time)
// candidates and drives the drag-to-reschedule preview and commit.
package drag

import (
	"math"

	"bookcal/internal/models"
)

// Layout describes how the calendar is rendered. Clients fetch it from the API so
// their geometry matches the one the server validates drops with.
type Layout struct {
	PixelsPerHour float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`
	StartHour     int     `yaml:"start_hour" json:"start_hour"`
	EndHour       int     `yaml:"end_hour" json:"end_hour"`
	// SidebarWidth is the width of the time gutter left of the day columns.
	SidebarWidth float64 `yaml:"sidebar_width" json:"sidebar_width"`
	// Reversed lays day columns out right-to-left: column 0 is rendered rightmost.
	Reversed     bool `yaml:"reversed" json:"reversed"`
	SnapInterval int  `yaml:"snap_interval" json:"snap_interval"`
}

// DefaultLayout returns the stock calendar layout.
func DefaultLayout() Layout {
	return Layout{
		PixelsPerHour: 60,
		StartHour:     8,
		EndHour:       20,
		SidebarWidth:  60,
		Reversed:      true,
		SnapInterval:  15,
	}
}

// Rect is a bounding rectangle in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a pointer position in client coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (l Layout) startMinutes() int { return l.StartHour * 60 }
func (l Layout) endMinutes() int   { return l.EndHour * 60 }

// PositionToMinutes maps a vertical position to minutes since midnight.
func (l Layout) PositionToMinutes(y, containerTop float64) float64 {
	if l.PixelsPerHour <= 0 {
		return float64(l.startMinutes())
	}
	return float64(l.startMinutes()) + (y-containerTop)/l.PixelsPerHour*60
}

// MinutesToPosition is the inverse of PositionToMinutes.
func (l Layout) MinutesToPosition(minutes int, containerTop float64) float64 {
	return containerTop + float64(minutes-l.startMinutes())/60*l.PixelsPerHour
}

// SnapToInterval rounds minutes to the nearest interval step counted from the
// start hour and clamps the result into the rendered range.
// A non-positive interval falls back to the layout's snap interval.
func (l Layout) SnapToInterval(minutes float64, interval int) int {
	if interval <= 0 {
		interval = l.SnapInterval
	}
	if interval <= 0 {
		interval = 15
	}

	lo := l.startMinutes()
	hi := l.endMinutes()
	if hi < lo {
		hi = lo
	}
	// Largest grid point inside the range, so snapping stays idempotent at the upper edge.
	hi = lo + (hi-lo)/interval*interval

	steps := math.Floor((minutes-float64(lo))/float64(interval) + 0.5)
	snapped := lo + int(steps)*interval
	return max(lo, min(hi, snapped))
}

// PositionToColumnIndex maps a horizontal position inside rect to a day column
// index in [0, columnCount). Returns -1 when there are no columns.
func (l Layout) PositionToColumnIndex(x float64, rect Rect, columnCount int) int {
	if columnCount <= 0 {
		return -1
	}
	width := rect.Width - l.SidebarWidth
	if width <= 0 {
		return 0
	}
	colWidth := width / float64(columnCount)

	raw := int(math.Floor((x - rect.Left - l.SidebarWidth) / colWidth))
	raw = max(0, min(columnCount-1, raw))
	if l.Reversed {
		raw = columnCount - 1 - raw
	}
	return raw
}

// ColumnCenter returns the x coordinate of the middle of column i.
func (l Layout) ColumnCenter(i int, rect Rect, columnCount int) float64 {
	if columnCount <= 0 {
		return rect.Left + l.SidebarWidth
	}
	colWidth := (rect.Width - l.SidebarWidth) / float64(columnCount)
	visual := i
	if l.Reversed {
		visual = columnCount - 1 - i
	}
	return rect.Left + l.SidebarWidth + (float64(visual)+0.5)*colWidth
}

// Target maps an element-top position to a column index and "HH:MM" time.
func (l Layout) Target(p Point, rect Rect, columnCount int) (int, string) {
	col := l.PositionToColumnIndex(p.X, rect, columnCount)
	minutes := l.SnapToInterval(l.PositionToMinutes(p.Y, rect.Top), l.SnapInterval)
	return col, models.FormatClock(minutes)
}
