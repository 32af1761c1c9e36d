package slots

import "bookcal/internal/models"

// SlotInfo is a simplified representation for API clients.
type SlotInfo struct {
	Start string `json:"start"` // "10:00"
	End   string `json:"end"`   // "10:30"
}

// ToSlotInfo pairs each start with its end for a booking of duration minutes.
func ToSlotInfo(starts []string, duration int) []SlotInfo {
	result := make([]SlotInfo, 0, len(starts))
	for _, s := range starts {
		start, err := models.ParseClock(s)
		if err != nil {
			continue
		}
		result = append(result, SlotInfo{
			Start: s,
			End:   models.FormatClock(start + duration),
		})
	}
	return result
}
