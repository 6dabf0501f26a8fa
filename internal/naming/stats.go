package naming

// HistoryStats summarises a classified history for audit display.
type HistoryStats struct {
	Total     int
	Valid     int
	Spam      int
	Corrupted int
}

// CalculateStats counts entries by classification. The owner entry counts as
// valid. Spam parsed but failed verification; corrupted failed to download or
// parse.
func CalculateStats(entries []HistoryEntry) HistoryStats {
	stats := HistoryStats{Total: len(entries)}
	for _, e := range entries {
		switch {
		case e.Valid:
			stats.Valid++
		case e.Parsed():
			stats.Spam++
		default:
			stats.Corrupted++
		}
	}
	return stats
}
