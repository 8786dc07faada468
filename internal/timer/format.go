package timer

import "fmt"

// FormatTime renders seconds as zero-padded MM:SS. Minutes are not wrapped at
// an hour.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// MinutesToSeconds converts a round time limit to countdown seconds.
func MinutesToSeconds(minutes int) int {
	return minutes * 60
}
