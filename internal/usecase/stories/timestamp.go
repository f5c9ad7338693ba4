package stories

import (
	"strconv"
	"strings"
	"time"
)

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// FormatLocalTimestamp renders t the way the classroom devices show submission
// times (Egyptian Arabic locale): "١٩‏/١٠‏/٢٠٢٦، ٣:٠٤:٠٥ م".
func FormatLocalTimestamp(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	period := "ص"
	if t.Hour() >= 12 {
		period = "م"
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(t.Day()))
	b.WriteString("‏/")
	b.WriteString(strconv.Itoa(int(t.Month())))
	b.WriteString("‏/")
	b.WriteString(strconv.Itoa(t.Year()))
	b.WriteString("، ")
	b.WriteString(strconv.Itoa(hour))
	b.WriteString(t.Format(":04:05"))
	b.WriteString(" ")
	b.WriteString(period)
	return arabicDigits.Replace(b.String())
}
