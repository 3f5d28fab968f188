package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders report rows as CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("day,asset,net_amount\n")

	// Rows
	for _, p := range r.Points {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f\n",
			p.Day.Format(DayLayout),
			p.Asset,
			p.Net,
		))
	}

	return sb.String()
}
