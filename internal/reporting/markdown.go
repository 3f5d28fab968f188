package reporting

import (
	"fmt"
	"strings"
	"time"

	"tron-netflow/internal/tronaddr"
)

// addrEncoder caches base58check encodings across rendered reports; the same
// wallet and contract repeat on every render.
var addrEncoder = tronaddr.NewEncoder()

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Net Flow Report: %s\n\n", r.Asset))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Wallet: `%s` (`%s`)\n\n", addrEncoder.Base58(r.Wallet), r.Wallet.Hex()))
	sb.WriteString(fmt.Sprintf("Contract: `%s` (`%s`)\n\n", addrEncoder.Base58(r.Contract), r.Contract.Hex()))

	if len(r.Points) == 0 {
		sb.WriteString("No matching transfers.\n")
		return sb.String()
	}

	// Daily rows
	sb.WriteString("## Daily Net Flow\n\n")
	sb.WriteString("| Day | Asset | Net Amount |\n")
	sb.WriteString("|-----|-------|------------|\n")
	for _, p := range r.Points {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.6f |\n",
			p.Day.Format(DayLayout), p.Asset, p.Net))
	}
	sb.WriteString("\n")

	// Summary
	sb.WriteString(fmt.Sprintf("Days with activity: %d | Total net: %.6f %s\n",
		len(r.Points), r.TotalNet(), r.Asset))

	return sb.String()
}
