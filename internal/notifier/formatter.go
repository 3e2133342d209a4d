package notifier

import (
	"fmt"
	"html"
	"strings"

	"BandSentinel/internal/model"
)

// snapshot lists the series shown per profile, in display order.
var snapshot = []struct {
	name   string
	label  string
	format string
}{
	{model.PercentB, "%B", "%.2f"},
	{model.MFI, "MFI", "%.1f"},
	{model.IIP, "II%", "%+.2f"},
	{model.MACDHist, "MACD hist", "%+.2f"},
	{model.StochD, "%D", "%.1f"},
	{model.EMASlow, "EMA130", "%.0f"},
}

// FormatSignalReport renders one evaluation as a Telegram HTML message.
func FormatSignalReport(r Report) string {
	var b strings.Builder
	ind := r.Series
	if ind == nil || ind.Len() == 0 {
		return fmt.Sprintf("⚠️ <b>%s</b>: no data", html.EscapeString(r.Profile))
	}
	last := ind.Bars[ind.Len()-1]

	title := ind.Code
	if ind.Name != "" && ind.Name != ind.Code {
		title = fmt.Sprintf("%s (%s)", ind.Name, ind.Code)
	}
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n", html.EscapeString(title), last.Date.Format(model.DateLayout)))
	b.WriteString(fmt.Sprintf("Strategy: %s\n\n", html.EscapeString(r.Profile)))
	b.WriteString(fmt.Sprintf("Close: %.2f (%+.2f%%)\n", last.Close, last.ChangePct))

	for _, s := range snapshot {
		if v, ok := ind.Last(s.name); ok {
			b.WriteString(fmt.Sprintf("%s: "+s.format+"\n", s.label, v))
		}
	}

	if len(r.Signals) == 0 {
		b.WriteString("\nNo signal")
		return b.String()
	}
	b.WriteString("\n<b>Signals:</b>\n")
	for _, sig := range r.Signals {
		icon := "🟢"
		if sig.Direction == model.Sell {
			icon = "🔴"
		}
		b.WriteString(fmt.Sprintf("%s %s %s @ %.2f\n", icon, sig.Date.Format(model.DateLayout), sig.Direction, sig.Close))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "Commands:\n" +
		"• /signals &lt;code|name&gt; - evaluate one instrument now\n" +
		"• /history &lt;code|name&gt; - signals of the last 30 days\n" +
		"• /status - last price update"
}
