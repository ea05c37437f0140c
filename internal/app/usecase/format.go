package usecase

import (
	"fmt"
	"strings"

	"github.com/fardannozami/amchegoa/internal/domain"
)

// FormatOutcome renders a workflow outcome as a chat/terminal message.
func FormatOutcome(o Outcome) string {
	sb := strings.Builder{}
	switch o.State {
	case StateInvalid:
		if o.Result != nil && o.Result.IsAiGenerated {
			sb.WriteString("🤖 AI Image Detected!\n")
		} else {
			sb.WriteString("❌ Invalid Report\n")
		}
		sb.WriteString(o.Message)
		if o.Warnings > 0 {
			sb.WriteString(fmt.Sprintf("\n⚠️ Warning %d/%d", o.Warnings, domain.WarningThreshold))
		}
	case StateEmergency:
		sb.WriteString("🚨 EMERGENCY\n")
		if o.Report != nil {
			sb.WriteString(fmt.Sprintf("Alerting %s!\n📍 %.4f, %.4f", o.Report.Authority, o.Report.Lat, o.Report.Lng))
		}
		if o.Result != nil && o.Result.PointsDeducted {
			sb.WriteString("\n" + o.Result.Description)
		}
	case StateSuccess:
		sb.WriteString("✅ Report Filed!\n")
		if o.Report != nil {
			sb.WriteString(fmt.Sprintf("Category: %s\nAuthority: %s\nLocation: %.4f, %.4f\n",
				o.Report.Category, o.Report.Authority, o.Report.Lat, o.Report.Lng))
			sb.WriteString(fmt.Sprintf("+%d Points 🎉", o.Report.PointsEarned))
		}
	case StateError:
		sb.WriteString("⚠️ ")
		sb.WriteString(o.Message)
	case StateAnalyzing:
		sb.WriteString("Analyzing with AI...")
	default:
		sb.WriteString("Ready. Send a photo of a civic issue.")
	}
	return sb.String()
}

func FormatHistory(reports []domain.Report) string {
	if len(reports) == 0 {
		return "📋 No reports filed yet.\nYour submitted reports will appear here."
	}
	sb := strings.Builder{}
	sb.WriteString("📋 History\n")
	for i, r := range reports {
		date := "Date unavailable"
		if !r.Timestamp.IsZero() {
			date = r.Timestamp.Format("02-01-2006")
		}
		sb.WriteString(fmt.Sprintf("\n%d. [%s] %s - %s (%s)", i+1, r.Status, r.Category, r.Authority, date))
		if r.Description != "" {
			sb.WriteString("\n   " + r.Description)
		}
	}
	return sb.String()
}

func FormatProfile(p *Profile) string {
	return fmt.Sprintf("👤 %s\n✉️ %s\n📍 %s\n⭐ %d points\n📄 %d reports\n⚠️ Warnings %d/%d",
		p.User.Name, p.User.Email, p.User.Location, p.Points, p.ReportsCount, p.Warnings, domain.WarningThreshold)
}

func FormatRewards(o *RewardsOverview) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("🎁 Rewards (you have %d points)\n", o.Points))
	for _, r := range o.Rewards {
		status := "✅ available"
		if !r.Affordable {
			status = fmt.Sprintf("🔒 %d more points", r.Missing)
		}
		sb.WriteString(fmt.Sprintf("\n- %s: %d pts (%s)", r.Title, r.Cost, status))
	}
	return sb.String()
}
