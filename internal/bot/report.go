package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/storage"
)

// formatReport renders an analysis report as a Markdown chat message.
func formatReport(r *listing.AnalysisReport) string {
	year := "не указан"
	if r.Facts.YearKnown {
		year = strconv.Itoa(r.Facts.Year)
	}

	text := formatReplyText(`
		🚗 *%s*

		💰 *Цена:* %s
		📅 *Год:* %s
		🏁 *Пробег:* %s
		📍 *Регион:* %s
		📷 *Фото:* %s

		⭐ *ОБЩАЯ ОЦЕНКА:* %d/100

		🎨 *Состояние по фото:*
		%s

		💰 *Анализ цены:*
		• %s

		💡 *Рекомендации:*
		%s
	`,
		escapeMarkdown(r.Facts.Title),
		formatPrice(r.Facts.Price),
		year,
		formatMileage(r.Facts.Mileage),
		escapeMarkdown(r.Facts.Region),
		pluralize("фотография", "фотографии", "фотографий", len(r.Facts.ImageURLs)),
		r.OverallScore,
		formatCondition(r.Condition),
		formatPriceAnalysis(r.Price),
		formatRecommendations(r),
	)

	if r.StoreUnavailable {
		text += "\n\n" + MsgStoreUnavailable
	}
	return text
}

func formatCondition(c listing.ConditionAssessment) string {
	if c.InsufficientData {
		return "• Недостаточно данных: ни одно фото не удалось проанализировать"
	}

	var uniformity, edges, smoothness float64
	for _, fs := range c.Images {
		uniformity += fs.ColorUniformity
		edges += fs.EdgeQuality
		smoothness += fs.TextureSmoothness
	}
	n := float64(len(c.Images))
	if n == 0 {
		n = 1
	}

	lines := []string{
		fmt.Sprintf("• Оценка: %d/100 (%s)", c.Score, conditionLabels[c.Label]),
		fmt.Sprintf("• Равномерность цвета: %.1f%%", uniformity/n),
		fmt.Sprintf("• Чёткость деталей: %.1f%%", edges/n),
		fmt.Sprintf("• Гладкость поверхности: %.1f%%", smoothness/n),
		fmt.Sprintf("• Проанализировано: %d фото", c.ImagesAnalyzed),
	}
	if c.ImagesRejected > 0 {
		lines = append(lines, fmt.Sprintf("• Не удалось обработать: %d фото", c.ImagesRejected))
	}
	return strings.Join(lines, "\n")
}

func formatPriceAnalysis(p listing.PriceAnalysis) string {
	text, ok := priceRecommendations[p.Recommendation]
	if !ok {
		return MsgPriceUnknown
	}
	return fmt.Sprintf("%s (%+.1f%% к средней %s по %s)",
		text, p.DiffPercent, formatPrice(p.MarketAverage),
		pluralize("объявлению", "объявлениям", "объявлениям", p.ComparableCount))
}

func formatRecommendations(r *listing.AnalysisReport) string {
	var tips []string

	switch {
	case r.Condition.InsufficientData:
		tips = append(tips, "Попросите у продавца больше фотографий")
	case r.Condition.Label == listing.LabelNeedsAttention || r.Condition.Label == listing.LabelFair:
		tips = append(tips, "Осмотрите кузов лично или на диагностике")
	}

	switch r.Price.Recommendation {
	case listing.PriceHigh, listing.PriceOverpriced:
		tips = append(tips, "Торгуйтесь: цена выше рынка")
	case listing.PriceExcellent:
		tips = append(tips, "Цена заметно ниже рынка, проверьте историю автомобиля")
	}

	if r.Facts.AgeYears > 12 {
		tips = append(tips, "Автомобиль старше 12 лет, проверьте кузов на коррозию")
	}

	var gaps []string
	for _, g := range r.Facts.Gaps {
		if label, ok := gapLabels[g]; ok {
			gaps = append(gaps, label)
		}
	}
	if len(gaps) > 0 {
		tips = append(tips, "Не найдено в объявлении: "+strings.Join(gaps, ", "))
	}

	if len(tips) == 0 {
		tips = append(tips, "Серьёзных замечаний нет")
	}
	for i, t := range tips {
		tips[i] = "• " + t
	}
	return strings.Join(tips, "\n")
}

// formatSimilar renders a comparable set as a numbered list.
func formatSimilar(records []listing.AdRecord) string {
	var sb strings.Builder
	sb.WriteString(MsgSimilarHeader)
	for i, ad := range records {
		score := "н/д"
		if ad.OverallScore != nil {
			score = strconv.Itoa(*ad.OverallScore)
		}
		sb.WriteString(fmt.Sprintf("*%d. %s*\n", i+1, escapeMarkdown(ad.Title)))
		sb.WriteString(fmt.Sprintf("💰 %s\n", formatPrice(ad.Price)))
		sb.WriteString(fmt.Sprintf("📅 %d г. | 🏁 %s\n", ad.Year, formatMileage(ad.Mileage)))
		sb.WriteString(fmt.Sprintf("📍 %s\n", escapeMarkdown(ad.Region)))
		sb.WriteString(fmt.Sprintf("⭐ Оценка: %s\n", score))
		sb.WriteString(fmt.Sprintf("🔗 [%s](%s)\n\n", BtnOpen, markdownLinkURL(ad.URL)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatPriceDetails renders the price judgement of a stored listing.
func formatPriceDetails(rec *listing.AdRecord, p listing.PriceAnalysis) string {
	if p.Recommendation == listing.PriceUnknown || p.ComparableCount == 0 {
		return formatReplyText(`
			`+MsgPriceDetailsTitle+`

			Цена объявления: %s
			%s: недостаточно похожих объявлений с ценой.
		`, escapeMarkdown(rec.Title), formatPrice(rec.Price), MsgPriceUnknown)
	}

	return formatReplyText(`
		`+MsgPriceDetailsTitle+`

		Цена объявления: %s
		Средняя цена похожих: %s
		Разница: %+.1f%%
		Сравнение по: %s

		%s
	`,
		escapeMarkdown(rec.Title),
		formatPrice(rec.Price),
		formatPrice(p.MarketAverage),
		p.DiffPercent,
		pluralize("объявлению", "объявлениям", "объявлениям", p.ComparableCount),
		priceRecommendations[p.Recommendation],
	)
}

// formatHistory renders the latest analyses of a user.
func formatHistory(items []storage.UserAnalysis) string {
	var sb strings.Builder
	sb.WriteString(MsgHistoryHeader)
	for i, ua := range items {
		sb.WriteString(fmt.Sprintf("%d. ⭐ %d/100 — %s\n%s\n",
			i+1, ua.OverallScore, ua.CreatedAt.Format("02.01.2006 15:04"), escapeMarkdown(ua.URL)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
