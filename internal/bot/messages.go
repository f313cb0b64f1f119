package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Неожиданная ошибка: %s`
	MsgUnknownInput  = "Отправьте ссылку на объявление с Авито, Auto.ru или Drom.ru."
	MsgSendLink      = "Пришлите ссылку на объявление, например:\n`https://auto.ru/cars/used/sale/...`"
	MsgAnalyzeUsage  = "Использование: `/analyze <ссылка на объявление>`"
)

const MsgWelcome = `
	🚗 *AutoInspect Bot*

	Помогаю оценить автомобиль по объявлению с площадок:

	• Авито • Auto.ru • Drom.ru

	*Что я умею:*
	🎨 Оценивать состояние по фотографиям
	💰 Сравнивать цену с похожими объявлениями
	🔍 Находить похожие варианты

	*Как начать:*
	Отправьте ссылку на объявление или нажмите кнопку ниже 👇
`

const MsgHelp = `
	*Как пользоваться ботом*

	1. Скопируйте ссылку на объявление (Авито, Auto.ru, Drom.ru).
	2. Отправьте её в чат или командой /analyze <ссылка>.
	3. Получите отчёт: данные объявления, оценку фото и цены.

	Если сайт не открывается для бота, сохраните страницу объявления как HTML и пришлите файлом, указав ссылку в подписи.

	/history — ваши последние анализы
`

// =============================================================================
// Analysis flow messages
// =============================================================================

const (
	MsgAnalysisStarted   = "🔍 *Начинаю анализ объявления...*"
	MsgStatusPrefix      = "🔍 *Анализ объявления:*\n"
	MsgStatusFetching    = "📦 Скачиваю данные и фотографии..."
	MsgStatusReporting   = "📊 Формирую отчёт..."
	MsgAnalysisFailed    = "❌ Ошибка анализа: %s"
	MsgInputUnavailable  = "не удалось получить данные объявления"
	MsgListingGone       = "объявление снято с публикации"
	MsgStoreUnavailable  = "⚠️ База объявлений недоступна, сравнение с рынком пропущено."
	MsgDocumentNeedsURL  = "Укажите ссылку на объявление в подписи к файлу."
	MsgDocumentTooLarge  = "Файл слишком большой (максимум %d МБ)."
	MsgDocumentNotHTML   = "Пришлите страницу объявления в формате HTML."
	MsgDocumentReadError = "Не удалось скачать файл: %s"
)

// =============================================================================
// Callback messages
// =============================================================================

const (
	MsgAdNotFound        = "Объявление не найдено. Проанализируйте его заново."
	MsgNoSimilar         = "🔍 Похожих объявлений не найдено"
	MsgSimilarHeader     = "🚗 *Найдены похожие варианты:*\n\n"
	MsgSearchError       = "❌ Ошибка поиска: %s"
	MsgCallbackError     = "❌ Произошла ошибка"
	MsgPriceDetailsTitle = "💰 *Детали цены:* %s"
)

// =============================================================================
// History messages
// =============================================================================

const (
	MsgNoHistory     = "У вас пока нет анализов. Отправьте ссылку на объявление."
	MsgHistoryHeader = "📊 *Ваши последние анализы:*\n\n"
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnAnalyze      = "🔍 Анализировать объявление"
	BtnHistory      = "📊 Мои анализы"
	BtnHelp         = "ℹ️ Помощь"
	BtnFindSimilar  = "🔍 Найти похожие"
	BtnPriceDetails = "💰 Детали цены"
	BtnOpen         = "Открыть"
)

// =============================================================================
// Report labels
// =============================================================================

var conditionLabels = map[string]string{
	"excellent":         "отличное",
	"good":              "хорошее",
	"fair":              "удовлетворительное",
	"needs attention":   "требует внимания",
	"insufficient data": "недостаточно данных",
}

var priceRecommendations = map[string]string{
	"excellent":  "✅ Отличная цена! Рекомендуем к покупке",
	"good":       "👍 Хорошая цена, можно торговаться",
	"fair":       "⚠️ Среднерыночная цена",
	"high":       "❌ Завышенная цена, торг обязателен",
	"overpriced": "🚨 Сильно завышена, ищите другие варианты",
}

const MsgPriceUnknown = "Не удалось оценить цену"

var gapLabels = map[string]string{
	"title":   "модель",
	"price":   "цена",
	"year":    "год",
	"mileage": "пробег",
	"region":  "регион",
	"images":  "фото",
}
