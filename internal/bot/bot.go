package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

const historyLimit = 10

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Inspector runs listing analyses and answers follow-up queries about them.
type Inspector interface {
	AnalyzeURL(ctx context.Context, url string) (*listing.AnalysisReport, error)
	Analyze(ctx context.Context, sourceURL string, raw []byte, fetch inspect.ImageFetcher) (*listing.AnalysisReport, error)
	SaveUserAnalysis(ctx context.Context, userID int64, report *listing.AnalysisReport)
	History(ctx context.Context, userID int64, limit int) ([]storage.UserAnalysis, error)
	Similar(ctx context.Context, id string, limit int) (*listing.AdRecord, listing.ComparableSet, error)
	PriceDetails(ctx context.Context, id string) (*listing.AdRecord, listing.PriceAnalysis, error)
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg        BotAPI
	state     BotState
	inspector Inspector
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, inspector Inspector) *Bot {
	bot := &Bot{
		tg:        tg,
		inspector: inspector,
	}
	bot.state = bot.NewBotState()
	return bot
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var msg SessionMessage

	switch {
	case update.CallbackQuery != nil:
		msg = SessionMessage{Type: "callback", Ctx: ctx, CallbackQuery: update.CallbackQuery}
	case update.Message != nil && update.Message.From != nil:
		log.Info().Str("text", update.Message.Text).Str("caption", update.Message.Caption).Msg("got message")
		msgType := "text"
		if update.Message.Document != nil {
			msgType = "document"
		}
		msg = SessionMessage{Type: msgType, Ctx: ctx, Message: update.Message}
	default:
		return
	}

	userId := update.SentFrom().ID
	session := b.state.getUserSession(userId)
	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case "document":
		b.handleDocumentMessage(ctx, session, msg.Message)
	case "text":
		b.handleTextMessage(ctx, session, msg.Message)
	}
}

func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, session, text)
		return
	}

	switch text {
	case BtnAnalyze:
		session.reply(MsgSendLink)
		return
	case BtnHistory:
		b.handleHistory(ctx, session)
		return
	case BtnHelp:
		session.reply(MsgHelp)
		return
	}

	if url := findListingURL(text); url != "" {
		b.analyzeListing(ctx, session, url)
		return
	}

	session.reply(MsgUnknownInput)
}

// handleCommand processes bot commands.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, text string) {
	command, args := parseCommand(text)

	switch command {
	case "/start":
		keyboard := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnAnalyze)),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(BtnHistory),
				tgbotapi.NewKeyboardButton(BtnHelp),
			),
		)
		keyboard.ResizeKeyboard = true
		session.replyWithMarkup(MsgWelcome, keyboard)
	case "/help":
		session.reply(MsgHelp)
	case "/history":
		b.handleHistory(ctx, session)
	case "/analyze":
		var url string
		if len(args) > 0 {
			url = findAnyURL(args[0])
		}
		if url == "" {
			session.reply(MsgAnalyzeUsage)
			return
		}
		b.analyzeListing(ctx, session, url)
	default:
		session.reply(MsgUnknownInput)
	}
}

// analyzeListing runs the pipeline for url, keeping the user informed by
// editing a single status message.
func (b *Bot) analyzeListing(ctx context.Context, session *UserSession, url string) {
	b.runAnalysis(ctx, session, func(ctx context.Context) (*listing.AnalysisReport, error) {
		return b.inspector.AnalyzeURL(ctx, url)
	})
}

func (b *Bot) runAnalysis(
	ctx context.Context,
	session *UserSession,
	analyze func(ctx context.Context) (*listing.AnalysisReport, error),
) {
	status := session.reply(MsgAnalysisStarted)
	session.editMessage(status.MessageID, MsgStatusPrefix+MsgStatusFetching, nil)
	session.sendTypingAction()

	report, err := analyze(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("analysis failed")
		session.editMessage(status.MessageID, formatReplyText(MsgAnalysisFailed, analysisErrorText(err)), nil)
		return
	}

	session.editMessage(status.MessageID, MsgStatusPrefix+MsgStatusReporting, nil)
	keyboard := reportKeyboard(report)
	text := formatReport(report)
	if err := session.editMessage(status.MessageID, text, &keyboard); err != nil {
		// Markdown the API rejects still reaches the user as plain text
		msg := tgbotapi.NewMessage(session.userId, plainText(text))
		msg.DisableWebPagePreview = true
		msg.ReplyMarkup = keyboard
		session.replyWithMessage(msg)
	}

	b.inspector.SaveUserAnalysis(ctx, session.userId, report)
}

func analysisErrorText(err error) string {
	switch {
	case errors.Is(err, fetch.ErrGone):
		return MsgListingGone
	case errors.Is(err, listing.ErrInputUnavailable):
		return MsgInputUnavailable
	default:
		return escapeMarkdown(err.Error())
	}
}

func reportKeyboard(report *listing.AnalysisReport) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnFindSimilar, "find_similar:"+report.AdID),
			tgbotapi.NewInlineKeyboardButtonData(BtnPriceDetails, "price_details:"+report.AdID),
		),
	}
	if report.SourceURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(BtnOpen, report.SourceURL),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleDocumentMessage analyzes a saved listing page. The caption must carry
// the listing URL so the dialect and stable id can be derived.
func (b *Bot) handleDocumentMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	url := findAnyURL(message.Caption)
	if url == "" {
		session.reply(MsgDocumentNeedsURL)
		return
	}

	raw, err := downloadDocument(ctx, b.tg.GetFileDirectURL, message.Document)
	switch {
	case errors.Is(err, errDocumentNotHTML):
		session.reply(MsgDocumentNotHTML)
		return
	case errors.Is(err, errDocumentTooLarge):
		session.reply(MsgDocumentTooLarge, maxDocumentMB)
		return
	case err != nil:
		log.Error().Err(err).Int64("userId", session.userId).Msg("failed to download document")
		session.reply(MsgDocumentReadError, escapeMarkdown(err.Error()))
		return
	}

	b.runAnalysis(ctx, session, func(ctx context.Context) (*listing.AnalysisReport, error) {
		return b.inspector.Analyze(ctx, url, raw, nil)
	})
}

func (b *Bot) handleHistory(ctx context.Context, session *UserSession) {
	items, err := b.inspector.History(ctx, session.userId, historyLimit)
	if err != nil {
		session.replyWithError(err)
		return
	}
	if len(items) == 0 {
		session.reply(MsgNoHistory)
		return
	}
	session._reply(formatHistory(items), nil)
}

// handleCallbackQuery handles inline keyboard button presses.
func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.tg.Request(callback); err != nil {
		log.Debug().Err(err).Msg("failed to answer callback")
	}

	action, adID, ok := strings.Cut(query.Data, ":")
	if !ok || adID == "" {
		log.Warn().Str("data", query.Data).Msg("malformed callback data")
		session.reply(MsgCallbackError)
		return
	}

	switch action {
	case "find_similar":
		b.handleFindSimilar(ctx, session, adID)
	case "price_details":
		b.handlePriceDetails(ctx, session, adID)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown callback action")
		session.reply(MsgCallbackError)
	}
}

func (b *Bot) handleFindSimilar(ctx context.Context, session *UserSession, adID string) {
	_, set, err := b.inspector.Similar(ctx, adID, 0)
	switch {
	case errors.Is(err, inspect.ErrNotFound):
		session.reply(MsgAdNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("adId", adID).Msg("similar search failed")
		session.reply(MsgSearchError, escapeMarkdown(err.Error()))
		return
	}

	if len(set.Records) == 0 {
		session.reply(MsgNoSimilar)
		return
	}
	session._reply(formatSimilar(set.Records), nil)
}

func (b *Bot) handlePriceDetails(ctx context.Context, session *UserSession, adID string) {
	rec, price, err := b.inspector.PriceDetails(ctx, adID)
	switch {
	case errors.Is(err, inspect.ErrNotFound):
		session.reply(MsgAdNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("adId", adID).Msg("price details failed")
		session.reply(MsgSearchError, escapeMarkdown(err.Error()))
		return
	}
	session._reply(formatPriceDetails(rec, price), nil)
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}
