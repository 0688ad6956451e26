package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/db"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/github"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/playlist"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/utils"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gopkg.in/tucnak/telebot.v2"
)

type Handler interface {
	Start(m *telebot.Message)
	Help(m *telebot.Message)
	HandleSetToken(m *telebot.Message)
	HandleClearToken(m *telebot.Message)
	HandleAdd(m *telebot.Message)
	HandleList(m *telebot.Message)
	HandleDelete(m *telebot.Message)
	HandleClear(m *telebot.Message)
	HandleText(m *telebot.Message)
	HandleCallback(c *telebot.Callback)
}

const (
	listPageSize   = 20
	deletePageSize = 10

	// Anything shorter cannot be a real GitHub token.
	minTokenLength = 20

	titleButtonMax = 30
)

const conflictMessage = "⚠️ The playlist changed while I was editing it. Please re-issue the command."

type handler struct {
	db    db.Database
	store playlist.Store
	bot   *telebot.Bot
	log   *zap.Logger

	replyFunc         func(m *telebot.Message, text string) error
	sendFunc          func(m *telebot.Message, text string, markup *telebot.ReplyMarkup) error
	editFunc          func(m *telebot.Message, text string, markup *telebot.ReplyMarkup) error
	respondCallbackFn func(c *telebot.Callback, text string, showAlert bool) error
	deleteMessageFn   func(m *telebot.Message) error
}

func NewHandler(database db.Database, store playlist.Store, log *zap.Logger, bot *telebot.Bot) Handler {
	return &handler{
		db:    database,
		store: store,
		log:   log,
		bot:   bot,
		replyFunc: func(m *telebot.Message, text string) error {
			_, err := bot.Reply(m, text)
			return err
		},
		sendFunc: func(m *telebot.Message, text string, markup *telebot.ReplyMarkup) error {
			if markup != nil {
				_, err := bot.Reply(m, text, markup)
				return err
			}
			_, err := bot.Reply(m, text)
			return err
		},
		editFunc: func(m *telebot.Message, text string, markup *telebot.ReplyMarkup) error {
			if markup != nil {
				_, err := bot.Edit(m, text, markup)
				return err
			}
			_, err := bot.Edit(m, text)
			return err
		},
		respondCallbackFn: func(c *telebot.Callback, text string, showAlert bool) error {
			resp := &telebot.CallbackResponse{
				Text:      text,
				ShowAlert: showAlert,
			}
			return bot.Respond(c, resp)
		},
		deleteMessageFn: func(m *telebot.Message) error {
			return bot.Delete(m)
		},
	}
}

func (h *handler) reply(m *telebot.Message, text string) {
	if err := h.replyFunc(m, text); err != nil {
		h.log.Error("Failed to send reply", zap.Error(err))
	}
}

func (h *handler) send(m *telebot.Message, text string, markup *telebot.ReplyMarkup) {
	if err := h.sendFunc(m, text, markup); err != nil {
		h.log.Error("Failed to send message", zap.Error(err))
	}
}

func (h *handler) edit(m *telebot.Message, text string, markup *telebot.ReplyMarkup) {
	if err := h.editFunc(m, text, markup); err != nil {
		h.log.Error("Failed to edit message", zap.Error(err))
	}
}

func (h *handler) respond(c *telebot.Callback, text string, showAlert bool) {
	if err := h.respondCallbackFn(c, text, showAlert); err != nil {
		h.log.Error("Failed to answer callback", zap.Error(err))
	}
}

// guard keeps a panicking update from taking the process down; the
// conversation just gets a generic failure message.
func (h *handler) guard(m *telebot.Message) {
	if r := recover(); r != nil {
		h.log.Error("Recovered from panic while handling message", zap.Any("panic", r))
		if m != nil {
			h.reply(m, "❌ Something went wrong. Please try again.")
		}
	}
}

func (h *handler) guardCallback(c *telebot.Callback) {
	if r := recover(); r != nil {
		h.log.Error("Recovered from panic while handling callback", zap.Any("panic", r))
		if c != nil {
			h.respond(c, "❌ Something went wrong. Please try again.", true)
		}
	}
}

func (h *handler) Start(m *telebot.Message) {
	h.reply(m, `🎬 M3U Playlist Manager Bot

Welcome! I can help you manage your M3U playlist directly from Telegram.

Commands:
/settoken - Save your GitHub token
/add - Add a video URL
/list - List all videos
/delete - Delete videos
/clear - Clear all videos
/help - Show this help

Quick Add:
Just send me a video URL and I'll add it!

Format: https://example.com/video.mp4
Or with title: My Video | https://example.com/video.mp4`)
}

func (h *handler) Help(m *telebot.Message) {
	h.reply(m, `How to use:

1️⃣ Setup (one-time):
   /settoken
   Then send your GitHub token

2️⃣ Add videos:
   Just send video URLs:
   https://example.com/video.mp4

   Or with custom title:
   My Video | https://example.com/video.mp4

3️⃣ Manage:
   /list - See all videos
   /delete - Delete specific videos
   /clear - Clear all videos
   /cleartoken - Remove saved token

Get a GitHub token:
https://github.com/settings/tokens/new
Select "repo" scope → Generate → Copy → Send to me`)
}

func (h *handler) HandleSetToken(m *telebot.Message) {
	defer h.guard(m)
	ctx := context.Background()

	session, err := h.db.GetSession(ctx, m.Chat.ID)
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		h.reply(m, "❌ Something went wrong. Please try again.")
		return
	}

	session.AwaitingToken = true
	session.PendingPage = nil
	session.PendingDeleteIndex = nil
	if err := h.db.SaveSession(ctx, session); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
		h.reply(m, "❌ Something went wrong. Please try again.")
		return
	}

	h.reply(m, "🔑 Please send me your GitHub Personal Access Token.\n\n"+
		"Get it from: https://github.com/settings/tokens/new\n"+
		"Select \"repo\" scope and generate.\n\n"+
		"⚠️ I'll delete your message right after saving the token.")
}

func (h *handler) HandleClearToken(m *telebot.Message) {
	defer h.guard(m)

	if err := h.db.DeleteToken(context.Background(), m.Chat.ID); err != nil {
		h.log.Error("Failed to delete token", zap.Error(err))
		h.reply(m, "❌ Failed to clear token. Please try again.")
		return
	}

	h.reply(m, "✅ Token cleared. Use /settoken to add a new one.")
}

func (h *handler) HandleAdd(m *telebot.Message) {
	h.reply(m, "📹 Send me the video URL:\n\n"+
		"Format 1: https://example.com/video.mp4\n"+
		"Format 2: My Video | https://example.com/video.mp4")
}

func (h *handler) HandleList(m *telebot.Message) {
	defer h.guard(m)
	ctx := context.Background()

	token, ok := h.requireToken(ctx, m)
	if !ok {
		return
	}

	videos, err := h.store.List(ctx, token)
	if err != nil {
		h.log.Error("Failed to fetch playlist", zap.Error(err))
		h.reply(m, "❌ Error fetching videos: "+err.Error())
		return
	}

	if len(videos) == 0 {
		h.reply(m, "📭 No videos in playlist yet.")
		return
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("📹 Your Playlist (%d videos):\n\n", len(videos)))

	shown := len(videos)
	if shown > listPageSize {
		shown = listPageSize
	}
	for i := 0; i < shown; i++ {
		response.WriteString(fmt.Sprintf("%d. %s\n", i+1, videos[i].Title))
	}

	if len(videos) > listPageSize {
		response.WriteString(fmt.Sprintf("\n... and %d more\n", len(videos)-listPageSize))
	}

	response.WriteString("\nUse /delete to remove videos")

	h.reply(m, response.String())
}

func (h *handler) HandleDelete(m *telebot.Message) {
	defer h.guard(m)
	ctx := context.Background()

	token, ok := h.requireToken(ctx, m)
	if !ok {
		return
	}

	videos, err := h.store.List(ctx, token)
	if err != nil {
		h.log.Error("Failed to fetch playlist", zap.Error(err))
		h.reply(m, "❌ Error fetching videos: "+err.Error())
		return
	}

	if len(videos) == 0 {
		h.reply(m, "📭 No videos to delete.")
		return
	}

	text, markup := renderDeletePage(videos, 0)
	h.send(m, text, markup)
	h.savePendingPage(ctx, m.Chat.ID, 0)
}

func (h *handler) HandleClear(m *telebot.Message) {
	defer h.guard(m)

	if _, ok := h.requireToken(context.Background(), m); !ok {
		return
	}

	markup := &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{
			{Text: "✅ Yes, Clear All", Data: "clear_confirm"},
			{Text: "❌ Cancel", Data: "clear_cancel"},
		}},
	}

	h.send(m, "⚠️ Clear ALL videos?\n\nThis will delete your entire playlist!", markup)
}

func (h *handler) HandleText(m *telebot.Message) {
	defer h.guard(m)

	text := strings.TrimSpace(m.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}

	ctx := context.Background()

	session, err := h.db.GetSession(ctx, m.Chat.ID)
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		h.reply(m, "❌ Something went wrong. Please try again.")
		return
	}

	if session.AwaitingToken {
		h.captureToken(ctx, m, session)
		return
	}

	if !utils.HasURLScheme(text) {
		return
	}

	token, ok := h.requireToken(ctx, m)
	if !ok {
		return
	}

	title, url := utils.ParseVideoInput(text)
	if !strings.HasPrefix(url, "http") {
		h.reply(m, "❌ Invalid URL format")
		return
	}

	h.reply(m, "⏳ Adding video to playlist...")

	if err := h.store.Append(ctx, token, title, url); err != nil {
		if errors.Is(err, github.ErrConflict) {
			h.reply(m, conflictMessage)
			return
		}
		h.log.Error("Failed to append video", zap.Error(err))
		h.reply(m, "❌ Error: "+err.Error())
		return
	}

	h.reply(m, fmt.Sprintf("✅ Video added successfully!\n\n📹 Title: %s\n🔗 URL: %s\n\nPlaylist will update in ~30 seconds.", title, url))
}

func (h *handler) captureToken(ctx context.Context, m *telebot.Message, session db.Session) {
	token := strings.TrimSpace(m.Text)
	if len(token) < minTokenLength {
		// The awaiting flag stays set so the next message is still
		// treated as a token attempt.
		h.reply(m, "❌ Invalid token. Please try again with /settoken")
		return
	}

	if err := h.db.PutToken(ctx, m.Chat.ID, token); err != nil {
		h.log.Error("Failed to store token", zap.Error(err))
		h.reply(m, "❌ Failed to save token. Please try again.")
		return
	}

	session.AwaitingToken = false
	if err := h.db.SaveSession(ctx, session); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
	}

	// Best effort: keep the credential out of the chat transcript.
	if err := h.deleteMessageFn(m); err != nil {
		h.log.Warn("Failed to delete token message", zap.Error(err))
	}

	h.reply(m, "✅ Token saved successfully!\n\nNow you can send video URLs directly and I'll add them to your playlist.")
}

// requireToken resolves the conversation's stored credential; commands
// that touch the playlist never reach the remote document without one.
func (h *handler) requireToken(ctx context.Context, m *telebot.Message) (string, bool) {
	token, err := h.db.GetToken(ctx, m.Chat.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.reply(m, "⚠️ Please set your GitHub token first using /settoken")
			return "", false
		}
		h.log.Error("Failed to get token", zap.Error(err))
		h.reply(m, "❌ Something went wrong. Please try again.")
		return "", false
	}

	return token, true
}

func (h *handler) savePendingPage(ctx context.Context, chatID int64, offset int) {
	session, err := h.db.GetSession(ctx, chatID)
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		return
	}

	session.PendingPage = &offset
	session.PendingDeleteIndex = nil
	if err := h.db.SaveSession(ctx, session); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
	}
}

func (h *handler) savePendingDelete(ctx context.Context, chatID int64, index int) {
	session, err := h.db.GetSession(ctx, chatID)
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		return
	}

	session.PendingDeleteIndex = &index
	if err := h.db.SaveSession(ctx, session); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
	}
}

// resetFlow returns the conversation to its idle state; the
// credential-capture flag is left alone, only browse/confirm progress
// is dropped.
func (h *handler) resetFlow(ctx context.Context, chatID int64) {
	session, err := h.db.GetSession(ctx, chatID)
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		return
	}

	session.PendingPage = nil
	session.PendingDeleteIndex = nil
	if err := h.db.SaveSession(ctx, session); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
	}
}
