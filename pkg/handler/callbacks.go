package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/github"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/models"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/playlist"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/utils"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gopkg.in/tucnak/telebot.v2"
)

// Callback payloads, round-tripped verbatim through the inline buttons:
//
//	delete_<i>          select entry i for deletion
//	delete_more_<o>     move delete browsing to offset o
//	delete_cancel       cancel the active delete selection
//	confirm_delete_<i>  confirm deletion of entry i
//	clear_confirm       confirm a full clear
//	clear_cancel        cancel a full clear
func (h *handler) HandleCallback(c *telebot.Callback) {
	defer h.guardCallback(c)

	if c == nil || c.Message == nil {
		return
	}

	ctx := context.Background()
	chatID := c.Message.Chat.ID
	data := strings.TrimSpace(c.Data)

	token, err := h.db.GetToken(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.respond(c, "⚠️ Token not found. Use /settoken", true)
			return
		}
		h.log.Error("Failed to get token", zap.Error(err))
		h.respond(c, "❌ Something went wrong. Please try again.", true)
		return
	}

	switch {
	case data == "delete_cancel" || data == "clear_cancel":
		h.resetFlow(ctx, chatID)
		h.edit(c.Message, "❌ Cancelled", nil)
		h.respond(c, "Cancelled", false)

	case data == "clear_confirm":
		h.confirmClear(ctx, c, token)

	case strings.HasPrefix(data, "confirm_delete_"):
		index, err := strconv.Atoi(strings.TrimPrefix(data, "confirm_delete_"))
		if err != nil {
			h.respond(c, "❌ Invalid selection", true)
			return
		}
		h.confirmDelete(ctx, c, token, index)

	case strings.HasPrefix(data, "delete_more_"):
		offset, err := strconv.Atoi(strings.TrimPrefix(data, "delete_more_"))
		if err != nil {
			h.respond(c, "❌ Invalid page", true)
			return
		}
		h.showDeletePage(ctx, c, token, offset)

	case strings.HasPrefix(data, "delete_"):
		index, err := strconv.Atoi(strings.TrimPrefix(data, "delete_"))
		if err != nil {
			h.respond(c, "❌ Invalid selection", true)
			return
		}
		h.selectDelete(ctx, c, token, index)

	default:
		h.respond(c, "❌ Unknown action", true)
	}
}

func (h *handler) showDeletePage(ctx context.Context, c *telebot.Callback, token string, offset int) {
	videos, err := h.store.List(ctx, token)
	if err != nil {
		h.log.Error("Failed to fetch playlist", zap.Error(err))
		h.respond(c, "❌ Error: "+err.Error(), true)
		return
	}

	if len(videos) == 0 {
		h.resetFlow(ctx, c.Message.Chat.ID)
		h.edit(c.Message, "📭 No videos to delete.", nil)
		h.respond(c, "", false)
		return
	}

	if offset < 0 || offset >= len(videos) {
		h.respond(c, "❌ Invalid page", true)
		return
	}

	text, markup := renderDeletePage(videos, offset)
	h.edit(c.Message, text, markup)
	h.savePendingPage(ctx, c.Message.Chat.ID, offset)
	h.respond(c, "", false)
}

// selectDelete re-validates the clicked index against a fresh fetch:
// the playlist may have shrunk since the page was rendered.
func (h *handler) selectDelete(ctx context.Context, c *telebot.Callback, token string, index int) {
	videos, err := h.store.List(ctx, token)
	if err != nil {
		h.log.Error("Failed to fetch playlist", zap.Error(err))
		h.respond(c, "❌ Error: "+err.Error(), true)
		return
	}

	if index < 0 || index >= len(videos) {
		h.resetFlow(ctx, c.Message.Chat.ID)
		h.respond(c, "❌ Invalid video", true)
		return
	}

	video := videos[index]
	markup := &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{
			{Text: "✅ Yes, Delete", Data: fmt.Sprintf("confirm_delete_%d", index)},
			{Text: "❌ Cancel", Data: "delete_cancel"},
		}},
	}

	h.edit(c.Message, fmt.Sprintf("⚠️ Delete this video?\n\n📹 %s\n🔗 %s", video.Title, video.URL), markup)
	h.savePendingDelete(ctx, c.Message.Chat.ID, index)
	h.respond(c, "", false)
}

func (h *handler) confirmDelete(ctx context.Context, c *telebot.Callback, token string, index int) {
	h.respond(c, "⏳ Deleting...", false)

	deleted, err := h.store.DeleteAt(ctx, token, index)
	h.resetFlow(ctx, c.Message.Chat.ID)
	if err != nil {
		switch {
		case errors.Is(err, playlist.ErrIndexOutOfRange):
			h.edit(c.Message, "❌ Invalid video", nil)
		case errors.Is(err, github.ErrConflict):
			h.edit(c.Message, conflictMessage, nil)
		default:
			h.log.Error("Failed to delete video", zap.Error(err))
			h.edit(c.Message, "❌ Error: "+err.Error(), nil)
		}
		return
	}

	h.edit(c.Message, fmt.Sprintf("✅ Video deleted!\n\n📹 %s\n\nPlaylist updates in ~30 seconds.", deleted.Title), nil)
}

func (h *handler) confirmClear(ctx context.Context, c *telebot.Callback, token string) {
	h.respond(c, "⏳ Clearing...", false)

	err := h.store.Clear(ctx, token)
	h.resetFlow(ctx, c.Message.Chat.ID)
	if err != nil {
		if errors.Is(err, github.ErrConflict) {
			h.edit(c.Message, conflictMessage, nil)
			return
		}
		h.log.Error("Failed to clear playlist", zap.Error(err))
		h.edit(c.Message, "❌ Error: "+err.Error(), nil)
		return
	}

	h.edit(c.Message, "✅ All videos cleared!\n\nPlaylist is now empty.", nil)
}

func renderDeletePage(videos []models.VideoEntry, offset int) (string, *telebot.ReplyMarkup) {
	end := offset + deletePageSize
	if end > len(videos) {
		end = len(videos)
	}

	rows := make([][]telebot.InlineButton, 0, deletePageSize+2)
	for i := offset; i < end; i++ {
		rows = append(rows, []telebot.InlineButton{{
			Text: fmt.Sprintf("❌ %d. %s", i+1, utils.TruncateTitle(videos[i].Title, titleButtonMax)),
			Data: fmt.Sprintf("delete_%d", i),
		}})
	}

	if len(videos) > offset+deletePageSize {
		rows = append(rows, []telebot.InlineButton{{
			Text: "➡️ Show More",
			Data: fmt.Sprintf("delete_more_%d", offset+deletePageSize),
		}})
	}

	if offset > 0 {
		prev := offset - deletePageSize
		if prev < 0 {
			prev = 0
		}
		rows = append(rows, []telebot.InlineButton{{
			Text: "⬅️ Previous",
			Data: fmt.Sprintf("delete_more_%d", prev),
		}})
	}

	return "🗑️ Select video to delete:", &telebot.ReplyMarkup{InlineKeyboard: rows}
}
