package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/github"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/models"
	"go.uber.org/zap"
)

// ErrIndexOutOfRange is returned when a delete targets an index that no
// longer exists in the freshly fetched playlist.
var ErrIndexOutOfRange = errors.New("playlist: index out of range")

// Store edits the remote playlist document. Every mutation is a fetch,
// an in-memory change, and a conditional write keyed on the fetched
// revision; a stale revision surfaces github.ErrConflict and the caller
// re-issues the command.
type Store interface {
	List(ctx context.Context, token string) ([]models.VideoEntry, error)
	Append(ctx context.Context, token, title, url string) error
	DeleteAt(ctx context.Context, token string, index int) (models.VideoEntry, error)
	Clear(ctx context.Context, token string) error
}

type store struct {
	contents github.ContentsClient
	log      *zap.Logger
}

func NewStore(contents github.ContentsClient, log *zap.Logger) Store {
	return &store{
		contents: contents,
		log:      log,
	}
}

func (s *store) List(ctx context.Context, token string) ([]models.VideoEntry, error) {
	videos, _, err := s.fetch(ctx, token)
	return videos, err
}

func (s *store) Append(ctx context.Context, token, title, url string) error {
	videos, sha, err := s.fetch(ctx, token)
	if err != nil {
		return err
	}

	videos = append(videos, models.VideoEntry{
		Title:    title,
		URL:      url,
		Duration: models.UnknownDuration,
	})

	return s.write(ctx, token, videos, sha, "Add video: "+title)
}

func (s *store) DeleteAt(ctx context.Context, token string, index int) (models.VideoEntry, error) {
	videos, sha, err := s.fetch(ctx, token)
	if err != nil {
		return models.VideoEntry{}, err
	}

	if index < 0 || index >= len(videos) {
		return models.VideoEntry{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(videos))
	}

	deleted := videos[index]
	videos = append(videos[:index], videos[index+1:]...)

	if err := s.write(ctx, token, videos, sha, "Delete video: "+deleted.Title); err != nil {
		return models.VideoEntry{}, err
	}

	return deleted, nil
}

func (s *store) Clear(ctx context.Context, token string) error {
	// Fetched only for the revision token.
	_, sha, err := s.fetch(ctx, token)
	if err != nil {
		return err
	}

	return s.write(ctx, token, []models.VideoEntry{}, sha, "Clear all videos")
}

func (s *store) fetch(ctx context.Context, token string) ([]models.VideoEntry, string, error) {
	file, err := s.contents.Fetch(ctx, token)
	if err != nil {
		return nil, "", err
	}

	var videos []models.VideoEntry
	if err := json.Unmarshal(file.Content, &videos); err != nil {
		return nil, "", fmt.Errorf("failed to decode playlist document: %w", err)
	}

	return videos, file.SHA, nil
}

func (s *store) write(ctx context.Context, token string, videos []models.VideoEntry, sha, message string) error {
	// Pretty-printed so the document stays readable in the audit history.
	content, err := json.MarshalIndent(videos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode playlist document: %w", err)
	}

	if err := s.contents.Write(ctx, token, content, sha, message); err != nil {
		return err
	}

	s.log.Info("Updated playlist", zap.String("message", message), zap.Int("videos", len(videos)))
	return nil
}
