package media

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skolar/core"
)

// Video statuses
const (
	VideoStatusUploaded = "uploaded"
	VideoStatusReady    = "ready"
)

type Attachment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	LessonID  string    `json:"lesson_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewAttachment struct {
	Title string `json:"title" form:"title" validate:"required,notblank,max=200"`
}

func (na *NewAttachment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type UpdateAttachment struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
}

func (ua *UpdateAttachment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	return validate.Struct(ua)
}

type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id,omitempty"`
	MuxAssetID  string    `json:"mux_asset_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewVideo struct {
	Title       string `json:"title" form:"title" validate:"max=200"`
	Description string `json:"description" form:"description" validate:"max=5000"`
	LessonID    string `json:"lesson_id" form:"lesson_id" validate:"omitempty,uuid"`
	MuxAssetID  string `json:"mux_asset_id" form:"mux_asset_id" validate:"max=200"`
}

func (nv *NewVideo) Validate(validate *validator.Validate) error {
	nv.Title = core.CleanString(nv.Title)
	nv.Description = core.CleanString(nv.Description)
	nv.LessonID = core.CleanString(nv.LessonID, true /* lower */)
	nv.MuxAssetID = core.CleanString(nv.MuxAssetID)
	return validate.Struct(nv)
}

type UpdateVideo struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (uv *UpdateVideo) Validate(validate *validator.Validate) error {
	if uv.Title != nil {
		t := core.CleanString(*uv.Title)
		uv.Title = &t
	}
	if uv.Description != nil {
		d := core.CleanString(*uv.Description)
		uv.Description = &d
	}
	return validate.Struct(uv)
}

// Video platform

type (
	Upload struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		Status  string `json:"status"`
		AssetID string `json:"asset_id,omitempty"`
	}

	Asset struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		PlaybackID string `json:"playback_id"` // first playback id, if any
	}

	// AssetRef is what a lesson keeps of a hosted video.
	AssetRef struct {
		AssetID    string `json:"asset_id"`
		PlaybackID string `json:"playback_id"`
	}

	// VideoPlatform is implemented by services/video.
	VideoPlatform interface {
		// CreateDirectUpload returns an upload whose URL accepts the video file, with public playback.
		CreateDirectUpload(ctx context.Context, corsOrigin string) (Upload, error)
		GetUpload(ctx context.Context, id string) (Upload, error)
		GetAsset(ctx context.Context, id string) (Asset, error)
		DeleteAsset(ctx context.Context, id string) error
	}

	// WebhookEvent is a video platform notification.
	WebhookEvent struct {
		Type string `json:"type"`
		Data struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			PlaybackIDs []struct {
				ID     string `json:"id"`
				Policy string `json:"policy"`
			} `json:"playback_ids"`
		} `json:"data"`
	}
)

const EventAssetReady = "video.asset.ready"
