package media

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/user"
)

const webhookTolerance = 5 * time.Minute

var (
	ErrAssetNotReady = core.NewNotFoundError("asset not ready")

	errInvalidSignature = errors.New("invalid webhook signature")
)

// CreateDirectUpload returns an upload URL the client sends the video file to.
func (svc *Service) CreateDirectUpload(ctx context.Context) (Upload, error) {
	up, err := svc.Platform.CreateDirectUpload(ctx, svc.CorsOrigin)
	return up, errors.Wrap(err, "creating direct upload")
}

// UploadAsset resolves the asset created from an upload with its first playback id.
// ErrAssetNotReady is returned while the platform has not created the asset yet.
func (svc *Service) UploadAsset(ctx context.Context, uploadID string) (AssetRef, error) {
	up, err := svc.Platform.GetUpload(ctx, uploadID)
	if err != nil {
		return AssetRef{}, errors.Wrap(err, "retrieving upload")
	}
	if up.AssetID == "" {
		return AssetRef{}, ErrAssetNotReady
	}
	asset, err := svc.Platform.GetAsset(ctx, up.AssetID)
	if err != nil {
		return AssetRef{}, errors.Wrap(err, "retrieving asset")
	}
	return AssetRef{AssetID: asset.ID, PlaybackID: asset.PlaybackID}, nil
}

// WaitForAsset polls UploadAsset until the asset exists, PollTimeout elapses or ctx is done.
func (svc *Service) WaitForAsset(ctx context.Context, uploadID string) (AssetRef, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(svc.PollInterval)
	defer ticker.Stop()

	for {
		ref, err := svc.UploadAsset(ctx, uploadID)
		if err == nil {
			return ref, nil
		}
		if errors.Cause(err) != ErrAssetNotReady {
			return AssetRef{}, err
		}

		select {
		case <-ctx.Done():
			return AssetRef{}, errors.Wrap(ctx.Err(), "waiting for asset")
		case <-ticker.C:
		}
	}
}

// AttachLessonVideo waits for the asset of the upload and stores it on the lesson.
func (svc *Service) AttachLessonVideo(ctx context.Context, lessonID, uploadID string) (catalog.Lesson, error) {
	if _, _, err := svc.Lessons.GetLessonCourse(ctx, lessonID); err != nil {
		return catalog.Lesson{}, err
	}
	ref, err := svc.WaitForAsset(ctx, uploadID)
	if err != nil {
		return catalog.Lesson{}, err
	}
	return svc.Lessons.SetLessonVideo(ctx, lessonID, ref.AssetID, ref.PlaybackID)
}

// DeleteAsset removes a hosted video. When lessons carry the asset, usr must be able to
// edit each of their courses and the lessons are left without a video.
func (svc *Service) DeleteAsset(ctx context.Context, usr user.User, assetID string) error {
	lessons, err := svc.Lessons.LessonsByAsset(ctx, assetID)
	if err != nil {
		return errors.Wrap(err, "finding asset lessons")
	}
	for _, l := range lessons {
		_, c, err := svc.Lessons.GetLessonCourse(ctx, l.ID)
		if err != nil {
			return errors.Wrap(err, "getting lesson course")
		}
		if !catalog.CanEdit(usr, c) {
			return core.ErrPermissionDenied
		}
	}

	if err = svc.Platform.DeleteAsset(ctx, assetID); err != nil {
		return errors.Wrap(err, "deleting asset")
	}
	for _, l := range lessons {
		if _, err = svc.Lessons.SetLessonVideo(ctx, l.ID, "", ""); err != nil {
			return errors.Wrap(err, "clearing lesson video")
		}
	}
	return nil
}

// HandleWebhook processes a video platform event.
// The Mux-Signature header is verified when a webhook secret is configured.
func (svc *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookEvent, error) {
	if svc.WebhookSecret != "" {
		if err := verifySignature(payload, signature, svc.WebhookSecret, svc.nowFunc()); err != nil {
			return WebhookEvent{}, core.NewValidationError(err)
		}
	}

	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return WebhookEvent{}, core.NewValidationError(errors.Wrap(err, "decoding webhook event"))
	}
	if evt.Type != EventAssetReady || evt.Data.Status != VideoStatusReady || evt.Data.ID == "" {
		return evt, nil
	}

	n, err := svc.Repo.SetVideoStatusByAsset(ctx, evt.Data.ID, VideoStatusReady)
	if err != nil {
		return evt, errors.Wrap(err, "updating video status")
	}
	var lessons int
	for _, pb := range evt.Data.PlaybackIDs {
		if pb.Policy == "public" || pb.Policy == "" {
			if lessons, err = svc.Lessons.SetPlaybackByAsset(ctx, evt.Data.ID, pb.ID); err != nil {
				return evt, errors.Wrap(err, "updating lessons playback")
			}
			break
		}
	}
	svc.Logger.Info("asset ready", map[string]interface{}{"asset": evt.Data.ID, "videos": n, "lessons": lessons})
	return evt, nil
}

// verifySignature checks a "t=<unix>,v1=<hex hmac>" header against HMAC-SHA256(secret, t + "." + payload).
func verifySignature(payload []byte, header, secret string, now time.Time) error {
	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errInvalidSignature
	}
	if d := now.Sub(time.Unix(ts, 0)); d > webhookTolerance || d < -webhookTolerance {
		return errors.Wrap(errInvalidSignature, "timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)
	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err == nil && hmac.Equal(got, expected) {
			return nil
		}
	}
	return errInvalidSignature
}

// SignWebhook builds a Mux-Signature header for payload, used by tests and local tooling.
func SignWebhook(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
