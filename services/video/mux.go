// Package videosvc implements media.VideoPlatform with Mux.
package videosvc

import (
	"context"

	muxgo "github.com/muxinc/mux-go/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/media"
)

var errAssetNotFound = core.NewNotFoundError("video asset not found")

type muxPlatform struct {
	client *muxgo.APIClient
}

var _ media.VideoPlatform = (*muxPlatform)(nil) // interface compliance check

func NewMuxPlatform(conf core.MuxConfig) *muxPlatform {
	return &muxPlatform{
		client: muxgo.NewAPIClient(muxgo.NewConfiguration(muxgo.WithBasicAuth(conf.TokenID, conf.TokenSecret))),
	}
}

func isNotFound(err error) bool {
	var nf muxgo.NotFoundError
	return errors.As(err, &nf)
}

func toUpload(u muxgo.Upload) media.Upload {
	return media.Upload{ID: u.Id, URL: u.Url, Status: u.Status, AssetID: u.AssetId}
}

// CreateDirectUpload requests an upload url; the resulting asset has a public playback policy.
func (p *muxPlatform) CreateDirectUpload(ctx context.Context, corsOrigin string) (media.Upload, error) {
	req := muxgo.CreateUploadRequest{
		NewAssetSettings: muxgo.CreateAssetRequest{
			PlaybackPolicy: []muxgo.PlaybackPolicy{muxgo.PUBLIC},
		},
		CorsOrigin: corsOrigin,
	}
	res, err := p.client.DirectUploadsApi.CreateDirectUpload(req, muxgo.WithContext(ctx))
	if err != nil {
		return media.Upload{}, errors.Wrap(err, "mux: creating direct upload")
	}
	return toUpload(res.Data), nil
}

func (p *muxPlatform) GetUpload(ctx context.Context, id string) (media.Upload, error) {
	res, err := p.client.DirectUploadsApi.GetDirectUpload(id, muxgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return media.Upload{}, core.NewNotFoundError("video upload not found")
		}
		return media.Upload{}, errors.Wrap(err, "mux: retrieving upload")
	}
	return toUpload(res.Data), nil
}

func (p *muxPlatform) GetAsset(ctx context.Context, id string) (media.Asset, error) {
	res, err := p.client.AssetsApi.GetAsset(id, muxgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return media.Asset{}, errAssetNotFound
		}
		return media.Asset{}, errors.Wrap(err, "mux: retrieving asset")
	}
	asset := media.Asset{ID: res.Data.Id, Status: res.Data.Status}
	if len(res.Data.PlaybackIds) > 0 {
		asset.PlaybackID = res.Data.PlaybackIds[0].Id
	}
	return asset, nil
}

// DeleteAsset ignores assets that are already gone.
func (p *muxPlatform) DeleteAsset(ctx context.Context, id string) error {
	if err := p.client.AssetsApi.DeleteAsset(id, muxgo.WithContext(ctx)); err != nil && !isNotFound(err) {
		return errors.Wrap(err, "mux: deleting asset")
	}
	return nil
}
