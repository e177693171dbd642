package videosvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/media"
)

// FakePlatform is an in-memory media.VideoPlatform.
// Uploads get no asset until CompleteUpload is called.
type FakePlatform struct {
	mu      sync.Mutex
	seq     int
	uploads map[string]media.Upload
	assets  map[string]media.Asset

	Deleted []string
}

var _ media.VideoPlatform = (*FakePlatform)(nil) // interface compliance check

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		uploads: make(map[string]media.Upload),
		assets:  make(map[string]media.Asset),
	}
}

func (p *FakePlatform) CreateDirectUpload(_ context.Context, _ string) (media.Upload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("upload-%d", p.seq)
	u := media.Upload{ID: id, URL: "https://storage.mux.test/" + id, Status: "waiting"}
	p.uploads[id] = u
	return u, nil
}

func (p *FakePlatform) GetUpload(_ context.Context, id string) (media.Upload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.uploads[id]
	if !ok {
		return media.Upload{}, core.NewNotFoundError("video upload not found")
	}
	return u, nil
}

func (p *FakePlatform) GetAsset(_ context.Context, id string) (media.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.assets[id]
	if !ok {
		return media.Asset{}, errAssetNotFound
	}
	return a, nil
}

func (p *FakePlatform) DeleteAsset(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.assets, id)
	p.Deleted = append(p.Deleted, id)
	return nil
}

// CompleteUpload attaches a new asset, in status, to the upload and returns it.
func (p *FakePlatform) CompleteUpload(uploadID, status string) (media.Asset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.uploads[uploadID]
	if !ok {
		return media.Asset{}, false
	}
	p.seq++
	a := media.Asset{
		ID:         fmt.Sprintf("asset-%d", p.seq),
		Status:     status,
		PlaybackID: fmt.Sprintf("playback-%d", p.seq),
	}
	u.AssetID, u.Status = a.ID, "asset_created"
	p.uploads[uploadID] = u
	p.assets[a.ID] = a
	return a, true
}

// SetAssetStatus updates a known asset.
func (p *FakePlatform) SetAssetStatus(assetID, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.assets[assetID]; ok {
		a.Status = status
		p.assets[assetID] = a
	}
}

func (p *FakePlatform) DeletedAssets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Deleted...)
}
