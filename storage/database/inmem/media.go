package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/media"
)

type mediaRepository struct {
	db *DB
}

var _ media.Repository = (*mediaRepository)(nil) // interface compliance check

func NewMediaRepository(db *DB) *mediaRepository {
	return &mediaRepository{db: db}
}

func (repo *mediaRepository) CreateAttachment(_ context.Context, a media.Attachment, exec ...core.DBExecutor) (media.Attachment, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.lessons[a.LessonID]; !ok {
		return media.Attachment{}, catalog.ErrLessonNotFound
	}
	repo.db.t.attachments[a.ID] = row[media.Attachment]{val: a, seq: repo.db.nextSeq()}
	return a, nil
}

func (repo *mediaRepository) GetAttachment(_ context.Context, id string, _ ...core.DBExecutor) (media.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.attachments[id]
	if !ok {
		return media.Attachment{}, media.ErrAttachmentNotFound
	}
	return r.val, nil
}

func (repo *mediaRepository) QueryAttachments(_ context.Context, lessonID string, _ ...core.DBExecutor) ([]media.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]row[media.Attachment], 0)
	for _, r := range repo.db.t.attachments {
		if r.val.LessonID == lessonID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	items := make([]media.Attachment, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.val)
	}
	return items, nil
}

func (repo *mediaRepository) UpdateAttachment(_ context.Context, a media.Attachment, exec ...core.DBExecutor) (media.Attachment, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.attachments[a.ID]
	if !ok {
		return media.Attachment{}, media.ErrAttachmentNotFound
	}
	r.val.Title = a.Title
	repo.db.t.attachments[a.ID] = r
	return r.val, nil
}

func (repo *mediaRepository) DeleteAttachment(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	delete(repo.db.t.attachments, id)
	return nil
}

// Videos

func (repo *mediaRepository) CreateVideo(_ context.Context, v media.Video, exec ...core.DBExecutor) (media.Video, error) {
	defer repo.db.lockWrite(exec)()

	if v.LessonID != "" {
		if _, ok := repo.db.t.lessons[v.LessonID]; !ok {
			return media.Video{}, catalog.ErrLessonNotFound
		}
	}
	repo.db.t.videos[v.ID] = row[media.Video]{val: v, seq: repo.db.nextSeq()}
	return v, nil
}

func (repo *mediaRepository) GetVideo(_ context.Context, id string, _ ...core.DBExecutor) (media.Video, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.videos[id]
	if !ok {
		return media.Video{}, media.ErrVideoNotFound
	}
	return r.val, nil
}

func (repo *mediaRepository) QueryVideos(_ context.Context, userID string, _ ...core.DBExecutor) ([]media.Video, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]row[media.Video], 0)
	for _, r := range repo.db.t.videos {
		if userID == "" || r.val.UserID == userID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].val.CreatedAt.Compare(rows[j].val.CreatedAt); c != 0 {
			return c > 0
		}
		return rows[i].seq > rows[j].seq
	})
	items := make([]media.Video, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.val)
	}
	return items, nil
}

func (repo *mediaRepository) UpdateVideo(_ context.Context, v media.Video, exec ...core.DBExecutor) (media.Video, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.videos[v.ID]
	if !ok {
		return media.Video{}, media.ErrVideoNotFound
	}
	v.CreatedAt = r.val.CreatedAt
	r.val = v
	repo.db.t.videos[v.ID] = r
	return v, nil
}

func (repo *mediaRepository) DeleteVideo(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	delete(repo.db.t.videos, id)
	return nil
}

func (repo *mediaRepository) SetVideoStatusByAsset(_ context.Context, assetID, status string, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	n := 0
	for id, r := range repo.db.t.videos {
		if assetID != "" && r.val.MuxAssetID == assetID {
			r.val.Status = status
			repo.db.t.videos[id] = r
			n++
		}
	}
	return n, nil
}
