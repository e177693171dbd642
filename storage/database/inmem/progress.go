package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetProgress(_ context.Context, key progress.Key, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.progresses[key]
	if !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	return r.val, nil
}

func (repo *progressRepository) CreateProgress(_ context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	defer repo.db.lockWrite(exec)()

	if r, ok := repo.db.t.progresses[p.Key()]; ok {
		return r.val, nil
	}
	repo.db.t.progresses[p.Key()] = row[progress.Progress]{val: p, seq: repo.db.nextSeq()}
	return p, nil
}

func (repo *progressRepository) AdvancePlayhead(_ context.Context, key progress.Key, playhead float64, at time.Time, exec ...core.DBExecutor) (progress.Progress, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.progresses[key]
	if !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	if playhead > r.val.Playhead {
		r.val.Playhead = playhead
	}
	r.val.UpdatedAt = at
	repo.db.t.progresses[key] = r
	return r.val, nil
}

func (repo *progressRepository) MarkCompleted(_ context.Context, key progress.Key, playhead float64, at time.Time, exec ...core.DBExecutor) (progress.Progress, bool, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.progresses[key]
	if !ok {
		return progress.Progress{}, false, progress.ErrNotFound
	}
	if playhead > r.val.Playhead {
		r.val.Playhead = playhead
	}
	transitioned := !r.val.Completed
	if transitioned {
		r.val.Completed = true
		completedAt := at
		r.val.CompletedAt = &completedAt
	}
	r.val.UpdatedAt = at
	repo.db.t.progresses[key] = r
	return r.val, transitioned, nil
}

func (repo *progressRepository) DeleteProgress(_ context.Context, key progress.Key, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.progresses[key]; !ok {
		return progress.ErrNotFound
	}
	delete(repo.db.t.progresses, key)
	return nil
}

func (repo *progressRepository) QueryProgress(_ context.Context, courseID, userID string, _ ...core.DBExecutor) ([]progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]row[progress.Progress], 0)
	for k, r := range repo.db.t.progresses {
		if k.CourseID == courseID && (userID == "" || k.UserID == userID) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	items := make([]progress.Progress, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.val)
	}
	return items, nil
}
