package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	defer repo.db.lockWrite(exec)()

	repo.db.t.notifications[n.ID] = row[notification.Notification]{val: n, seq: repo.db.nextSeq()}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, page core.Page, _ ...core.DBExecutor) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]row[notification.Notification], 0)
	for _, r := range repo.db.t.notifications {
		if r.val.UserID == userID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].val.Timestamp.Compare(rows[j].val.Timestamp); c != 0 {
			return c > 0
		}
		return rows[i].seq > rows[j].seq
	})
	items := make([]notification.Notification, 0, page.Limit)
	for _, r := range paginate(rows, page) {
		items = append(items, r.val)
	}
	return items, nil
}

func (repo *notificationRepository) CountNotifications(_ context.Context, userID string, unreadOnly bool, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, r := range repo.db.t.notifications {
		if r.val.UserID == userID && !(unreadOnly && r.val.IsRead) {
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID, id string, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.notifications[id]
	if !ok || r.val.UserID != userID {
		return false, nil
	}
	r.val.IsRead = true
	repo.db.t.notifications[id] = r
	return true, nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	n := 0
	for id, r := range repo.db.t.notifications {
		if r.val.UserID == userID && !r.val.IsRead {
			r.val.IsRead = true
			repo.db.t.notifications[id] = r
			n++
		}
	}
	return n, nil
}
