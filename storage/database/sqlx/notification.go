package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/notification"
)

var notificationColumns = []string{"id", "user_id", "title", "message", "timestamp", "is_read"}

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Timestamp time.Time `db:"timestamp"`
	IsRead    bool      `db:"is_read"`
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Message:   row.Message,
		Timestamp: row.Timestamp.UTC(),
		IsRead:    row.IsRead,
	}
}

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{repo{exec: exec}}
}

func (r notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	q := psql.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.ID, n.UserID, n.Title, n.Message, n.Timestamp.UTC(), n.IsRead)
	if _, err := r.execute(ctx, exec, q); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (r notificationRepository) QueryNotifications(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]notification.Notification, error) {
	items := make([]notification.Notification, 0, page.Limit)
	if !validUUID(userID) {
		return items, nil
	}
	q := psql.Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("timestamp DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset()))

	var rows []notificationRow
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	for _, row := range rows {
		items = append(items, row.toNotification())
	}
	return items, nil
}

func (r notificationRepository) CountNotifications(ctx context.Context, userID string, unreadOnly bool, exec ...core.DBExecutor) (int, error) {
	if !validUUID(userID) {
		return 0, nil
	}
	where := sq.Eq{"user_id": userID}
	if unreadOnly {
		where["is_read"] = false
	}
	var n int
	if err := r.get(ctx, exec, &n, psql.Select("COUNT(*)").From("notifications").Where(where)); err != nil {
		return 0, errors.Wrap(err, "counting notifications")
	}
	return n, nil
}

func (r notificationRepository) MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) (bool, error) {
	if !validUUID(userID) || !validUUID(id) {
		return false, nil
	}
	n, err := r.execute(ctx, exec, psql.Update("notifications").Set("is_read", true).Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return false, errors.Wrap(err, "marking notification as read")
	}
	return n > 0, nil
}

func (r notificationRepository) MarkAllRead(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !validUUID(userID) {
		return 0, nil
	}
	n, err := r.execute(ctx, exec, psql.Update("notifications").Set("is_read", true).Where(sq.Eq{"user_id": userID, "is_read": false}))
	return n, errors.Wrap(err, "marking notifications as read")
}
