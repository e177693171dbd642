package sqlxrepos_test

import (
	"context"
	"io"
	"log"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/email"
	"github.com/trezcool/skolar/services/filestore"
	"github.com/trezcool/skolar/services/logger"
	"github.com/trezcool/skolar/services/payment"
	"github.com/trezcool/skolar/services/video"
	"github.com/trezcool/skolar/storage/database"
	"github.com/trezcool/skolar/storage/database/sqlx"
	"github.com/trezcool/skolar/tests"
)

// openTestDB connects to TEST_DATABASE_URL, migrates it and empties every table.
func openTestDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db, "up"))
	_, err = db.ExecContext(ctx, `TRUNCATE users, courses, course_students, chapters, lessons, attachments,
		carts, wishlist, purchases, progresses, notifications, videos CASCADE`)
	require.NoError(t, err)
	return db
}

func TestRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	conf := testutil.Config()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	files := filesvc.NewMemoryStorage()
	gateway := paymentsvc.NewFakeGateway()
	mailer := emailsvc.NewConsoleServiceMock(conf)
	tx := database.NewTransactor(db)

	usrRepo := sqlxrepos.NewUserRepository(db)
	catalogRepo := sqlxrepos.NewCatalogRepository(db)
	commerceRepo := sqlxrepos.NewCommerceRepository(db)
	notifRepo := sqlxrepos.NewNotificationRepository(db)

	usrSvc := user.NewService(usrRepo, files, logger)
	catalogSvc := catalog.NewService(tx, catalogRepo, files, videosvc.NewFakePlatform(), logger)
	commerceSvc := commerce.NewService(commerce.ServiceDeps{
		Tx:       tx,
		Repo:     commerceRepo,
		Catalog:  catalogSvc,
		Enroller: catalogRepo,
		Notifier: notifRepo,
		Users:    usrSvc,
		Gateway:  gateway,
		Mailer:   mailer,
		Logger:   logger,
	})
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), catalogSvc)
	notifSvc := notification.NewService(notifRepo, mailer)

	teacher := testutil.CreateUser(t, usrRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, usrRepo, "Ann", "ann@test.cd", user.RoleStudent)

	got, err := usrSvc.GetByEmail(ctx, " ANN@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, student.ID, got.ID)

	c := testutil.CreateCourse(t, catalogSvc, teacher, "Learn Go", 100.5)
	assert.Equal(t, []string{teacher.ID}, c.InstructorID)
	ch := testutil.CreateChapter(t, catalogSvc, c.ID, "Basics")
	l := testutil.CreateLesson(t, catalogSvc, c.ID, ch.ID, "Types")

	t.Run("purchase", func(t *testing.T) {
		_, _, err := commerceSvc.RegisterProduct(ctx, c.ID)
		require.NoError(t, err)
		added, err := commerceSvc.AddToCart(ctx, student.ID, c.ID)
		require.NoError(t, err)
		assert.True(t, added)

		res, err := commerceSvc.CreateCheckoutSession(ctx, student, commerce.CheckoutRequest{CourseID: c.ID})
		require.NoError(t, err)
		_, ok := gateway.PaySession(res.SessionID)
		require.True(t, ok)

		first, err := commerceSvc.VerifyPayment(ctx, res.SessionID)
		require.NoError(t, err)
		again, err := commerceSvc.VerifyPayment(ctx, res.SessionID)
		require.NoError(t, err)
		assert.Equal(t, first.Purchase.ID, again.Purchase.ID)
		assert.Equal(t, 100.5, again.Purchase.Price)

		enrolled, err := catalogSvc.IsEnrolled(ctx, c.ID, student.ID)
		require.NoError(t, err)
		assert.True(t, enrolled)
		cart, err := commerceSvc.ListCart(ctx, student.ID)
		require.NoError(t, err)
		assert.Empty(t, cart)

		page, err := commerceSvc.ListPurchases(ctx, student.ID, core.NewPage(1, 0, commerce.DefaultPageLimit))
		require.NoError(t, err)
		assert.Equal(t, 1, page.Pagination.TotalItems)
	})

	t.Run("progress", func(t *testing.T) {
		key := progress.Key{CourseID: c.ID, UserID: student.ID, LessonID: l.ID}
		_, err := progressSvc.UpdatePlayhead(ctx, key, 40)
		require.NoError(t, err)
		p, err := progressSvc.UpdatePlayhead(ctx, key, 10)
		require.NoError(t, err)
		assert.Equal(t, 40.0, p.Playhead)

		_, done, err := progressSvc.Complete(ctx, key, 50)
		require.NoError(t, err)
		assert.True(t, done)
		_, done, err = progressSvc.Complete(ctx, key, 50)
		require.NoError(t, err)
		assert.False(t, done)

		s, err := progressSvc.CourseSummary(ctx, c.ID, student.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s.Ratio)
	})

	t.Run("notifications", func(t *testing.T) {
		n, err := notifSvc.UnreadCount(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n) // purchase complete

		changed, err := notifSvc.MarkAllRead(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, changed)
		assert.True(t, core.IsNotFound(notifSvc.MarkRead(ctx, teacher.ID, "00000000-0000-0000-0000-000000000000")))
	})

	t.Run("delete course", func(t *testing.T) {
		require.NoError(t, catalogSvc.DeleteCourse(ctx, c.ID))
		_, err := catalogSvc.GetCourse(ctx, c.ID)
		assert.True(t, core.IsNotFound(err))
	})
}
