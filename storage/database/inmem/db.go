package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
)

type (
	// pair keys the join tables: (course_id, user_id).
	pair struct {
		courseID string
		userID   string
	}

	// row keeps the insertion order next to the value, used to break timestamp ties.
	row[T any] struct {
		val T
		seq int64
	}

	tables struct {
		users         map[string]row[user.User]
		courses       map[string]row[catalog.Course]
		students      map[pair]row[struct{}]
		chapters      map[string]row[catalog.Chapter]
		lessons       map[string]row[catalog.Lesson]
		attachments   map[string]row[media.Attachment]
		videos        map[string]row[media.Video]
		carts         map[pair]row[struct{}]
		wishlist      map[pair]row[struct{}]
		purchases     map[string]row[commerce.Purchase]
		progresses    map[progress.Key]row[progress.Progress]
		notifications map[string]row[notification.Notification]
	}

	// DB is a process-local database used by tests and local development.
	// RunInTx serializes transactions and rolls their writes back on error.
	// Writes made outside a transaction wait for the running one to finish,
	// so a rollback never discards them.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		seq   int64
		t     tables
	}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

// txExec is the executor handed to RunInTx callbacks; repositories only check its presence.
type txExec struct {
	core.DBExecutor
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(*txExec)
	return ok
}

// lockWrite takes the write lock, first waiting for the running transaction unless
// exec belongs to it. The returned func releases what was taken.
func (db *DB) lockWrite(exec []core.DBExecutor) func() {
	if inTx(exec) {
		db.mutex.Lock()
		return db.mutex.Unlock
	}
	db.txMu.Lock()
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		db.txMu.Unlock()
	}
}

func Open() *DB {
	return &DB{t: newTables()}
}

func newTables() tables {
	return tables{
		users:         make(map[string]row[user.User]),
		courses:       make(map[string]row[catalog.Course]),
		students:      make(map[pair]row[struct{}]),
		chapters:      make(map[string]row[catalog.Chapter]),
		lessons:       make(map[string]row[catalog.Lesson]),
		attachments:   make(map[string]row[media.Attachment]),
		videos:        make(map[string]row[media.Video]),
		carts:         make(map[pair]row[struct{}]),
		wishlist:      make(map[pair]row[struct{}]),
		purchases:     make(map[string]row[commerce.Purchase]),
		progresses:    make(map[progress.Key]row[progress.Progress]),
		notifications: make(map[string]row[notification.Notification]),
	}
}

func (t tables) clone() tables {
	return tables{
		users:         cloneMap(t.users),
		courses:       cloneMap(t.courses),
		students:      cloneMap(t.students),
		chapters:      cloneMap(t.chapters),
		lessons:       cloneMap(t.lessons),
		attachments:   cloneMap(t.attachments),
		videos:        cloneMap(t.videos),
		carts:         cloneMap(t.carts),
		wishlist:      cloneMap(t.wishlist),
		purchases:     cloneMap(t.purchases),
		progresses:    cloneMap(t.progresses),
		notifications: cloneMap(t.notifications),
	}
}

// RunInTx runs fn with a transaction executor; every write done by fn is undone when it fails.
// Writes inside fn must pass exec, otherwise they block on the transaction itself.
func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mutex.RLock()
	snapshot := db.t.clone()
	db.mutex.RUnlock()

	if err := fn(&txExec{}); err != nil {
		db.mutex.Lock()
		db.t = snapshot
		db.mutex.Unlock()
		return err
	}
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	defer db.lockWrite(nil)()
	db.t = newTables()
}

// nextSeq must be called with the write lock held.
func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
