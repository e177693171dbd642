package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
)

type commerceRepository struct {
	db *DB
}

var _ commerce.Repository = (*commerceRepository)(nil) // interface compliance check

func NewCommerceRepository(db *DB) *commerceRepository {
	return &commerceRepository{db: db}
}

type itemTable func(t *tables) map[pair]row[struct{}]

func carts(t *tables) map[pair]row[struct{}]    { return t.carts }
func wishlist(t *tables) map[pair]row[struct{}] { return t.wishlist }

func (repo *commerceRepository) addItem(sel itemTable, userID, courseID string, exec []core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	table := sel(&repo.db.t)
	if _, ok := repo.db.t.courses[courseID]; !ok {
		return false, catalog.ErrCourseNotFound
	}
	k := pair{courseID: courseID, userID: userID}
	if _, ok := table[k]; ok {
		return false, nil
	}
	table[k] = row[struct{}]{seq: repo.db.nextSeq()}
	return true, nil
}

func (repo *commerceRepository) removeItem(sel itemTable, userID, courseID string, exec []core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	table := sel(&repo.db.t)
	k := pair{courseID: courseID, userID: userID}
	if _, ok := table[k]; !ok {
		return false, nil
	}
	delete(table, k)
	return true, nil
}

// courseIDs returns the user course ids, most recently added first.
func (repo *commerceRepository) courseIDs(sel itemTable, userID string) []string {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	table := sel(&repo.db.t)
	type item struct {
		courseID string
		seq      int64
	}
	items := make([]item, 0)
	for k, r := range table {
		if k.userID == userID {
			items = append(items, item{k.courseID, r.seq})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq > items[j].seq })
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.courseID)
	}
	return ids
}

func (repo *commerceRepository) AddCartItem(_ context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return repo.addItem(carts, userID, courseID, exec)
}

func (repo *commerceRepository) RemoveCartItem(_ context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return repo.removeItem(carts, userID, courseID, exec)
}

func (repo *commerceRepository) QueryCartCourseIDs(_ context.Context, userID string, _ ...core.DBExecutor) ([]string, error) {
	return repo.courseIDs(carts, userID), nil
}

func (repo *commerceRepository) ClearCart(_ context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	n := 0
	for k := range repo.db.t.carts {
		if k.userID == userID {
			delete(repo.db.t.carts, k)
			n++
		}
	}
	return n, nil
}

func (repo *commerceRepository) AddWishlistItem(_ context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return repo.addItem(wishlist, userID, courseID, exec)
}

func (repo *commerceRepository) RemoveWishlistItem(_ context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return repo.removeItem(wishlist, userID, courseID, exec)
}

func (repo *commerceRepository) QueryWishlistCourseIDs(_ context.Context, userID string, _ ...core.DBExecutor) ([]string, error) {
	return repo.courseIDs(wishlist, userID), nil
}

// Purchases

func (repo *commerceRepository) GetPurchase(_ context.Context, filter commerce.PurchaseFilter, _ ...core.DBExecutor) (commerce.Purchase, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if r, ok := repo.db.t.purchases[filter.ID]; ok {
			return r.val, nil
		}
		return commerce.Purchase{}, commerce.ErrPurchaseNotFound
	}
	if filter.PaymentID != "" {
		for _, r := range repo.db.t.purchases {
			if r.val.PaymentID == filter.PaymentID {
				return r.val, nil
			}
		}
	}
	return commerce.Purchase{}, commerce.ErrPurchaseNotFound
}

func (repo *commerceRepository) CreatePurchase(_ context.Context, p commerce.Purchase, exec ...core.DBExecutor) (commerce.Purchase, bool, error) {
	defer repo.db.lockWrite(exec)()

	for _, r := range repo.db.t.purchases {
		if r.val.PaymentID == p.PaymentID {
			return r.val, false, nil
		}
	}
	repo.db.t.purchases[p.ID] = row[commerce.Purchase]{val: p, seq: repo.db.nextSeq()}
	return p, true, nil
}

func (repo *commerceRepository) userPurchases(userID string) []row[commerce.Purchase] {
	rows := make([]row[commerce.Purchase], 0)
	for _, r := range repo.db.t.purchases {
		if r.val.UserID == userID {
			rows = append(rows, r)
		}
	}
	return rows
}

func (repo *commerceRepository) QueryPurchases(_ context.Context, userID string, page core.Page, _ ...core.DBExecutor) ([]commerce.Purchase, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := repo.userPurchases(userID)
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].val.CreatedAt.Compare(rows[j].val.CreatedAt); c != 0 {
			return c > 0
		}
		return rows[i].seq > rows[j].seq
	})
	purchases := make([]commerce.Purchase, 0, page.Limit)
	for _, r := range paginate(rows, page) {
		purchases = append(purchases, r.val)
	}
	return purchases, nil
}

func (repo *commerceRepository) CountPurchases(_ context.Context, userID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.userPurchases(userID)), nil
}

func paginate[T any](items []T, page core.Page) []T {
	start := page.Offset()
	if start >= len(items) || page.Limit <= 0 {
		return nil
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
