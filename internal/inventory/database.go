// Package inventory is the durable ledger of products, purchases and
// per-unit stock, stored in a single bbolt file.
package inventory

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.etcd.io/bbolt"

	"github.com/zombor/pantry/internal/classify"
	"github.com/zombor/pantry/internal/parsing"
)

const (
	productsBucket       = "products"
	productNamesBucket   = "product_names"
	purchasesBucket      = "purchases"
	receiptsBucket       = "receipts"
	unitsBucket          = "inventory_units"
	unitStatusBucket     = "unit_status"
	classificationBucket = "classification_cache"
)

var statuses = []UnitStatus{InStock, Consumed, Expired}

// DB defines the interface for inventory operations
type DB interface {
	// IsImported reports whether purchases exist for the receipt
	IsImported(receiptID string) (bool, error)

	// ImportReceipt writes a receipt's purchases and units atomically.
	// It returns the number of purchases written, 0 when already imported.
	ImportReceipt(items parsing.ReceiptItems, classifications map[string]classify.Result) (int, error)

	// ListInStock returns in-stock products, most recently purchased first
	ListInStock() ([]StockRow, error)

	// ListExpiringSoon returns in-stock units expiring within the given days
	ListExpiringSoon(withinDays int) ([]ExpiryRow, error)

	// MarkConsumed consumes up to count of the oldest in-stock units of a product
	MarkConsumed(name string, count int) (int, error)

	// ExpireStale marks in-stock units past their expiry date as expired
	ExpireStale() (int, error)

	// GetProduct returns the product with the given name, nil if unknown
	GetProduct(name string) (*Product, error)

	// ReceiptUnits returns every unit bought on a receipt
	ReceiptUnits(receiptID string) ([]Unit, error)

	// GetCachedClassification returns nil when the name has not been classified
	GetCachedClassification(name string) (*classify.Result, error)

	// SetCachedClassification stores a classification by exact name
	SetCachedClassification(name string, result classify.Result) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db         *bbolt.DB
	validate   *validator.Validate
	timeSource TimeSource
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	return NewBoltDBWithDeps(path, &defaultTimeSource{})
}

// NewBoltDBWithDeps creates a new BoltDB instance with a custom time source
func NewBoltDBWithDeps(path string, timeSrc TimeSource) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{
			productsBucket,
			productNamesBucket,
			purchasesBucket,
			receiptsBucket,
			unitsBucket,
			classificationBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}

		index, err := tx.CreateBucketIfNotExists([]byte(unitStatusBucket))
		if err != nil {
			return err
		}
		for _, status := range statuses {
			if _, err := index.CreateBucketIfNotExists([]byte(status)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{
		db:         db,
		validate:   validator.New(),
		timeSource: timeSrc,
	}, nil
}

// IsImported reports whether purchases exist for the receipt
func (b *BoltDB) IsImported(receiptID string) (bool, error) {
	var imported bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		imported = tx.Bucket([]byte(receiptsBucket)).Get([]byte(receiptID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking receipt: %w", err)
	}
	return imported, nil
}

// ImportReceipt writes a receipt's purchases and units in one transaction.
// A missing classification keeps an existing product's metadata as it is.
func (b *BoltDB) ImportReceipt(items parsing.ReceiptItems, classifications map[string]classify.Result) (int, error) {
	now := b.timeSource.Now()
	var written int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		receipts := tx.Bucket([]byte(receiptsBucket))
		if receipts.Get([]byte(items.ReceiptID)) != nil || len(items.Items) == 0 {
			return nil
		}
		if err := b.validate.Struct(items); err != nil {
			return fmt.Errorf("validating receipt items: %w", err)
		}

		purchaseIDs := make([]uint64, 0, len(items.Items))
		for _, item := range items.Items {
			var result *classify.Result
			if r, ok := classifications[item.Name]; ok {
				result = &r
			}

			product, err := upsertProduct(tx, item.Name, result, now)
			if err != nil {
				return fmt.Errorf("saving product %q: %w", item.Name, err)
			}

			purchase, err := insertPurchase(tx, product.ID, items, item, now)
			if err != nil {
				return fmt.Errorf("saving purchase of %q: %w", item.Name, err)
			}
			purchaseIDs = append(purchaseIDs, purchase.ID)
		}

		data, err := json.Marshal(purchaseIDs)
		if err != nil {
			return fmt.Errorf("marshaling receipt index: %w", err)
		}
		if err := receipts.Put([]byte(items.ReceiptID), data); err != nil {
			return fmt.Errorf("indexing receipt: %w", err)
		}

		written = len(purchaseIDs)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("importing receipt %s: %w", items.ReceiptID, err)
	}
	return written, nil
}

func upsertProduct(tx *bbolt.Tx, name string, result *classify.Result, now time.Time) (*Product, error) {
	names := tx.Bucket([]byte(productNamesBucket))
	products := tx.Bucket([]byte(productsBucket))

	if id := names.Get([]byte(name)); id != nil {
		var product Product
		if err := getJSON(products, id, &product); err != nil {
			return nil, err
		}
		if result == nil {
			return &product, nil
		}
		product.Result = *result
		product.UpdatedAt = now
		return &product, putJSON(products, itob(product.ID), product)
	}

	id, err := products.NextSequence()
	if err != nil {
		return nil, err
	}
	product := Product{
		ID:        id,
		Name:      name,
		Result:    classify.Unclassified(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if result != nil {
		product.Result = *result
	}

	if err := names.Put([]byte(name), itob(id)); err != nil {
		return nil, err
	}
	return &product, putJSON(products, itob(id), product)
}

func insertPurchase(tx *bbolt.Tx, productID uint64, items parsing.ReceiptItems, item parsing.Item, now time.Time) (*Purchase, error) {
	purchases := tx.Bucket([]byte(purchasesBucket))
	units := tx.Bucket([]byte(unitsBucket))
	inStock := statusIndex(tx, InStock)

	id, err := purchases.NextSequence()
	if err != nil {
		return nil, err
	}
	purchase := Purchase{
		ID:          id,
		ProductID:   productID,
		ReceiptID:   items.ReceiptID,
		StoreName:   items.StoreName,
		Price:       item.UnitPrice,
		Quantity:    item.Quantity,
		Discount:    item.Discount,
		Barcode:     item.Barcode,
		PurchasedAt: items.PurchasedAt,
		UnitIDs:     make([]uint64, 0, item.Quantity),
	}

	for i := 0; i < item.Quantity; i++ {
		unitID, err := units.NextSequence()
		if err != nil {
			return nil, err
		}
		unit := Unit{
			ID:         unitID,
			PurchaseID: id,
			Status:     InStock,
			UpdatedAt:  now,
		}
		if err := putJSON(units, itob(unitID), unit); err != nil {
			return nil, err
		}
		if err := inStock.Put(itob(unitID), itob(id)); err != nil {
			return nil, err
		}
		purchase.UnitIDs = append(purchase.UnitIDs, unitID)
	}

	return &purchase, putJSON(purchases, itob(id), purchase)
}

// stockedUnit is an in-stock unit joined with its purchase and product
type stockedUnit struct {
	unitID   uint64
	purchase *Purchase
	product  *Product
}

// inStockUnits joins every in-stock unit with its purchase and product
func inStockUnits(tx *bbolt.Tx) ([]stockedUnit, error) {
	purchases := tx.Bucket([]byte(purchasesBucket))
	products := tx.Bucket([]byte(productsBucket))

	purchaseCache := make(map[uint64]*Purchase)
	productCache := make(map[uint64]*Product)

	var rows []stockedUnit
	err := statusIndex(tx, InStock).ForEach(func(k, v []byte) error {
		purchaseID := btoi(v)
		purchase, ok := purchaseCache[purchaseID]
		if !ok {
			purchase = &Purchase{}
			if err := getJSON(purchases, v, purchase); err != nil {
				return fmt.Errorf("loading purchase %d: %w", purchaseID, err)
			}
			purchaseCache[purchaseID] = purchase
		}

		product, ok := productCache[purchase.ProductID]
		if !ok {
			product = &Product{}
			if err := getJSON(products, itob(purchase.ProductID), product); err != nil {
				return fmt.Errorf("loading product %d: %w", purchase.ProductID, err)
			}
			productCache[purchase.ProductID] = product
		}

		rows = append(rows, stockedUnit{
			unitID:   btoi(k),
			purchase: purchase,
			product:  product,
		})
		return nil
	})
	return rows, err
}

// ListInStock returns in-stock products, most recently purchased first.
// Quantity is the number of in-stock units.
func (b *BoltDB) ListInStock() ([]StockRow, error) {
	rows := make([]StockRow, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		units, err := inStockUnits(tx)
		if err != nil {
			return err
		}

		byProduct := make(map[uint64]int)
		for _, u := range units {
			i, ok := byProduct[u.product.ID]
			if !ok {
				i = len(rows)
				byProduct[u.product.ID] = i
				rows = append(rows, StockRow{
					Name:          u.product.Name,
					Category:      u.product.Category,
					Subcategory:   u.product.Subcategory,
					StorageClass:  u.product.StorageClass,
					IsFood:        u.product.IsFood,
					ShelfLifeDays: u.product.ShelfLifeDays,
					ContentAmount: u.product.ContentAmount,
					ContentUnit:   u.product.ContentUnit,
					LastPurchased: u.purchase.PurchasedAt,
					StoreName:     u.purchase.StoreName,
				})
			}
			row := &rows[i]
			row.Quantity++
			if u.purchase.PurchasedAt.After(row.LastPurchased) {
				row.LastPurchased = u.purchase.PurchasedAt
				row.StoreName = u.purchase.StoreName
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].LastPurchased.Equal(rows[j].LastPurchased) {
			return rows[i].LastPurchased.After(rows[j].LastPurchased)
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

// ListExpiringSoon returns in-stock units whose expiry date is at most
// withinDays calendar days away, soonest first. Already expired units have a
// negative DaysRemaining and are included.
func (b *BoltDB) ListExpiringSoon(withinDays int) ([]ExpiryRow, error) {
	today := b.timeSource.Now()
	rows := make([]ExpiryRow, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		units, err := inStockUnits(tx)
		if err != nil {
			return err
		}

		for _, u := range units {
			expiry, ok := expiresAt(u.product, u.purchase)
			if !ok {
				continue
			}
			remaining := daysBetween(today, expiry)
			if remaining > withinDays {
				continue
			}
			rows = append(rows, ExpiryRow{
				UnitID:        u.unitID,
				Name:          u.product.Name,
				Category:      u.product.Category,
				StorageClass:  u.product.StorageClass,
				PurchasedAt:   u.purchase.PurchasedAt,
				ExpiresAt:     expiry,
				DaysRemaining: remaining,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing expiring units: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DaysRemaining != rows[j].DaysRemaining {
			return rows[i].DaysRemaining < rows[j].DaysRemaining
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].UnitID < rows[j].UnitID
	})
	return rows, nil
}

// MarkConsumed consumes up to count in-stock units of the named product,
// oldest purchase first. Consuming more than is in stock consumes what is
// there; an unknown name consumes nothing.
func (b *BoltDB) MarkConsumed(name string, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	now := b.timeSource.Now()
	var consumed int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(productNamesBucket)).Get([]byte(name))
		if id == nil {
			return nil
		}
		productID := btoi(id)

		units, err := inStockUnits(tx)
		if err != nil {
			return err
		}

		candidates := make([]stockedUnit, 0)
		for _, u := range units {
			if u.product.ID == productID {
				candidates = append(candidates, u)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			pi, pj := candidates[i].purchase.PurchasedAt, candidates[j].purchase.PurchasedAt
			if !pi.Equal(pj) {
				return pi.Before(pj)
			}
			return candidates[i].unitID < candidates[j].unitID
		})

		if len(candidates) > count {
			candidates = candidates[:count]
		}
		for _, u := range candidates {
			if err := transition(tx, u.unitID, Consumed, now); err != nil {
				return err
			}
		}
		consumed = len(candidates)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("consuming %q: %w", name, err)
	}
	return consumed, nil
}

// ExpireStale marks in-stock units whose expiry date is before today as expired
func (b *BoltDB) ExpireStale() (int, error) {
	now := b.timeSource.Now()
	var expired int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		units, err := inStockUnits(tx)
		if err != nil {
			return err
		}

		for _, u := range units {
			expiry, ok := expiresAt(u.product, u.purchase)
			if !ok || daysBetween(now, expiry) >= 0 {
				continue
			}
			if err := transition(tx, u.unitID, Expired, now); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expiring stale units: %w", err)
	}
	return expired, nil
}

// transition moves an in-stock unit to a final status
func transition(tx *bbolt.Tx, unitID uint64, status UnitStatus, now time.Time) error {
	units := tx.Bucket([]byte(unitsBucket))
	key := itob(unitID)

	var unit Unit
	if err := getJSON(units, key, &unit); err != nil {
		return fmt.Errorf("loading unit %d: %w", unitID, err)
	}
	if unit.Status != InStock {
		return fmt.Errorf("unit %d is already %s", unitID, unit.Status)
	}

	unit.Status = status
	unit.UpdatedAt = now
	if err := putJSON(units, key, unit); err != nil {
		return err
	}
	if err := statusIndex(tx, InStock).Delete(key); err != nil {
		return err
	}
	return statusIndex(tx, status).Put(key, itob(unit.PurchaseID))
}

// GetProduct returns the product with the given name, nil if unknown
func (b *BoltDB) GetProduct(name string) (*Product, error) {
	var product *Product
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(productNamesBucket)).Get([]byte(name))
		if id == nil {
			return nil
		}
		product = &Product{}
		return getJSON(tx.Bucket([]byte(productsBucket)), id, product)
	})
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", name, err)
	}
	return product, nil
}

// ReceiptUnits returns every unit bought on a receipt, whatever its status
func (b *BoltDB) ReceiptUnits(receiptID string) ([]Unit, error) {
	result := make([]Unit, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptsBucket)).Get([]byte(receiptID))
		if data == nil {
			return nil
		}
		var purchaseIDs []uint64
		if err := json.Unmarshal(data, &purchaseIDs); err != nil {
			return fmt.Errorf("unmarshaling receipt index: %w", err)
		}

		purchases := tx.Bucket([]byte(purchasesBucket))
		units := tx.Bucket([]byte(unitsBucket))
		for _, purchaseID := range purchaseIDs {
			var purchase Purchase
			if err := getJSON(purchases, itob(purchaseID), &purchase); err != nil {
				return err
			}
			for _, unitID := range purchase.UnitIDs {
				var unit Unit
				if err := getJSON(units, itob(unitID), &unit); err != nil {
					return err
				}
				result = append(result, unit)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing units of receipt %s: %w", receiptID, err)
	}
	return result, nil
}

// GetCachedClassification returns nil when the name has not been classified
func (b *BoltDB) GetCachedClassification(name string) (*classify.Result, error) {
	var result *classify.Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(classificationBucket)).Get([]byte(name))
		if data == nil {
			return nil
		}
		result = &classify.Result{}
		return json.Unmarshal(data, result)
	})
	if err != nil {
		return nil, fmt.Errorf("reading cached classification: %w", err)
	}
	return result, nil
}

// SetCachedClassification stores a classification by exact name
func (b *BoltDB) SetCachedClassification(name string, result classify.Result) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(classificationBucket)), []byte(name), result)
	})
	if err != nil {
		return fmt.Errorf("caching classification: %w", err)
	}
	return nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

var errNotFound = errors.New("record not found")

func statusIndex(tx *bbolt.Tx, status UnitStatus) *bbolt.Bucket {
	return tx.Bucket([]byte(unitStatusBucket)).Bucket([]byte(status))
}

func getJSON(bucket *bbolt.Bucket, key []byte, v any) error {
	data := bucket.Get(key)
	if data == nil {
		return errNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(bucket *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return bucket.Put(key, data)
}

// itob encodes an id as a big-endian key so that keys sort numerically
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
