package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/config"
	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, nom string, preu float64, stock int) models.Producte {
	t.Helper()
	p := models.Producte{Nom: nom, Preu: preu, Stock: stock, VendorID: 1}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func cartTotal(t *testing.T, db *gorm.DB, cartID uint) float64 {
	t.Helper()
	var crt models.Cart
	require.NoError(t, db.First(&crt, cartID).Error)
	return crt.TotalPrice
}

var buyer = owner.Owner{Kind: owner.KindUser, ID: 1}

func TestViewCreatesCartLazily(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	crt, err := svc.View(context.Background(), buyer)
	require.NoError(t, err)
	require.Equal(t, buyer.ID, crt.OwnerID)
	require.Equal(t, string(buyer.Kind), crt.OwnerKind)
	require.Zero(t, crt.TotalPrice)
	require.Empty(t, crt.CartItems)

	again, err := svc.View(context.Background(), buyer)
	require.NoError(t, err)
	require.Equal(t, crt.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestOneCartPerOwnerKind(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	// Same numeric id, different kinds: two distinct carts.
	userCart, err := svc.View(context.Background(), owner.Owner{Kind: owner.KindUser, ID: 5})
	require.NoError(t, err)
	vendorCart, err := svc.View(context.Background(), owner.Owner{Kind: owner.KindVendor, ID: 5})
	require.NoError(t, err)
	require.NotEqual(t, userCart.ID, vendorCart.ID)
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "formatge", 12.50, 10)

	crt, err := svc.AddItem(context.Background(), buyer, p.ID, 2, true)
	require.NoError(t, err)
	require.Len(t, crt.CartItems, 1)
	require.Equal(t, 12.50, crt.CartItems[0].ReservedPrice)
	require.Equal(t, 25.0, crt.TotalPrice)

	// Price change after add must not move the snapshot.
	require.NoError(t, db.Model(&models.Producte{}).Where("id = ?", p.ID).Update("preu", 99.0).Error)

	crt, err = svc.AddItem(context.Background(), buyer, p.ID, 1, true)
	require.NoError(t, err)
	require.Len(t, crt.CartItems, 1)
	require.EqualValues(t, 3, crt.CartItems[0].Quantity)
	require.Equal(t, 12.50, crt.CartItems[0].ReservedPrice)
	require.Equal(t, 37.50, crt.TotalPrice)
}

func TestAddItemStockExceeded(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "vi", 8.0, 3)

	_, err := svc.AddItem(context.Background(), buyer, p.ID, 4, true)
	var exceeded *StockExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, p.ID, exceeded.ProductID)
	require.Equal(t, 3, exceeded.Available)
	require.EqualValues(t, 0, exceeded.AlreadyInCart)

	// Nothing was written.
	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddItemStockExceededCountsExisting(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "pa", 1.0, 5)

	_, err := svc.AddItem(context.Background(), buyer, p.ID, 3, true)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), buyer, p.ID, 3, true)
	var exceeded *StockExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, 5, exceeded.Available)
	require.EqualValues(t, 3, exceeded.AlreadyInCart)

	// The existing line is untouched.
	var item models.CartItem
	require.NoError(t, db.Where("product_id = ?", p.ID).First(&item).Error)
	require.EqualValues(t, 3, item.Quantity)
}

func TestAddItemUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	_, err := svc.AddItem(context.Background(), buyer, 999, 1, true)
	require.True(t, errors.Is(err, ErrProductNotFound))
}

func TestUpdateItem(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "oli", 5.0, 10)

	crt, err := svc.AddItem(context.Background(), buyer, p.ID, 2, true)
	require.NoError(t, err)
	itemID := crt.CartItems[0].ID

	unselect := false
	crt, err = svc.UpdateItem(context.Background(), buyer, itemID, 4, &unselect)
	require.NoError(t, err)
	require.EqualValues(t, 4, crt.CartItems[0].Quantity)
	require.False(t, crt.CartItems[0].Selected)
	require.Equal(t, 20.0, crt.TotalPrice)

	// Over stock is rejected without touching the line.
	_, err = svc.UpdateItem(context.Background(), buyer, itemID, 11, nil)
	var exceeded *StockExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, 10, exceeded.Available)
	require.Equal(t, 20.0, cartTotal(t, db, crt.ID))
}

func TestUpdateItemAuthorization(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "mel", 6.0, 10)

	crt, err := svc.AddItem(context.Background(), buyer, p.ID, 1, true)
	require.NoError(t, err)
	itemID := crt.CartItems[0].ID

	other := owner.Owner{Kind: owner.KindUser, ID: 2}
	_, err = svc.UpdateItem(context.Background(), other, itemID, 2, nil)
	require.True(t, errors.Is(err, ErrNotOwner))

	stranger := owner.Owner{Kind: owner.KindVendor, ID: buyer.ID}
	_, err = svc.RemoveItem(context.Background(), stranger, itemID)
	require.True(t, errors.Is(err, ErrNotOwner))

	_, err = svc.UpdateItem(context.Background(), buyer, 999, 2, nil)
	require.True(t, errors.Is(err, ErrItemNotFound))
}

func TestRemoveItemRecomputesTotal(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	a := seedProduct(t, db, "a", 3.0, 10)
	b := seedProduct(t, db, "b", 7.0, 10)

	_, err := svc.AddItem(context.Background(), buyer, a.ID, 2, true)
	require.NoError(t, err)
	crt, err := svc.AddItem(context.Background(), buyer, b.ID, 1, true)
	require.NoError(t, err)
	require.Equal(t, 13.0, crt.TotalPrice)

	var itemA models.CartItem
	require.NoError(t, db.Where("product_id = ?", a.ID).First(&itemA).Error)

	crt, err = svc.RemoveItem(context.Background(), buyer, itemA.ID)
	require.NoError(t, err)
	require.Len(t, crt.CartItems, 1)
	require.Equal(t, 7.0, crt.TotalPrice)
}

func TestClear(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	p := seedProduct(t, db, "arros", 2.0, 10)

	_, err := svc.AddItem(context.Background(), buyer, p.ID, 5, true)
	require.NoError(t, err)

	crt, err := svc.Clear(context.Background(), buyer)
	require.NoError(t, err)
	require.Empty(t, crt.CartItems)
	require.Zero(t, crt.TotalPrice)
}

func TestTotalMatchesItemsAfterEveryMutation(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	a := seedProduct(t, db, "a", 1.5, 100)
	b := seedProduct(t, db, "b", 2.25, 100)

	assertInvariant := func(crt *models.Cart) {
		t.Helper()
		var sum float64
		for _, it := range crt.CartItems {
			sum += float64(it.Quantity) * it.ReservedPrice
		}
		require.Equal(t, sum, crt.TotalPrice)
	}

	crt, err := svc.AddItem(context.Background(), buyer, a.ID, 3, true)
	require.NoError(t, err)
	assertInvariant(crt)

	crt, err = svc.AddItem(context.Background(), buyer, b.ID, 7, true)
	require.NoError(t, err)
	assertInvariant(crt)

	crt, err = svc.UpdateItem(context.Background(), buyer, crt.CartItems[0].ID, 9, nil)
	require.NoError(t, err)
	assertInvariant(crt)

	crt, err = svc.RemoveItem(context.Background(), buyer, crt.CartItems[1].ID)
	require.NoError(t, err)
	assertInvariant(crt)
}

func TestCheckStockReportsAllShortfalls(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	a := seedProduct(t, db, "cafe", 4.0, 10)
	b := seedProduct(t, db, "sucre", 2.0, 10)
	c := seedProduct(t, db, "sal", 1.0, 10)

	_, err := svc.AddItem(context.Background(), buyer, a.ID, 8, true)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), buyer, b.ID, 10, true)
	require.NoError(t, err)
	// Unselected lines are not checked.
	_, err = svc.AddItem(context.Background(), buyer, c.ID, 10, false)
	require.NoError(t, err)

	// Stock moved since the items were added.
	require.NoError(t, db.Model(&models.Producte{}).Where("id = ?", a.ID).Update("stock", 5).Error)
	require.NoError(t, db.Model(&models.Producte{}).Where("id = ?", b.ID).Update("stock", 0).Error)
	require.NoError(t, db.Model(&models.Producte{}).Where("id = ?", c.ID).Update("stock", 0).Error)

	shortfalls, err := svc.CheckStock(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, shortfalls, 2)

	require.Equal(t, a.ID, shortfalls[0].ProductID)
	require.Equal(t, "cafe", shortfalls[0].ProductName)
	require.EqualValues(t, 8, shortfalls[0].Requested)
	require.Equal(t, 5, shortfalls[0].Available)

	require.Equal(t, b.ID, shortfalls[1].ProductID)
	require.Equal(t, 0, shortfalls[1].Available)

	// Dry run: nothing changed.
	var item models.CartItem
	require.NoError(t, db.Where("product_id = ?", a.ID).First(&item).Error)
	require.EqualValues(t, 8, item.Quantity)
}

func TestCheckStockNoCart(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	shortfalls, err := svc.CheckStock(context.Background(), buyer)
	require.NoError(t, err)
	require.Empty(t, shortfalls)
}
