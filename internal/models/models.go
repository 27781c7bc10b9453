package models

import (
	"time"
)

// Reserve and Order statuses. Transitions are enforced by the orders
// service, the columns only store the current value.
const (
	ReserveStatusPending   = "pending"
	ReserveStatusConfirmed = "confirmed"
	ReserveStatusCancelled = "cancelled"
	ReserveStatusCompleted = "completed"

	OrderStatusPending   = "pending"
	OrderStatusReserved  = "reserved"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
}

type Vendor struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Token     string    `gorm:"unique;not null"     json:"token"`
	OwnerID   uint      `gorm:"index;not null"      json:"owner_id"`
	OwnerKind string    `gorm:"not null"            json:"owner_kind"`
	ExpiresAt time.Time `gorm:"not null"            json:"expires_at"`
	Revoked   bool      `gorm:"default:false"       json:"revoked"`
}

type Botiga struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Nom        string `gorm:"not null"                 json:"nom"`
	Descripcio string `json:"descripcio"`
	VendorID   uint   `gorm:"index;not null"           json:"vendor_id"`
}

func (Botiga) TableName() string { return "botigues" }

type Producte struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Nom        string  `gorm:"not null"                 json:"nom"`
	Descripcio string  `json:"descripcio"`
	Preu       float64 `gorm:"not null"                 json:"preu"`
	Stock      int     `gorm:"not null;default:0"       json:"stock"`
	VendorID   uint    `gorm:"index;not null"           json:"vendor_id"`
	BotigaID   *uint   `gorm:"index"                    json:"botiga_id"`
	Botiga     *Botiga `gorm:"foreignKey:BotigaID"      json:"botiga,omitempty"`
}

// One cart per owner. The composite unique index is what makes
// concurrent first-accesses safe.
type Cart struct {
	ID         uint       `gorm:"primaryKey;autoIncrement"             json:"id"`
	OwnerID    uint       `gorm:"uniqueIndex:idx_carts_owner;not null" json:"owner_id"`
	OwnerKind  string     `gorm:"uniqueIndex:idx_carts_owner;not null" json:"owner_kind"`
	TotalPrice float64    `gorm:"not null;default:0"                   json:"total_price"`
	CartItems  []CartItem `gorm:"foreignKey:CartID"                    json:"cart_items,omitempty"`
}

type CartItem struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"     json:"id"`
	CartID        uint      `gorm:"index;not null"               json:"cart_id"`
	ProductID     uint      `gorm:"not null"                     json:"product_id"`
	Quantity      uint      `gorm:"not null;check:quantity > 0"  json:"quantity"`
	ReservedPrice float64   `gorm:"not null"                     json:"reserved_price"`
	Selected      bool      `gorm:"not null;default:true"        json:"selected"`
	Product       *Producte `gorm:"foreignKey:ProductID"         json:"product,omitempty"`
}

type Reserve struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID       uint          `gorm:"index:idx_reserves_buyer" json:"buyer_id"`
	BuyerKind     string        `gorm:"index:idx_reserves_buyer" json:"buyer_kind"`
	BotigaID      *uint         `gorm:"index"                    json:"botiga_id"`
	TotalReserved float64       `gorm:"not null"                 json:"total_reserved"`
	DepositAmount float64       `gorm:"not null"                 json:"deposit_amount"`
	Status        string        `gorm:"not null;default:pending" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ReserveItems  []ReserveItem `gorm:"foreignKey:ReserveID"     json:"reserve_items,omitempty"`
	Botiga        *Botiga       `gorm:"foreignKey:BotigaID"      json:"botiga,omitempty"`
}

type ReserveItem struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReserveID     uint      `gorm:"index;not null"           json:"reserve_id"`
	ProductID     uint      `gorm:"not null"                 json:"product_id"`
	Quantity      uint      `gorm:"not null"                 json:"quantity"`
	ReservedPrice float64   `gorm:"not null"                 json:"reserved_price"`
	Product       *Producte `gorm:"foreignKey:ProductID"     json:"product,omitempty"`
}

type Order struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ReserveID          uint       `gorm:"uniqueIndex;not null"     json:"reserve_id"`
	OrderNumber        string     `gorm:"uniqueIndex;not null"     json:"order_number"`
	TotalAmount        float64    `gorm:"not null"                 json:"total_amount"`
	PaymentMethod      string     `gorm:"not null"                 json:"payment_method"`
	TransactionID      *string    `json:"transaction_id"`
	Status             string     `gorm:"not null;default:pending" json:"status"`
	BuyerID            uint       `gorm:"index:idx_orders_buyer"   json:"buyer_id"`
	BuyerKind          string     `gorm:"index:idx_orders_buyer"   json:"buyer_kind"`
	CancellationReason *string    `json:"cancellation_reason"`
	PaymentDate        *time.Time `json:"payment_date"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Reserve            *Reserve   `gorm:"foreignKey:ReserveID"     json:"reserve,omitempty"`
}

// OrderCounter is a single-row table backing sequential order numbering.
// It is read and bumped under a row lock inside the checkout transaction,
// never via "select max, add one" on the orders table.
type OrderCounter struct {
	ID         uint  `gorm:"primaryKey"         json:"id"`
	LastNumber int64 `gorm:"not null;default:0" json:"last_number"`
}
