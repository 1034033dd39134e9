package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountTable is the column layout of the accounts table.
type AccountTable struct {
	ID           uuid.UUID      `gorm:"type:char(36);primaryKey"`
	Name         string         `gorm:"size:255;not null;index"`
	Email        string         `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string         `gorm:"size:255;not null"`
	IsMerchant   bool           `gorm:"default:false;index"`
	Active       bool           `gorm:"default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (AccountTable) TableName() string { return "accounts" }

// CardTable is the column layout of the cards table.
type CardTable struct {
	ID         uuid.UUID       `gorm:"type:char(36);primaryKey"`
	AccountID  uuid.UUID       `gorm:"type:char(36);not null;index"`
	CardNumber string          `gorm:"size:19;not null"` // Masked card number
	CardExpiry string          `gorm:"size:5;not null"`  // MM/YY format
	Balance    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Active     bool            `gorm:"default:true;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (CardTable) TableName() string { return "cards" }

// PaymentTable is the column layout of the payments table.
type PaymentTable struct {
	ID                uuid.UUID       `gorm:"type:char(36);primaryKey"`
	MerchantAccountID uuid.UUID       `gorm:"type:char(36);not null;index"`
	CardID            uuid.UUID       `gorm:"type:char(36);not null;index"`
	CardCVV           string          `gorm:"column:card_cvv;size:4"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status            string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (PaymentTable) TableName() string { return "payments" }

// PaymentLogTable is the column layout of the payment_logs table.
// All payment attempts are logged regardless of success or failure.
type PaymentLogTable struct {
	ID           uuid.UUID      `gorm:"type:char(36);primaryKey"`
	PaymentID    uuid.UUID      `gorm:"type:char(36);not null;index"`
	Status       string         `gorm:"type:varchar(20);not null;index"`
	ErrorMessage string         `gorm:"type:text"`
	CreatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (PaymentLogTable) TableName() string { return "payment_logs" }

// TransferTable is the column layout of the transfers table.
type TransferTable struct {
	ID                uuid.UUID       `gorm:"type:char(36);primaryKey"`
	SourceCardID      uuid.UUID       `gorm:"type:char(36);not null;index"`
	DestinationCardID uuid.UUID       `gorm:"type:char(36);not null;index"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status            string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	ErrorMessage      string          `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (TransferTable) TableName() string { return "transfers" }

// Tables lists every table definition in dependency order.
func Tables() []any {
	return []any{
		&AccountTable{},
		&CardTable{},
		&PaymentTable{},
		&PaymentLogTable{},
		&TransferTable{},
	}
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Tables()...)
}

// Reset drops all tables, dependents first.
func Reset(db *gorm.DB) error {
	tables := Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return err
		}
	}
	return nil
}
