// Package model содержит доменные сущности сервиса printhub.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankDetails содержит реквизиты для выплат фотографу.
type BankDetails struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
}

// Complete сообщает, достаточно ли реквизитов для выплаты.
func (b BankDetails) Complete() bool {
	return b.AccountNumber != "" && b.IFSC != ""
}

// Photographer представляет зарегистрированного фотографа.
type Photographer struct {
	ID           string
	Code         string
	DisplayName  string
	Email        string
	PhoneNumber  string
	OrderCounter int64
	BankDetails  BankDetails
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderStatus описывает статус выполнения заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPrinting   OrderStatus = "printing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusUnaccepted OrderStatus = "unaccepted"
	OrderStatusRejected   OrderStatus = "rejected"
)

// OrderStatuses перечисляет все известные статусы заказа.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPrinting,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusUnaccepted,
	OrderStatusRejected,
}

// Valid сообщает, является ли статус известным.
func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// InProgress сообщает, находится ли заказ в работе.
func (s OrderStatus) InProgress() bool {
	return s == OrderStatusPending || s == OrderStatusPrinting || s == OrderStatusShipped
}

// Buyer содержит данные покупателя, которому печатается модель.
type Buyer struct {
	Name    string
	Phone   string
	Address string
	Pincode string
}

// Order описывает заказ фотографа на печать.
type Order struct {
	ID               string
	OrderID          string
	PhotographerID   string
	PhotographerCode string
	PhotographerName string
	Buyer            Buyer
	ModelID          string
	ModelName        string
	Remarks          string
	PhotoURLs        []string
	Status           OrderStatus
	AdminComments    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ManualAdjustment описывает ручную корректировку заработка администратором.
type ManualAdjustment struct {
	ID             string
	PhotographerID string
	Amount         decimal.Decimal
	Remarks        string
	AdminID        string
	AdminEmail     string
	CreatedAt      time.Time
}

// RedeemStatus описывает статус заявки на вывод средств.
type RedeemStatus string

const (
	RedeemStatusPending  RedeemStatus = "pending"
	RedeemStatusPaid     RedeemStatus = "paid"
	RedeemStatusRejected RedeemStatus = "rejected"
)

// Valid сообщает, является ли статус известным.
func (s RedeemStatus) Valid() bool {
	return s == RedeemStatusPending || s == RedeemStatusPaid || s == RedeemStatusRejected
}

// RedeemRequest описывает заявку фотографа на вывод заработка.
type RedeemRequest struct {
	ID             string
	PhotographerID string
	Amount         decimal.Decimal
	Status         RedeemStatus
	AmountPaid     decimal.Decimal
	Remarks        string
	AdminID        string
	RequestedAt    time.Time
	ProcessedAt    *time.Time
}

// CatalogModel описывает модель из каталога, доступную для заказа.
type CatalogModel struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	CreatedAt   time.Time
}

// OrphanUpload описывает загруженный объект, который не удалось удалить при откате.
type OrphanUpload struct {
	ID        int64
	Key       string
	Reason    string
	Attempts  int
	CreatedAt time.Time
}

// Snapshot содержит согласованный срез данных одного фотографа.
type Snapshot struct {
	Photographer Photographer
	Orders       []Order
	Adjustments  []ManualAdjustment
	Redeems      []RedeemRequest
}

// Actor описывает аутентифицированного вызывающего.
type Actor struct {
	ID    string
	Email string
	Admin bool
}
