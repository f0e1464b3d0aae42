package model

import "time"

// Шаги мастера оформления заказа
type WizardStep int

const (
	StepShippingBilling WizardStep = iota + 1
	StepPayment
	StepInsurance
	StepPaymentCapture
	StepSuccess
)

func (s WizardStep) String() string {
	switch s {
	case StepShippingBilling:
		return "shipping_billing"
	case StepPayment:
		return "payment"
	case StepInsurance:
		return "insurance"
	case StepPaymentCapture:
		return "payment_capture"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Типы способов оплаты
const (
	PaymentTypeCard   = "card"
	PaymentTypeStripe = "stripe"
	PaymentTypePayPal = "paypal"
)

// Уровни страхования ювелирного изделия
const (
	InsuranceTierNone    = "No Insurance"
	InsuranceTierBasic   = "Basic Insurance"
	InsuranceTierPremium = "Premium Insurance"
)

// JewelryItem - лот аукциона, на который оформляется заказ
type JewelryItem struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Address - почтовый адрес покупателя
type Address struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country"`
}

// BillingAddress - платежный адрес; при SameAsShipping=true
// фактический адрес всегда берется из адреса доставки
type BillingAddress struct {
	Address
	SameAsShipping bool `json:"same_as_shipping"`
}

// PaymentMethod - выбранный способ оплаты.
// Type - card/stripe/paypal, поля карты заполнены только для сохраненной карты
type PaymentMethod struct {
	Type       string `json:"type" validate:"required,oneof=card stripe paypal"`
	CardNumber string `json:"card_number,omitempty"`
	CardHolder string `json:"card_holder,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
	PayerEmail string `json:"payer_email,omitempty"`
}

// Insurance - страхование изделия (процент от его стоимости)
type Insurance struct {
	Selected bool    `json:"selected"`
	Tier     string  `json:"tier"`
	Amount   float64 `json:"amount"`
}

// Shipping - способ доставки и страхование пересылки
type Shipping struct {
	Method        string  `json:"method"`
	Cost          float64 `json:"cost"`
	Insurance     bool    `json:"insurance"`
	InsuranceCost float64 `json:"insurance_cost"`
}

// OrderSummary - производная сводка заказа.
// Никогда не редактируется по частям, только пересчитывается целиком
type OrderSummary struct {
	ItemTotal         float64 `json:"item_total"`
	ShippingCost      float64 `json:"shipping_cost"`
	InsuranceCost     float64 `json:"insurance_cost"`
	ShippingInsurance float64 `json:"shipping_insurance"`
	Tax               float64 `json:"tax"`
	Total             float64 `json:"total"`
}

// PaymentResult - результат обработки платежа шлюзом
type PaymentResult struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	PayerEmail    string    `json:"payer_email,omitempty"`
	ItemID        string    `json:"item_id,omitempty"`
	ItemTitle     string    `json:"item_title,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EmailResult - результат отправки письма с подтверждением
type EmailResult struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	OrderID string `json:"order_id"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Certificate - сертификат или оценка ювелирного изделия
type Certificate struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	CertificateNumber string    `json:"certificate_number,omitempty"`
	AppraisedValue    string    `json:"appraised_value,omitempty"`
	FileName          string    `json:"file_name,omitempty"`
	FileType          string    `json:"file_type,omitempty"`
	FileSize          int64     `json:"file_size,omitempty"`
	JewelryItemID     string    `json:"jewelry_item_id"`
	Date              time.Time `json:"date"`
}

// CompletedOrder - завершенный заказ, сохраняемый в БД после успешной оплаты
type CompletedOrder struct {
	OrderUID        string         `json:"order_uid" validate:"required"`
	JewelryItemID   string         `json:"jewelry_item_id" validate:"required"`
	JewelryTitle    string         `json:"jewelry_title" validate:"required"`
	BuyerEmail      string         `json:"buyer_email" validate:"required,email"`
	PaymentType     string         `json:"payment_type" validate:"required,oneof=card stripe paypal"`
	TransactionID   string         `json:"transaction_id" validate:"required"`
	Status          string         `json:"status" validate:"required"`
	ShippingAddress Address        `json:"shipping_address"`
	BillingAddress  BillingAddress `json:"billing_address"`
	Summary         OrderSummary   `json:"summary"`
	CreatedAt       time.Time      `json:"created_at" validate:"required"`
}

// AuctionWin - событие выигрыша аукциона из Kafka,
// из которого создается новая сессия оформления заказа
type AuctionWin struct {
	AuctionID   string      `json:"auction_id" validate:"required"`
	Item        JewelryItem `json:"item" validate:"required"`
	BidAmount   float64     `json:"bid_amount" validate:"required,gt=0"`
	WinnerEmail string      `json:"winner_email" validate:"required,email"`
	WonAt       time.Time   `json:"won_at" validate:"required"`
}
