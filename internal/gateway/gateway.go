package gateway

import (
	"context"

	"jewelry_checkout/internal/model"
)

// StripeRequest - параметры списания с новой карты через Stripe
type StripeRequest struct {
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethodID string            `json:"payment_method_id"`
	Item            model.JewelryItem `json:"item"`
}

// PayPalRequest - параметры оплаты через PayPal
type PayPalRequest struct {
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Item       model.JewelryItem `json:"item"`
	PayerEmail string            `json:"payer_email"`
}

// CertificateUpload - загружаемый файл сертификата
type CertificateUpload struct {
	FileName      string
	ContentType   string
	Size          int64
	JewelryItemID string
}

// CertificateVerification - результат проверки подлинности сертификата
type CertificateVerification struct {
	CertificateID     string `json:"certificate_id"`
	CertificateNumber string `json:"certificate_number"`
	Verified          bool   `json:"verified"`
	Message           string `json:"message"`
}

// PaymentGateway - внешняя платежная способность.
// Здесь она симулируется, в продакшене это сетевой клиент;
// интерфейс внедряется, чтобы тесты задавали исход детерминированно
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, amount float64, method string, item model.JewelryItem) (model.PaymentResult, error)
	ProcessStripePayment(ctx context.Context, req StripeRequest) (model.PaymentResult, error)
	ProcessPayPalPayment(ctx context.Context, req PayPalRequest) (model.PaymentResult, error)
	SendConfirmationEmail(ctx context.Context, result model.PaymentResult, email string) (model.EmailResult, error)
}

// CertificateService - периферийный коллаборатор для страниц сертификации
type CertificateService interface {
	UploadCertificate(ctx context.Context, upload CertificateUpload) (model.Certificate, error)
	GetCertifications(ctx context.Context, jewelryItemID string) ([]model.Certificate, error)
	VerifyCertificate(ctx context.Context, certificateID, certificateNumber string) (CertificateVerification, error)
}
