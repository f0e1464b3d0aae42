package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"jewelry_checkout/internal/model"
)

// SimulatorConfig - задержки и доли отказов симулируемого шлюза.
// Доли отказов по умолчанию повторяют поведение реального мок-сервиса,
// в тестах они выставляются в 0 или 1
type SimulatorConfig struct {
	Latency        time.Duration
	CardFailRate   float64
	StripeFailRate float64
	PayPalFailRate float64
	UploadFailRate float64
	EmailFailRate  float64
}

// DefaultSimulatorConfig повторяет тайминги и вероятности мок-сервиса
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Latency:        1500 * time.Millisecond,
		CardFailRate:   0.15,
		StripeFailRate: 0.10,
		PayPalFailRate: 0.05,
		UploadFailRate: 0.10,
	}
}

// Simulator - внутрипроцессная реализация PaymentGateway и CertificateService,
// эмулирующая сетевые условия: задержку и случайные отказы
type Simulator struct {
	cfg SimulatorConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator создает симулятор с внедряемым источником случайности
func NewSimulator(cfg SimulatorConfig, src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{
		cfg: cfg,
		rnd: rand.New(src),
	}
}

// sleep эмулирует сетевую задержку, уважая отмену контекста
func (g *Simulator) sleep(ctx context.Context) error {
	if g.cfg.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.cfg.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Simulator) roll(rate float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64() < rate
}

// ProcessPayment списывает сумму сохраненным инструментом
func (g *Simulator) ProcessPayment(ctx context.Context, amount float64, method string, item model.JewelryItem) (model.PaymentResult, error) {
	slog.Debug("Simulating payment", "method", method, "amount", amount, "item", item.Title)
	if err := g.sleep(ctx); err != nil {
		return model.PaymentResult{}, err
	}

	if g.roll(g.cfg.CardFailRate) {
		return model.PaymentResult{}, fmt.Errorf("payment failed: %s transaction declined", method)
	}

	return model.PaymentResult{
		Success:       true,
		TransactionID: fmt.Sprintf("mock_%s_%d", method, time.Now().UnixMilli()),
		Amount:        amount,
		Method:        method,
		Status:        "completed",
		ItemID:        item.ID,
		ItemTitle:     item.Title,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// ProcessStripePayment списывает сумму с новой карты через Stripe
func (g *Simulator) ProcessStripePayment(ctx context.Context, req StripeRequest) (model.PaymentResult, error) {
	slog.Debug("Simulating stripe payment", "amount", req.Amount, "payment_method_id", req.PaymentMethodID)
	if err := g.sleep(ctx); err != nil {
		return model.PaymentResult{}, err
	}

	if g.roll(g.cfg.StripeFailRate) {
		return model.PaymentResult{}, fmt.Errorf("stripe payment failed: insufficient funds")
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	return model.PaymentResult{
		Success:       true,
		TransactionID: fmt.Sprintf("pi_%d", time.Now().UnixMilli()),
		Amount:        req.Amount,
		Currency:      currency,
		Method:        model.PaymentTypeStripe,
		Status:        "succeeded",
		ItemID:        req.Item.ID,
		ItemTitle:     req.Item.Title,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// ProcessPayPalPayment проводит оплату через PayPal
func (g *Simulator) ProcessPayPalPayment(ctx context.Context, req PayPalRequest) (model.PaymentResult, error) {
	slog.Debug("Simulating paypal payment", "amount", req.Amount, "payer_email", req.PayerEmail)
	if err := g.sleep(ctx); err != nil {
		return model.PaymentResult{}, err
	}

	if g.roll(g.cfg.PayPalFailRate) {
		return model.PaymentResult{}, fmt.Errorf("paypal payment failed: payment declined")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	payerEmail := req.PayerEmail
	if payerEmail == "" {
		payerEmail = "buyer@example.com"
	}

	return model.PaymentResult{
		Success:       true,
		TransactionID: fmt.Sprintf("pay_%d", time.Now().UnixMilli()),
		Amount:        req.Amount,
		Currency:      currency,
		Method:        model.PaymentTypePayPal,
		Status:        "COMPLETED",
		PayerEmail:    payerEmail,
		ItemID:        req.Item.ID,
		ItemTitle:     req.Item.Title,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// SendConfirmationEmail отправляет письмо с подтверждением заказа
func (g *Simulator) SendConfirmationEmail(ctx context.Context, result model.PaymentResult, email string) (model.EmailResult, error) {
	slog.Debug("Simulating confirmation email", "email", email, "transaction_id", result.TransactionID)
	if err := g.sleep(ctx); err != nil {
		return model.EmailResult{}, err
	}

	if g.roll(g.cfg.EmailFailRate) {
		return model.EmailResult{}, fmt.Errorf("email delivery failed: mailbox unavailable")
	}

	return model.EmailResult{
		Success: true,
		Email:   email,
		OrderID: result.TransactionID,
		Subject: fmt.Sprintf("Order Confirmation #%s", result.TransactionID),
		Message: "Thank you for your jewelry purchase!",
	}, nil
}

// UploadCertificate принимает файл сертификата для изделия
func (g *Simulator) UploadCertificate(ctx context.Context, upload CertificateUpload) (model.Certificate, error) {
	slog.Debug("Simulating certificate upload", "jewelry_item_id", upload.JewelryItemID, "file", upload.FileName)
	if err := g.sleep(ctx); err != nil {
		return model.Certificate{}, err
	}

	if g.roll(g.cfg.UploadFailRate) {
		return model.Certificate{}, fmt.Errorf("certificate upload failed: file format not supported")
	}

	fileType := "Image"
	if strings.Contains(upload.ContentType, "pdf") {
		fileType = "PDF"
	}

	return model.Certificate{
		ID:                fmt.Sprintf("cert_%d", time.Now().UnixMilli()),
		Name:              upload.FileName,
		CertificateNumber: fmt.Sprintf("CERT-%09d", g.certNumber()),
		FileName:          upload.FileName,
		FileType:          fileType,
		FileSize:          upload.Size,
		JewelryItemID:     upload.JewelryItemID,
		Date:              time.Now().UTC(),
	}, nil
}

func (g *Simulator) certNumber() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(1_000_000_000)
}

// GetCertifications возвращает записи сертификации изделия
func (g *Simulator) GetCertifications(ctx context.Context, jewelryItemID string) ([]model.Certificate, error) {
	slog.Debug("Fetching certifications", "jewelry_item_id", jewelryItemID)
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	return []model.Certificate{
		{
			ID:                "1",
			Name:              "GIA Diamond Certificate.pdf",
			Type:              "GIA",
			CertificateNumber: "GIA123456789",
			JewelryItemID:     jewelryItemID,
			Date:              time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:             "2",
			Name:           "Insurance Appraisal.docx",
			Type:           "Appraisal",
			AppraisedValue: "$5,200.00",
			JewelryItemID:  jewelryItemID,
			Date:           time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:                "3",
			Name:              "AGS Gemstone Report.png",
			Type:              "AGS",
			CertificateNumber: "AGS987654321",
			JewelryItemID:     jewelryItemID,
			Date:              time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}, nil
}

// VerifyCertificate проверяет подлинность сертификата по номеру
func (g *Simulator) VerifyCertificate(ctx context.Context, certificateID, certificateNumber string) (CertificateVerification, error) {
	slog.Debug("Verifying certificate", "certificate_id", certificateID)
	if err := g.sleep(ctx); err != nil {
		return CertificateVerification{}, err
	}

	return CertificateVerification{
		CertificateID:     certificateID,
		CertificateNumber: certificateNumber,
		Verified:          true,
		Message:           "Certificate verified successfully",
	}, nil
}
