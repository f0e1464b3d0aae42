package gateway

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"jewelry_checkout/internal/model"

	"github.com/stretchr/testify/require"
)

func newTestSimulator(cfg SimulatorConfig) *Simulator {
	return NewSimulator(cfg, rand.NewSource(1))
}

func TestSimulator_ProcessPayment(t *testing.T) {
	item := model.JewelryItem{ID: "item001", Title: "Diamond Ring"}

	t.Run("Success with zero fail rate", func(t *testing.T) {
		sim := newTestSimulator(SimulatorConfig{})

		result, err := sim.ProcessPayment(context.Background(), 2777, model.PaymentTypeCard, item)
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Contains(t, result.TransactionID, "mock_card_")
		require.Equal(t, "completed", result.Status)
		require.InDelta(t, 2777.0, result.Amount, 0.001)
	})

	t.Run("Guaranteed decline with fail rate 1", func(t *testing.T) {
		sim := newTestSimulator(SimulatorConfig{CardFailRate: 1.0})

		_, err := sim.ProcessPayment(context.Background(), 2777, model.PaymentTypeCard, item)
		require.Error(t, err)
		require.Contains(t, err.Error(), "declined")
	})

	t.Run("Context cancellation interrupts latency", func(t *testing.T) {
		sim := newTestSimulator(SimulatorConfig{Latency: 10 * time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := sim.ProcessPayment(ctx, 100, model.PaymentTypeCard, item)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSimulator_StripeAndPayPal(t *testing.T) {
	sim := newTestSimulator(SimulatorConfig{})
	item := model.JewelryItem{ID: "item001", Title: "Diamond Ring"}

	stripe, err := sim.ProcessStripePayment(context.Background(), StripeRequest{Amount: 100, PaymentMethodID: "pm_123", Item: item})
	require.NoError(t, err)
	require.Contains(t, stripe.TransactionID, "pi_")
	require.Equal(t, "succeeded", stripe.Status)
	require.Equal(t, "usd", stripe.Currency, "Валюта по умолчанию - usd")

	paypal, err := sim.ProcessPayPalPayment(context.Background(), PayPalRequest{Amount: 100, Item: item})
	require.NoError(t, err)
	require.Contains(t, paypal.TransactionID, "pay_")
	require.Equal(t, "COMPLETED", paypal.Status)
	require.Equal(t, "buyer@example.com", paypal.PayerEmail, "Email плательщика подставляется по умолчанию")

	t.Run("Guaranteed stripe decline", func(t *testing.T) {
		failing := newTestSimulator(SimulatorConfig{StripeFailRate: 1.0})
		_, err := failing.ProcessStripePayment(context.Background(), StripeRequest{Amount: 100, Item: item})
		require.Error(t, err)
		require.Contains(t, err.Error(), "insufficient funds")
	})
}

func TestSimulator_Email(t *testing.T) {
	sim := newTestSimulator(SimulatorConfig{})
	result := model.PaymentResult{TransactionID: "mock_card_1"}

	email, err := sim.SendConfirmationEmail(context.Background(), result, "buyer@example.com")
	require.NoError(t, err)
	require.True(t, email.Success)
	require.Equal(t, "mock_card_1", email.OrderID)
	require.Contains(t, email.Subject, "mock_card_1")
}

func TestSimulator_Certificates(t *testing.T) {
	sim := newTestSimulator(SimulatorConfig{})

	t.Run("Upload detects pdf", func(t *testing.T) {
		cert, err := sim.UploadCertificate(context.Background(), CertificateUpload{
			FileName: "gia.pdf", ContentType: "application/pdf", Size: 1024, JewelryItemID: "item001",
		})
		require.NoError(t, err)
		require.Equal(t, "PDF", cert.FileType)
		require.Contains(t, cert.CertificateNumber, "CERT-")
	})

	t.Run("List returns canned records", func(t *testing.T) {
		certs, err := sim.GetCertifications(context.Background(), "item001")
		require.NoError(t, err)
		require.Len(t, certs, 3)
		for _, c := range certs {
			require.Equal(t, "item001", c.JewelryItemID)
		}
	})

	t.Run("Verification passes", func(t *testing.T) {
		verification, err := sim.VerifyCertificate(context.Background(), "1", "GIA123456789")
		require.NoError(t, err)
		require.True(t, verification.Verified)
	})
}
