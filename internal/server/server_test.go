package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"jewelry_checkout/internal/gateway"
	"jewelry_checkout/internal/metrics"
	"jewelry_checkout/internal/model"
	"jewelry_checkout/internal/session"
	"jewelry_checkout/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

// memStore - хранилище заказов в памяти для тестов сервера
type memStore struct {
	mu     sync.Mutex
	orders map[string]model.CompletedOrder
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]model.CompletedOrder)}
}

func (m *memStore) SaveOrder(_ context.Context, order model.CompletedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderUID] = order
	return nil
}

func (m *memStore) GetOrderByUID(_ context.Context, uid string) (model.CompletedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[uid]
	if !ok {
		return model.CompletedOrder{}, storage.ErrOrderNotFound
	}
	return order, nil
}

func (m *memStore) GetPaymentHistory(_ context.Context, buyerEmail string) ([]model.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []model.PaymentResult
	for _, o := range m.orders {
		if o.BuyerEmail == buyerEmail {
			history = append(history, model.PaymentResult{
				Success: true, TransactionID: o.TransactionID, Amount: o.Summary.Total,
				Method: o.PaymentType, Status: o.Status, ItemID: o.JewelryItemID, ItemTitle: o.JewelryTitle,
			})
		}
	}
	return history, nil
}

var registerMetricsOnce sync.Once
var testMetrics *metrics.Metrics

// newTestServer собирает сервер с нулевыми задержками шлюза и без случайности
func newTestServer(t *testing.T, cfg gateway.SimulatorConfig) (*Server, *memStore) {
	t.Helper()
	registerMetricsOnce.Do(func() {
		testMetrics = metrics.NewMetrics()
	})

	sim := gateway.NewSimulator(cfg, rand.NewSource(1))
	store := newMemStore()
	sessions := session.NewManager(session.NewShardedCache(16, 4))

	return NewServer(sessions, sim, sim, testMetrics, store, validator.New()), store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Router.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) sessionView {
	t.Helper()
	var view sessionView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view), "Тело ответа должно быть валидным JSON")
	return view
}

func createSession(t *testing.T, srv *Server) sessionView {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/checkout", createSessionRequest{
		AuctionID:   "auction42",
		Item:        model.JewelryItem{ID: "item001", Title: "Diamond Ring"},
		BidAmount:   2500,
		WinnerEmail: "winner@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, "Код ответа должен быть 201 Created")
	return decodeView(t, rr)
}

func TestServer_CheckoutFlow(t *testing.T) {
	srv, store := newTestServer(t, gateway.SimulatorConfig{})

	view := createSession(t, srv)
	require.Equal(t, 1, view.Step)
	require.True(t, view.BillingAddress.SameAsShipping, "По умолчанию платежный адрес зеркалится с адреса доставки")
	require.InDelta(t, 25.0, view.Summary.ShippingCost, 0.001)

	base := "/checkout/" + view.ID

	t.Run("Next without address is rejected", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		failed := decodeView(t, rr)
		require.Equal(t, 1, failed.Step, "Шаг не должен продвигаться при ошибке валидации")
		require.NotEmpty(t, failed.StepErrors["shippingFullName"])
		require.NotEmpty(t, failed.StepErrors["shippingEmail"])
	})

	t.Run("Walk to success", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPut, base+"/shipping", model.Address{
			FullName: "John Smith", Email: "john@example.com",
			Address: "123 Main Street", City: "New York", ZipCode: "10001", Country: "US",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, srv, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 2, decodeView(t, rr).Step)

		rr = doJSON(t, srv, http.MethodPut, base+"/payment-method", model.PaymentMethod{
			Type: model.PaymentTypeCard, CardNumber: "**** **** **** 4242", CardHolder: "John Smith", Expiry: "12/26",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, srv, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, srv, http.MethodPut, base+"/insurance", insuranceRequest{Tier: model.InsuranceTierPremium})
		require.Equal(t, http.StatusOK, rr.Code)
		view := decodeView(t, rr)
		require.InDelta(t, 50.0, view.Insurance.Amount, 0.001)
		require.InDelta(t, 2777.0, view.Summary.Total, 0.001, "Итог: 2500+25+50+202 налога")

		rr = doJSON(t, srv, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 4, decodeView(t, rr).Step)

		rr = doJSON(t, srv, http.MethodPost, base+"/submit", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp submitResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.True(t, resp.Result.Success)
		require.Equal(t, 5, resp.Session.Step)
		require.InDelta(t, 2777.0, resp.Result.Amount, 0.001)

		// Завершенный заказ сохранен и доступен по UID
		rr = doJSON(t, srv, http.MethodGet, "/order/"+resp.OrderUID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var order model.CompletedOrder
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&order))
		require.Equal(t, "john@example.com", order.BuyerEmail)
		require.InDelta(t, 2777.0, order.Summary.Total, 0.001)
		require.Equal(t, "John Smith", order.BillingAddress.FullName, "Зеркальный платежный адрес берется из адреса доставки")

		// Сессия больше не активна
		rr = doJSON(t, srv, http.MethodGet, base, nil)
		require.Equal(t, http.StatusNotFound, rr.Code)

		// И попадает в историю платежей
		rr = doJSON(t, srv, http.MethodGet, "/payments/history/john@example.com", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var history []model.PaymentResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
		require.Len(t, history, 1)

		require.Len(t, store.orders, 1)
	})
}

func TestServer_PaymentDeclined(t *testing.T) {
	// Отказ карты гарантирован: доля отказов 1.0
	srv, store := newTestServer(t, gateway.SimulatorConfig{CardFailRate: 1.0})

	view := createSession(t, srv)
	base := "/checkout/" + view.ID

	doJSON(t, srv, http.MethodPut, base+"/shipping", model.Address{
		FullName: "John Smith", Email: "john@example.com",
		Address: "123 Main Street", City: "New York", ZipCode: "10001",
	})
	doJSON(t, srv, http.MethodPut, base+"/payment-method", model.PaymentMethod{Type: model.PaymentTypeCard})
	for i := 0; i < 3; i++ {
		rr := doJSON(t, srv, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doJSON(t, srv, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusPaymentRequired, rr.Code, "Отказ шлюза должен возвращаться как 402")

	declined := decodeView(t, rr)
	require.Equal(t, 4, declined.Step, "Мастер остается на шаге оплаты")
	require.Contains(t, declined.PaymentError, "declined")
	require.Equal(t, "John Smith", declined.ShippingAddress.FullName, "Введенные данные сохраняются")
	require.Empty(t, store.orders, "Отклоненный платеж не порождает заказ")

	// Можно вернуться назад и сменить способ оплаты
	rr = doJSON(t, srv, http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 3, decodeView(t, rr).Step)
}

func TestServer_TransitionConflicts(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	view := createSession(t, srv)
	base := "/checkout/" + view.ID

	rr := doJSON(t, srv, http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusConflict, rr.Code, "С первого шага назад идти некуда")

	rr = doJSON(t, srv, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusConflict, rr.Code, "Оплата доступна только с шага оплаты")
}

func TestServer_DuplicateAuction(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	createSession(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/checkout", createSessionRequest{
		AuctionID:   "auction42",
		Item:        model.JewelryItem{ID: "item001", Title: "Diamond Ring"},
		BidAmount:   2500,
		WinnerEmail: "winner@example.com",
	})
	require.Equal(t, http.StatusConflict, rr.Code, "Повторное событие по живому аукциону должно отклоняться")
}

func TestServer_ShippingOption(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	view := createSession(t, srv)
	base := "/checkout/" + view.ID

	rr := doJSON(t, srv, http.MethodPut, base+"/shipping-option", shippingOptionRequest{InsurancePlan: "advanced"})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeView(t, rr)
	require.InDelta(t, 15.0, updated.Shipping.InsuranceCost, 0.001, "Стоимость плана фиксирована и считается на сервере")
	require.InDelta(t, 15.0, updated.Summary.ShippingInsurance, 0.001)

	rr = doJSON(t, srv, http.MethodPut, base+"/shipping-option", shippingOptionRequest{InsurancePlan: "platinum"})
	require.Equal(t, http.StatusBadRequest, rr.Code, "Неизвестный план отклоняется валидатором")
}

func TestServer_ClosedSessionIsGone(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	view := createSession(t, srv)
	sess, err := srv.Sessions.Get(view.ID)
	require.NoError(t, err)
	sess.Cancel()

	base := "/checkout/" + view.ID

	rr := doJSON(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusGone, rr.Code, "Закрытая сессия отвечает 410, а не 409")

	rr = doJSON(t, srv, http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusGone, rr.Code)

	rr = doJSON(t, srv, http.MethodPut, base+"/insurance", insuranceRequest{Tier: model.InsuranceTierBasic})
	require.Equal(t, http.StatusGone, rr.Code)

	rr = doJSON(t, srv, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusGone, rr.Code)
}

func TestServer_CancelSession(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	view := createSession(t, srv)

	rr := doJSON(t, srv, http.MethodDelete, "/checkout/"+view.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, srv, http.MethodGet, "/checkout/"+view.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_GetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	rr := doJSON(t, srv, http.MethodGet, "/order/nonexistent", nil)
	require.Equal(t, http.StatusNotFound, rr.Code, "Код ответа должен быть 404 Not Found")
}

func TestServer_Certificates(t *testing.T) {
	srv, _ := newTestServer(t, gateway.SimulatorConfig{})

	t.Run("List certifications", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/certificates/item001", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var certs []model.Certificate
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&certs))
		require.Len(t, certs, 3)
		require.Equal(t, "GIA", certs[0].Type)
	})

	t.Run("Upload certificate", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "appraisal.pdf")
		require.NoError(t, err)
		fmt.Fprint(fw, "%PDF-1.4 fake")
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/certificates/item001", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		srv.Router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		var cert model.Certificate
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&cert))
		require.Equal(t, "item001", cert.JewelryItemID)
		require.Equal(t, "appraisal.pdf", cert.FileName)
	})

	t.Run("Verify certificate", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/certificates/item001/verify", verifyRequest{
			CertificateID: "1", CertificateNumber: "GIA123456789",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var verification gateway.CertificateVerification
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&verification))
		require.True(t, verification.Verified)
	})
}
