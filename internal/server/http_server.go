package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"jewelry_checkout/internal/checkout"
	"jewelry_checkout/internal/gateway"
	"jewelry_checkout/internal/metrics"
	"jewelry_checkout/internal/model"
	"jewelry_checkout/internal/session"
	"jewelry_checkout/internal/storage"
	"jewelry_checkout/internal/summary"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// OrderStore - хранилище завершенных заказов, реализуется storage.Storage
type OrderStore interface {
	SaveOrder(ctx context.Context, order model.CompletedOrder) error
	GetOrderByUID(ctx context.Context, uid string) (model.CompletedOrder, error)
	GetPaymentHistory(ctx context.Context, buyerEmail string) ([]model.PaymentResult, error)
}

type Server struct {
	Router    *chi.Mux
	Sessions  *session.Manager
	Gateway   gateway.PaymentGateway
	Certs     gateway.CertificateService
	Metrics   *metrics.Metrics
	DB        OrderStore
	Validator *validatorv10.Validate
}

// NewServer создает новый экземпляр сервера с зависимостями
func NewServer(
	sessions *session.Manager,
	gw gateway.PaymentGateway,
	certs gateway.CertificateService,
	m *metrics.Metrics,
	db OrderStore,
	validate *validatorv10.Validate,
) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Sessions:  sessions,
		Gateway:   gw,
		Certs:     certs,
		Metrics:   m,
		DB:        db,
		Validator: validate,
	}
	s.Router.Use(s.metricsMiddleware)
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.Router.Route("/checkout", func(r chi.Router) {
		r.Post("/", s.handleCreateSession())
		r.Get("/{sessionID}", s.handleGetSession())
		r.Delete("/{sessionID}", s.handleCancelSession())
		r.Put("/{sessionID}/shipping", s.handleSetShipping())
		r.Put("/{sessionID}/billing", s.handleSetBilling())
		r.Put("/{sessionID}/payment-method", s.handleSetPaymentMethod())
		r.Put("/{sessionID}/insurance", s.handleSetInsurance())
		r.Put("/{sessionID}/shipping-option", s.handleSetShippingOption())
		r.Post("/{sessionID}/next", s.handleNext())
		r.Post("/{sessionID}/back", s.handleBack())
		r.Post("/{sessionID}/submit", s.handleSubmitPayment())
	})

	s.Router.Get("/order/{orderUID}", s.handleGetOrder())
	s.Router.Get("/payments/history/{email}", s.handleGetPaymentHistory())

	s.Router.Route("/certificates/{itemID}", func(r chi.Router) {
		r.Get("/", s.handleGetCertifications())
		r.Post("/", s.handleUploadCertificate())
		r.Post("/verify", s.handleVerifyCertificate())
	})
}

// metricsMiddleware добавляет метрики к ответам
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Metrics.HTTPServerReqs.WithLabelValues(strconv.Itoa(ww.Status()), r.Method).Inc()
	})
}

// sessionView - представление сессии, отдаваемое наружу.
// Сводка всегда пересчитывается и округляется только в этой точке
type sessionView struct {
	ID              string               `json:"id"`
	Step            int                  `json:"step"`
	StepName        string               `json:"step_name"`
	Jewelry         model.JewelryItem    `json:"jewelry"`
	Amount          float64              `json:"amount"`
	ShippingAddress model.Address        `json:"shipping_address"`
	BillingAddress  model.BillingAddress `json:"billing_address"`
	PaymentMethod   *model.PaymentMethod `json:"payment_method,omitempty"`
	Insurance       model.Insurance      `json:"insurance"`
	Shipping        model.Shipping       `json:"shipping"`
	Summary         model.OrderSummary   `json:"summary"`
	StepErrors      checkout.ErrorMap    `json:"step_errors,omitempty"`
	PaymentError    string               `json:"payment_error,omitempty"`
}

func viewOf(sess *checkout.Session) sessionView {
	snap := sess.Snapshot()
	return sessionView{
		ID:              snap.ID,
		Step:            int(snap.Step),
		StepName:        snap.Step.String(),
		Jewelry:         snap.Jewelry,
		Amount:          snap.Amount,
		ShippingAddress: snap.ShippingAddress,
		BillingAddress:  snap.BillingAddress,
		PaymentMethod:   snap.PaymentMethod,
		Insurance:       snap.Insurance,
		Shipping:        snap.Shipping,
		Summary:         summary.Rounded(snap.Summary),
		StepErrors:      snap.StepErrors,
		PaymentError:    snap.PaymentError,
	}
}

// transitionStatus переводит ошибки переходов мастера в HTTP-статусы:
// закрытая сессия - это 410, запрещенный переход - 409
func transitionStatus(err error) int {
	if errors.Is(err, checkout.ErrSessionClosed) {
		return http.StatusGone
	}
	return http.StatusConflict
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// createSessionRequest - запрос на создание сессии оформления
type createSessionRequest struct {
	AuctionID   string            `json:"auction_id"`
	Item        model.JewelryItem `json:"item" validate:"required"`
	BidAmount   float64           `json:"bid_amount" validate:"required,gt=0"`
	WinnerEmail string            `json:"winner_email" validate:"omitempty,email"`
}

// handleCreateSession заводит новую сессию оформления по выигранному лоту
func (s *Server) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.Validator.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sess, err := s.Sessions.Create(req.AuctionID, req.Item, req.BidAmount, req.WinnerEmail)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.Metrics.SessionsStarted.Inc()
		slog.Info("Checkout session created", "session_id", sess.ID, "item_id", req.Item.ID, "bid_amount", req.BidAmount)

		respondJSON(w, http.StatusCreated, viewOf(sess))
	}
}

// session достает сессию из кэша или отвечает 404
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		http.Error(w, "Checkout session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

func (s *Server) handleCancelSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		if err := s.Sessions.Cancel(sessionID); err != nil {
			http.Error(w, "Checkout session not found", http.StatusNotFound)
			return
		}
		s.Metrics.SessionsCancelled.Inc()
		slog.Info("Checkout session cancelled", "session_id", sessionID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSetShipping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var addr model.Address
		if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := sess.SetShippingAddress(addr); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

func (s *Server) handleSetBilling() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var addr model.BillingAddress
		if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := sess.SetBillingAddress(addr); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

func (s *Server) handleSetPaymentMethod() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var method model.PaymentMethod
		if err := json.NewDecoder(r.Body).Decode(&method); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.Validator.Struct(method); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := sess.SelectPaymentMethod(method); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

// insuranceRequest - выбор уровня страхования; сумма считается на сервере
type insuranceRequest struct {
	Tier string `json:"tier" validate:"required,oneof='No Insurance' 'Basic Insurance' 'Premium Insurance'"`
}

func (s *Server) handleSetInsurance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var req insuranceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.Validator.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := sess.SelectInsurance(req.Tier); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

// shippingOptionRequest - выбор плана страхования пересылки;
// стоимость плана фиксирована и считается на сервере
type shippingOptionRequest struct {
	InsurancePlan string `json:"insurance_plan" validate:"required,oneof=none standard advanced"`
}

func (s *Server) handleSetShippingOption() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var req shippingOptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.Validator.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := sess.SelectShippingInsurance(req.InsurancePlan); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

// handleNext продвигает мастер вперед; при ошибках валидации возвращает 422
// с картой ошибок по полям текущего шага
func (s *Server) handleNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		stepErrors, err := sess.Next()
		if err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		if len(stepErrors) > 0 {
			s.Metrics.ValidationErrors.Inc()
			respondJSON(w, http.StatusUnprocessableEntity, viewOf(sess))
			return
		}

		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

func (s *Server) handleBack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		if err := sess.Back(); err != nil {
			http.Error(w, err.Error(), transitionStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, viewOf(sess))
	}
}

// submitResponse - ответ на успешную оплату
type submitResponse struct {
	OrderUID string              `json:"order_uid"`
	Result   model.PaymentResult `json:"result"`
	Session  sessionView         `json:"session"`
}

// handleSubmitPayment проводит оплату и при успехе сохраняет завершенный
// заказ в БД. Отказ шлюза возвращается как 402 и допускает повтор
func (s *Server) handleSubmitPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}

		var details checkout.PaymentDetails
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		result, err := sess.SubmitPayment(r.Context(), s.Gateway, details)
		if err != nil {
			switch {
			case errors.Is(err, checkout.ErrInvalidTransition),
				errors.Is(err, checkout.ErrNoPaymentMethod),
				errors.Is(err, checkout.ErrSessionClosed):
				http.Error(w, err.Error(), transitionStatus(err))
			default:
				// Любая неожиданная ошибка шлюза трактуется как отказ платежа
				s.Metrics.PaymentsDeclined.Inc()
				slog.Warn("Payment declined", "session_id", sess.ID, "error", err)
				respondJSON(w, http.StatusPaymentRequired, viewOf(sess))
			}
			return
		}

		s.Metrics.PaymentsSucceeded.Inc()
		s.Metrics.SessionsCompleted.Inc()

		order := completedOrderOf(sess, result)
		if err := s.DB.SaveOrder(r.Context(), order); err != nil {
			// Платеж уже проведен, поэтому заказ не откатывается
			s.Metrics.DBErrors.Inc()
			slog.Error("Failed to persist completed order", "order_uid", order.OrderUID, "error", err)
		}

		s.Sessions.Remove(sess.ID)
		slog.Info("Checkout completed", "session_id", sess.ID, "order_uid", order.OrderUID, "transaction_id", result.TransactionID)

		respondJSON(w, http.StatusOK, submitResponse{
			OrderUID: order.OrderUID,
			Result:   result,
			Session:  viewOf(sess),
		})
	}
}

// completedOrderOf собирает запись завершенного заказа из сессии
func completedOrderOf(sess *checkout.Session, result model.PaymentResult) model.CompletedOrder {
	snap := sess.Snapshot()

	billing := snap.BillingAddress
	if billing.SameAsShipping {
		// Действующий платежный адрес выводится из адреса доставки
		billing = model.BillingAddress{Address: snap.ShippingAddress, SameAsShipping: true}
	}

	buyerEmail := snap.ShippingAddress.Email
	if buyerEmail == "" {
		buyerEmail = snap.WinnerEmail
	}

	return model.CompletedOrder{
		OrderUID:        uuid.NewString(),
		JewelryItemID:   snap.Jewelry.ID,
		JewelryTitle:    snap.Jewelry.Title,
		BuyerEmail:      buyerEmail,
		PaymentType:     result.Method,
		TransactionID:   result.TransactionID,
		Status:          result.Status,
		ShippingAddress: snap.ShippingAddress,
		BillingAddress:  billing,
		Summary:         summary.Rounded(snap.Summary),
		CreatedAt:       time.Now().UTC(),
	}
}

// handleGetOrder возвращает завершенный заказ по UID
func (s *Server) handleGetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderUID := chi.URLParam(r, "orderUID")
		if orderUID == "" {
			http.Error(w, "Order UID is required", http.StatusBadRequest)
			return
		}

		order, err := s.DB.GetOrderByUID(r.Context(), orderUID)
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				http.Error(w, "Order not found", http.StatusNotFound)
				return
			}

			s.Metrics.DBErrors.Inc()
			slog.Error("Failed to get order from DB", "error", err, "order_uid", orderUID)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

// handleGetPaymentHistory возвращает историю платежей покупателя
func (s *Server) handleGetPaymentHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		if email == "" {
			http.Error(w, "Email is required", http.StatusBadRequest)
			return
		}

		history, err := s.DB.GetPaymentHistory(r.Context(), email)
		if err != nil {
			s.Metrics.DBErrors.Inc()
			slog.Error("Failed to get payment history", "error", err, "email", email)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		respondJSON(w, http.StatusOK, history)
	}
}

// Максимальный размер загружаемого сертификата - 10MB
const maxCertificateSize = 10 << 20

// handleUploadCertificate принимает файл сертификата для изделия
func (s *Server) handleUploadCertificate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")

		if err := r.ParseMultipartForm(maxCertificateSize); err != nil {
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Certificate file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		cert, err := s.Certs.UploadCertificate(r.Context(), gateway.CertificateUpload{
			FileName:      header.Filename,
			ContentType:   header.Header.Get("Content-Type"),
			Size:          header.Size,
			JewelryItemID: itemID,
		})
		if err != nil {
			slog.Warn("Certificate upload failed", "error", err, "item_id", itemID)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		respondJSON(w, http.StatusCreated, cert)
	}
}

func (s *Server) handleGetCertifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")

		certs, err := s.Certs.GetCertifications(r.Context(), itemID)
		if err != nil {
			slog.Error("Failed to fetch certifications", "error", err, "item_id", itemID)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		respondJSON(w, http.StatusOK, certs)
	}
}

// verifyRequest - запрос проверки подлинности сертификата
type verifyRequest struct {
	CertificateID     string `json:"certificate_id" validate:"required"`
	CertificateNumber string `json:"certificate_number" validate:"required"`
}

func (s *Server) handleVerifyCertificate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.Validator.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		verification, err := s.Certs.VerifyCertificate(r.Context(), req.CertificateID, req.CertificateNumber)
		if err != nil {
			slog.Warn("Certificate verification failed", "error", err, "certificate_id", req.CertificateID)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		respondJSON(w, http.StatusOK, verification)
	}
}
