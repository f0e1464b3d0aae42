package checkout

import (
	"context"
	"log/slog"

	"jewelry_checkout/internal/gateway"
	"jewelry_checkout/internal/model"
)

// PaymentDetails - данные, приходящие с формы оплаты на шаге 4
type PaymentDetails struct {
	Currency        string `json:"currency,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	PayerEmail      string `json:"payer_email,omitempty"`
}

// Next валидирует текущий шаг и продвигает мастер на шаг вперед.
// При ошибках валидации шаг не меняется, а ошибки сохраняются на сессии.
// С шага оплаты и с финального шага переход через Next запрещен
func (s *Session) Next() (ErrorMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.Step >= model.StepPaymentCapture {
		return nil, ErrInvalidTransition
	}

	errs := s.validate(s.Step)
	s.StepErrors = errs
	if len(errs) > 0 {
		return errs, nil
	}

	s.Step++
	return nil, nil
}

// Back возвращает мастер ровно на один шаг назад.
// Разрешен только с шагов 2-4
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.Step <= model.StepShippingBilling || s.Step == model.StepSuccess {
		return ErrInvalidTransition
	}

	s.Step--
	s.StepErrors = ErrorMap{}
	return nil
}

// SubmitPayment проводит оплату через шлюз. Разрешен только с шага оплаты.
// Пока платеж в полете, конкурирующие вызовы отклоняются: шлюз вызывается
// не более одного раза на попытку.
// При отказе шлюза мастер остается на месте, введенные данные сохраняются,
// повторная попытка допустима. Письмо с подтверждением отправляется строго
// после успешного платежа; его сбой не мешает дойти до успеха
func (s *Session) SubmitPayment(ctx context.Context, gw gateway.PaymentGateway, details PaymentDetails) (model.PaymentResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.PaymentResult{}, ErrSessionClosed
	}
	if s.Step != model.StepPaymentCapture {
		s.mu.Unlock()
		return model.PaymentResult{}, ErrInvalidTransition
	}
	if s.PaymentMethod == nil {
		s.mu.Unlock()
		return model.PaymentResult{}, ErrNoPaymentMethod
	}
	if s.paymentInFlight {
		s.mu.Unlock()
		return model.PaymentResult{}, ErrInvalidTransition
	}
	s.paymentInFlight = true

	method := *s.PaymentMethod
	item := s.Jewelry
	total := s.recompute().Total
	confirmEmail := s.ShippingAddress.Email
	s.mu.Unlock()

	result, err := dispatchPayment(ctx, gw, method, total, item, details)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.paymentInFlight = false
		// Результат, пришедший после отмены, к состоянию не применяется
		if s.closed {
			return model.PaymentResult{}, ErrSessionClosed
		}
		s.PaymentError = err.Error()
		return model.PaymentResult{}, err
	}

	// Письмо отправляется только после успешного разрешения платежа,
	// его сбой лишь логируется
	if _, emailErr := gw.SendConfirmationEmail(ctx, result, confirmEmail); emailErr != nil {
		slog.Warn("Confirmation email failed", "error", emailErr, "email", confirmEmail, "transaction_id", result.TransactionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentInFlight = false
	if s.closed {
		slog.Warn("Payment result arrived for a cancelled session, ignoring", "session_id", s.ID, "transaction_id", result.TransactionID)
		return model.PaymentResult{}, ErrSessionClosed
	}

	s.Result = &result
	s.PaymentError = ""
	s.StepErrors = ErrorMap{}
	s.Step = model.StepSuccess
	s.closed = true

	return result, nil
}

// dispatchPayment выбирает метод шлюза по активному варианту способа оплаты
func dispatchPayment(
	ctx context.Context,
	gw gateway.PaymentGateway,
	method model.PaymentMethod,
	total float64,
	item model.JewelryItem,
	details PaymentDetails,
) (model.PaymentResult, error) {
	switch method.Type {
	case model.PaymentTypeStripe:
		return gw.ProcessStripePayment(ctx, gateway.StripeRequest{
			Amount:          total,
			Currency:        details.Currency,
			PaymentMethodID: details.PaymentMethodID,
			Item:            item,
		})
	case model.PaymentTypePayPal:
		payerEmail := details.PayerEmail
		if payerEmail == "" {
			payerEmail = method.PayerEmail
		}
		return gw.ProcessPayPalPayment(ctx, gateway.PayPalRequest{
			Amount:     total,
			Currency:   details.Currency,
			Item:       item,
			PayerEmail: payerEmail,
		})
	default:
		return gw.ProcessPayment(ctx, total, method.Type, item)
	}
}
