package checkout

import (
	"errors"
	"sync"
	"time"

	"jewelry_checkout/internal/model"
	"jewelry_checkout/internal/summary"
)

var (
	ErrSessionClosed     = errors.New("checkout session is closed")
	ErrInvalidTransition = errors.New("transition is not allowed from the current step")
	ErrNoPaymentMethod   = errors.New("no payment method selected")
)

// Стоимость стандартной доставки по умолчанию
const defaultShippingCost = 25.00

// Session - одна сессия оформления заказа.
// Создается один раз на выигранный лот и живет до успеха или отмены.
// Все мутации идут через методы под мьютексом: сессией владеет один
// покупатель, но HTTP-обработчики могут дергать ее конкурентно
type Session struct {
	mu sync.Mutex

	ID          string
	AuctionID   string
	Jewelry     model.JewelryItem
	Amount      float64
	WinnerEmail string
	CreatedAt   time.Time

	ShippingAddress model.Address
	BillingAddress  model.BillingAddress
	PaymentMethod   *model.PaymentMethod
	Insurance       model.Insurance
	Shipping        model.Shipping

	Step model.WizardStep

	// Ошибки последней валидации текущего шага и баннер ошибки оплаты.
	// Хранятся раздельно, чтобы ошибки шагов не перетекали друг в друга
	StepErrors   ErrorMap
	PaymentError string

	Result *model.PaymentResult

	// Пока платеж в полете, повторный SubmitPayment отклоняется:
	// шлюз должен быть вызван не более одного раза на попытку
	paymentInFlight bool

	closed bool
}

// NewSession создает сессию с пустыми адресами и стандартной доставкой,
// засеянную выигранным лотом и суммой ставки
func NewSession(id string, item model.JewelryItem, bidAmount float64, winnerEmail string) *Session {
	return &Session{
		ID:          id,
		Jewelry:     item,
		Amount:      bidAmount,
		WinnerEmail: winnerEmail,
		CreatedAt:   time.Now().UTC(),
		ShippingAddress: model.Address{
			Country: "US",
		},
		BillingAddress: model.BillingAddress{
			Address:        model.Address{Country: "US"},
			SameAsShipping: true,
		},
		Insurance: model.Insurance{Tier: model.InsuranceTierNone},
		Shipping: model.Shipping{
			Method: "standard",
			Cost:   defaultShippingCost,
		},
		Step:       model.StepShippingBilling,
		StepErrors: ErrorMap{},
	}
}

// SetShippingAddress обновляет адрес доставки
func (s *Session) SetShippingAddress(a model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.ShippingAddress = a
	return nil
}

// SetBillingAddress обновляет платежный адрес и флаг SameAsShipping.
// Поля доставки в платежный адрес не копируются: при включенном флаге
// действующий адрес всегда выводится из актуального адреса доставки
func (s *Session) SetBillingAddress(a model.BillingAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.BillingAddress = a
	return nil
}

// EffectiveBillingAddress возвращает адрес, по которому выставляется счет
func (s *Session) EffectiveBillingAddress() model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BillingAddress.SameAsShipping {
		return s.ShippingAddress
	}
	return s.BillingAddress.Address
}

// SelectPaymentMethod выбирает способ оплаты (ровно один активный)
func (s *Session) SelectPaymentMethod(m model.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.PaymentMethod = &m
	return nil
}

// SelectInsurance выбирает уровень страхования изделия.
// Сумма рассчитывается от стоимости лота, а не принимается извне
func (s *Session) SelectInsurance(tier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.Insurance = summary.InsuranceTier(tier, s.Amount)
	return nil
}

// SelectShippingInsurance выбирает план страхования пересылки.
// Стоимость плана фиксирована и не принимается извне
func (s *Session) SelectShippingInsurance(plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.Shipping.Insurance, s.Shipping.InsuranceCost = summary.ShippingInsurancePlan(plan)
	return nil
}

// Summary пересчитывает сводку заказа по текущему состоянию
func (s *Session) Summary() model.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute()
}

// recompute вызывается под мьютексом
func (s *Session) recompute() model.OrderSummary {
	return summary.Recompute(summary.OrderState{
		Amount:    s.Amount,
		Insurance: s.Insurance,
		Shipping:  s.Shipping,
	})
}

// Cancel закрывает сессию; результаты платежей, пришедшие после отмены,
// к состоянию больше не применяются
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed сообщает, завершена ли сессия (успехом или отменой)
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CurrentStep возвращает текущий шаг мастера
func (s *Session) CurrentStep() model.WizardStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Step
}

// Snapshot - согласованная копия состояния сессии для отдачи наружу
type Snapshot struct {
	ID              string
	AuctionID       string
	Jewelry         model.JewelryItem
	Amount          float64
	WinnerEmail     string
	ShippingAddress model.Address
	BillingAddress  model.BillingAddress
	PaymentMethod   *model.PaymentMethod
	Insurance       model.Insurance
	Shipping        model.Shipping
	Step            model.WizardStep
	StepErrors      ErrorMap
	PaymentError    string
	Summary         model.OrderSummary
	Result          *model.PaymentResult
}

// Snapshot снимает копию состояния под мьютексом вместе со свежей сводкой
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:              s.ID,
		AuctionID:       s.AuctionID,
		Jewelry:         s.Jewelry,
		Amount:          s.Amount,
		WinnerEmail:     s.WinnerEmail,
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
		Insurance:       s.Insurance,
		Shipping:        s.Shipping,
		Step:            s.Step,
		PaymentError:    s.PaymentError,
		Summary:         s.recompute(),
	}

	if s.PaymentMethod != nil {
		m := *s.PaymentMethod
		snap.PaymentMethod = &m
	}
	if s.Result != nil {
		r := *s.Result
		snap.Result = &r
	}
	snap.StepErrors = make(ErrorMap, len(s.StepErrors))
	for k, v := range s.StepErrors {
		snap.StepErrors[k] = v
	}

	return snap
}
