package checkout

import (
	"regexp"
	"strings"

	"jewelry_checkout/internal/model"
)

// ErrorMap - ошибки валидации шага: имя поля -> сообщение для пользователя.
// Пустая карта означает, что шаг пройден
type ErrorMap map[string]string

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateStep проверяет состояние заказа для заданного шага мастера.
// Ошибки относятся только к проверяемому шагу и не пересекаются между шагами
func (s *Session) ValidateStep(step model.WizardStep) ErrorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validate(step)
}

// validate вызывается под мьютексом
func (s *Session) validate(step model.WizardStep) ErrorMap {
	errs := ErrorMap{}

	switch step {
	case model.StepShippingBilling:
		validateShippingAddress(s.ShippingAddress, errs)

		// Платежный адрес проверяется только если он задан отдельно;
		// при SameAsShipping он выводится из адреса доставки
		if !s.BillingAddress.SameAsShipping {
			validateBillingAddress(s.BillingAddress.Address, errs)
		}

	case model.StepPayment:
		if s.PaymentMethod == nil {
			errs["paymentMethod"] = "Please select a payment method"
		}
	}

	// Шаги страхования, оплаты и успеха блокирующих проверок не имеют
	return errs
}

func validateShippingAddress(a model.Address, errs ErrorMap) {
	if strings.TrimSpace(a.FullName) == "" {
		errs["shippingFullName"] = "Full name is required"
	}
	if strings.TrimSpace(a.Email) == "" {
		errs["shippingEmail"] = "Email is required"
	} else if !emailRegex.MatchString(a.Email) {
		errs["shippingEmail"] = "Please enter a valid email address"
	}
	if strings.TrimSpace(a.Address) == "" {
		errs["shippingAddress"] = "Address is required"
	}
	if strings.TrimSpace(a.City) == "" {
		errs["shippingCity"] = "City is required"
	}
	if strings.TrimSpace(a.ZipCode) == "" {
		errs["shippingZip"] = "ZIP code is required"
	}
}

func validateBillingAddress(a model.Address, errs ErrorMap) {
	if strings.TrimSpace(a.FullName) == "" {
		errs["billingFullName"] = "Full name is required"
	}
	if strings.TrimSpace(a.Address) == "" {
		errs["billingAddress"] = "Address is required"
	}
	if strings.TrimSpace(a.City) == "" {
		errs["billingCity"] = "City is required"
	}
	if strings.TrimSpace(a.ZipCode) == "" {
		errs["billingZip"] = "ZIP code is required"
	}
}
