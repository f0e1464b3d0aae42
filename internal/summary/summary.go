package summary

import (
	"math"

	"jewelry_checkout/internal/model"
)

// Ставка налога на сумму товара и доставки
const TaxRate = 0.08

// Фиксированные проценты уровней страхования изделия
const (
	basicInsuranceRate   = 0.01
	premiumInsuranceRate = 0.02
)

// OrderState - входные данные для пересчета сводки заказа
type OrderState struct {
	Amount    float64
	Insurance model.Insurance
	Shipping  model.Shipping
}

// Recompute пересчитывает сводку заказа целиком по текущему состоянию.
// Чистая функция без побочных эффектов; промежуточные суммы не округляются,
// округление до центов происходит только при форматировании
func Recompute(state OrderState) model.OrderSummary {
	itemTotal := state.Amount
	shippingCost := state.Shipping.Cost

	var insuranceCost float64
	if state.Insurance.Selected {
		insuranceCost = state.Insurance.Amount
	}

	var shippingInsurance float64
	if state.Shipping.Insurance {
		shippingInsurance = state.Shipping.InsuranceCost
	}

	tax := (itemTotal + shippingCost) * TaxRate
	total := itemTotal + shippingCost + insuranceCost + shippingInsurance + tax

	return model.OrderSummary{
		ItemTotal:         itemTotal,
		ShippingCost:      shippingCost,
		InsuranceCost:     insuranceCost,
		ShippingInsurance: shippingInsurance,
		Tax:               tax,
		Total:             total,
	}
}

// InsuranceTier возвращает выбор страхования для заданного уровня,
// рассчитанный от стоимости изделия
func InsuranceTier(tier string, itemValue float64) model.Insurance {
	switch tier {
	case model.InsuranceTierBasic:
		return model.Insurance{Selected: true, Tier: tier, Amount: itemValue * basicInsuranceRate}
	case model.InsuranceTierPremium:
		return model.Insurance{Selected: true, Tier: tier, Amount: itemValue * premiumInsuranceRate}
	default:
		return model.Insurance{Selected: false, Tier: model.InsuranceTierNone, Amount: 0}
	}
}

// Планы страхования пересылки с фиксированной стоимостью
const (
	ShippingPlanNone     = "none"
	ShippingPlanStandard = "standard"
	ShippingPlanAdvanced = "advanced"
)

// ShippingInsurancePlan возвращает выбор страхования пересылки для плана
func ShippingInsurancePlan(plan string) (selected bool, cost float64) {
	switch plan {
	case ShippingPlanStandard:
		return true, 5
	case ShippingPlanAdvanced:
		return true, 15
	default:
		return false, 0
	}
}

// RoundCents округляет денежное значение до двух знаков.
// Используется только на границе отображения/сериализации
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded возвращает копию сводки с округлением всех строк до центов
func Rounded(s model.OrderSummary) model.OrderSummary {
	return model.OrderSummary{
		ItemTotal:         RoundCents(s.ItemTotal),
		ShippingCost:      RoundCents(s.ShippingCost),
		InsuranceCost:     RoundCents(s.InsuranceCost),
		ShippingInsurance: RoundCents(s.ShippingInsurance),
		Tax:               RoundCents(s.Tax),
		Total:             RoundCents(s.Total),
	}
}
