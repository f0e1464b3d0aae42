package session

import "jewelry_checkout/internal/checkout"

// SessionCache определяет интерфейс для кэша активных сессий оформления
type SessionCache interface {
	Set(id string, sess *checkout.Session)
	Get(id string) (*checkout.Session, bool)
	Delete(id string)
}
