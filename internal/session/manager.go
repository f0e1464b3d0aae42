package session

import (
	"errors"
	"sync"

	"jewelry_checkout/internal/checkout"
	"jewelry_checkout/internal/model"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrDuplicateAuction = errors.New("auction already has an active checkout session")
)

// Manager создает сессии оформления и выдает их по идентификатору.
// Сессии живут только в памяти; завершенные заказы уходят в БД.
// На один аукцион допускается не больше одной живой сессии
type Manager struct {
	cache SessionCache

	mu        sync.Mutex
	byAuction map[string]string
}

func NewManager(cache SessionCache) *Manager {
	return &Manager{
		cache:     cache,
		byAuction: make(map[string]string),
	}
}

// Create создает новую сессию, засеянную лотом и суммой выигравшей ставки.
// Повторное событие по тому же аукциону отклоняется, пока предыдущая
// сессия жива; брошенные и отмененные сессии замещаются новой
func (m *Manager) Create(auctionID string, item model.JewelryItem, bidAmount float64, winnerEmail string) (*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if auctionID != "" {
		if existingID, ok := m.byAuction[auctionID]; ok {
			if existing, found := m.cache.Get(existingID); found && !existing.Closed() {
				return nil, ErrDuplicateAuction
			}
			// Старая сессия вытеснена или закрыта, запись устарела
			delete(m.byAuction, auctionID)
		}
	}

	sess := checkout.NewSession(uuid.NewString(), item, bidAmount, winnerEmail)
	sess.AuctionID = auctionID
	m.cache.Set(sess.ID, sess)
	if auctionID != "" {
		m.byAuction[auctionID] = sess.ID
	}
	return sess, nil
}

// Get возвращает активную сессию по идентификатору
func (m *Manager) Get(id string) (*checkout.Session, error) {
	sess, found := m.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Cancel отменяет сессию и убирает ее из кэша
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, found := m.cache.Get(id)
	if !found {
		return ErrSessionNotFound
	}
	sess.Cancel()
	m.cache.Delete(id)
	if sess.AuctionID != "" {
		delete(m.byAuction, sess.AuctionID)
	}
	return nil
}

// Remove убирает завершенную сессию из кэша, не отменяя ее
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, found := m.cache.Get(id)
	if !found {
		return
	}
	m.cache.Delete(id)
	if sess.AuctionID != "" {
		delete(m.byAuction, sess.AuctionID)
	}
}
