package session

import (
	"sync"

	"jewelry_checkout/internal/checkout"
)

// Node - это элемент двусвязного списка, используемого в кэше
type Node struct {
	prev  *Node
	next  *Node
	key   string
	value *checkout.Session
}

// LRUCache хранит активные сессии с вытеснением самых давних.
// Вытеснение сессии равносильно ее оставлению покупателем:
// при вытеснении сессия отменяется
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*Node
	head     *Node // Самый "старый" элемент
	tail     *Node // Самый "новый" элемент
}

// NewLRUCache создает новый LRU-кэш с заданной емкостью
func NewLRUCache(capacity int) *LRUCache {
	head := &Node{}
	tail := &Node{}
	head.next = tail
	tail.prev = head

	return &LRUCache{
		capacity: capacity,
		items:    make(map[string]*Node, capacity),
		head:     head,
		tail:     tail,
	}
}

// Set добавляет или обновляет сессию в кэше
func (c *LRUCache) Set(id string, sess *checkout.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.items[id]; exists {
		node.value = sess
		c.moveToTail(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	newNode := &Node{
		key:   id,
		value: sess,
	}
	c.items[id] = newNode
	c.addToTail(newNode)
}

// Get получает сессию из кэша
func (c *LRUCache) Get(id string) (*checkout.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, found := c.items[id]; found {
		c.moveToTail(node)
		return node.value, true
	}

	return nil, false
}

// Delete удаляет сессию из кэша (завершение или отмена)
func (c *LRUCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, found := c.items[id]; found {
		c.removeNode(node)
		delete(c.items, id)
	}
}

// addToTail добавляет узел в конец списка (делает его самым новым)
func (c *LRUCache) addToTail(node *Node) {
	prev := c.tail.prev
	prev.next = node
	node.prev = prev
	node.next = c.tail
	c.tail.prev = node
}

// removeNode удаляет узел из списка
func (c *LRUCache) removeNode(node *Node) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

// moveToTail перемещает существующий узел в конец списка
func (c *LRUCache) moveToTail(node *Node) {
	c.removeNode(node)
	c.addToTail(node)
}

// evictOldest удаляет и отменяет самый старый узел
func (c *LRUCache) evictOldest() {
	oldest := c.head.next
	if oldest == c.tail {
		return // Кэш пуст
	}
	c.removeNode(oldest)
	delete(c.items, oldest.key)
	oldest.value.Cancel()
}
