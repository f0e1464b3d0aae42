package session

import (
	"testing"

	"jewelry_checkout/internal/checkout"
	"jewelry_checkout/internal/model"

	"github.com/stretchr/testify/require"
)

func testSession(id string) *checkout.Session {
	return checkout.NewSession(id, model.JewelryItem{ID: "item_" + id, Title: "Ring"}, 100, "buyer@example.com")
}

// TestLRUCache проверяет основную логику LRU кэша сессий
func TestLRUCache(t *testing.T) {
	sess1 := testSession("sess1")
	sess2 := testSession("sess2")
	sess3 := testSession("sess3")

	t.Run("Set and Get", func(t *testing.T) {
		cache := NewLRUCache(2)
		cache.Set(sess1.ID, sess1)

		retrieved, found := cache.Get(sess1.ID)
		require.True(t, found, "Сессия должна быть найдена в кэше")
		require.Equal(t, sess1.ID, retrieved.ID, "ID полученной сессии должен совпадать")
	})

	t.Run("Eviction cancels the oldest session", func(t *testing.T) {
		cache := NewLRUCache(2)
		old := testSession("old")

		cache.Set(old.ID, old)
		cache.Set(sess2.ID, sess2)
		cache.Set(sess3.ID, sess3)

		_, found := cache.Get(old.ID)
		require.False(t, found, "Самая старая сессия должна была быть вытеснена")
		require.True(t, old.Closed(), "Вытесненная сессия считается оставленной и отменяется")

		_, found = cache.Get(sess2.ID)
		require.True(t, found, "Сессия sess2 должна остаться в кэше")
		_, found = cache.Get(sess3.ID)
		require.True(t, found, "Новая сессия sess3 должна быть в кэше")
	})

	t.Run("Get updates recentness", func(t *testing.T) {
		cache := NewLRUCache(2)
		a := testSession("a")
		b := testSession("b")
		c := testSession("c")

		cache.Set(a.ID, a)
		cache.Set(b.ID, b)

		cache.Get(a.ID)

		cache.Set(c.ID, c)

		_, found := cache.Get(b.ID)
		require.False(t, found, "Сессия b должна была быть вытеснена")

		_, found = cache.Get(a.ID)
		require.True(t, found, "Сессия a (к которой недавно обращались) должна остаться")
	})

	t.Run("Delete removes without cancelling", func(t *testing.T) {
		cache := NewLRUCache(2)
		d := testSession("d")
		cache.Set(d.ID, d)

		cache.Delete(d.ID)

		_, found := cache.Get(d.ID)
		require.False(t, found)
		require.False(t, d.Closed(), "Явное удаление не отменяет сессию")
	})
}

func TestManager(t *testing.T) {
	mgr := NewManager(NewShardedCache(4, 4))

	sess, err := mgr.Create("auction1", model.JewelryItem{ID: "item1", Title: "Necklace"}, 450.50, "winner@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, model.StepShippingBilling, sess.CurrentStep())

	got, err := mgr.Get(sess.ID)
	require.NoError(t, err)
	require.Same(t, sess, got, "Менеджер должен возвращать ту же самую сессию")

	require.NoError(t, mgr.Cancel(sess.ID))
	require.True(t, sess.Closed())

	_, err = mgr.Get(sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_DuplicateAuction(t *testing.T) {
	item := model.JewelryItem{ID: "item1", Title: "Necklace"}

	t.Run("Redelivered auction win is rejected", func(t *testing.T) {
		mgr := NewManager(NewShardedCache(4, 4))

		first, err := mgr.Create("auction1", item, 450.50, "winner@example.com")
		require.NoError(t, err)

		_, err = mgr.Create("auction1", item, 450.50, "winner@example.com")
		require.ErrorIs(t, err, ErrDuplicateAuction, "Пока сессия жива, второй по тому же аукциону быть не должно")

		got, getErr := mgr.Get(first.ID)
		require.NoError(t, getErr)
		require.Same(t, first, got, "Живая сессия остается нетронутой")
	})

	t.Run("Closed session can be replaced", func(t *testing.T) {
		mgr := NewManager(NewShardedCache(4, 4))

		first, err := mgr.Create("auction1", item, 450.50, "winner@example.com")
		require.NoError(t, err)
		require.NoError(t, mgr.Cancel(first.ID))

		second, err := mgr.Create("auction1", item, 450.50, "winner@example.com")
		require.NoError(t, err, "После отмены аукцион снова свободен")
		require.NotEqual(t, first.ID, second.ID)
	})

	t.Run("Sessions without auction id are unrestricted", func(t *testing.T) {
		mgr := NewManager(NewShardedCache(4, 4))

		_, err := mgr.Create("", item, 100, "a@example.com")
		require.NoError(t, err)
		_, err = mgr.Create("", item, 100, "b@example.com")
		require.NoError(t, err)
	})
}
