package handler

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"

	"qsusb-list/qwikswitch"
)

// ChangeCallback はデバイスの値が変わったときに更新済みレコードを
// 受け取るコールバック
type ChangeCallback func(dev qwikswitch.Device)

// CallbackHandle は登録済みコールバックを識別する安定したハンドル。
// 同じ関数値を複数回登録しても個別に解除できる。
type CallbackHandle int

// callbackRegistry はコールバックの登録簿。
// 配送はハンドル順で、パニックはコールバック単位で回収される。
type callbackRegistry struct {
	mu        sync.RWMutex
	next      CallbackHandle
	callbacks map[CallbackHandle]ChangeCallback
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{
		next:      1,
		callbacks: make(map[CallbackHandle]ChangeCallback),
	}
}

func (r *callbackRegistry) Add(cb ChangeCallback) CallbackHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.next
	r.next++
	r.callbacks[handle] = cb
	return handle
}

func (r *callbackRegistry) Remove(handle CallbackHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, handle)
}

func (r *callbackRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Dispatch は全コールバックを同期的に呼び出す。コールバック内の
// パニックは回収してログに記録し、残りのコールバックへの配送と
// リスナーのループは止めない。
func (r *callbackRegistry) Dispatch(dev qwikswitch.Device) {
	r.mu.RLock()
	handles := make([]CallbackHandle, 0, len(r.callbacks))
	for handle := range r.callbacks {
		handles = append(handles, handle)
	}
	callbacks := make([]ChangeCallback, 0, len(handles))
	slices.Sort(handles)
	for _, handle := range handles {
		callbacks = append(callbacks, r.callbacks[handle])
	}
	r.mu.RUnlock()

	for i, cb := range callbacks {
		r.invoke(handles[i], cb, dev)
	}
}

func (r *callbackRegistry) invoke(handle CallbackHandle, cb ChangeCallback, dev qwikswitch.Device) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("change callback panicked", "handle", int(handle), "id", dev.ID, "panic", rec)
		}
	}()
	cb(dev)
}
