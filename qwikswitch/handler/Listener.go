package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"qsusb-list/qwikswitch"
	"qsusb-list/qwikswitch/transport"
)

// ListenerState は &listen ループの状態を表す型
type ListenerState int32

const (
	StateIdle     ListenerState = iota // 初期状態。Start 可能。
	StateRunning                       // ループ実行中
	StateStopping                      // 停止要求済み。次の反復境界で Idle に戻る。
)

func (s ListenerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// ErrListenerNotIdle は Idle 以外の状態で Start が呼ばれたことを示す
var ErrListenerNotIdle = errors.New("listener is not idle")

// Listener は &listen のロングポーリングループを所有する。
//
// ループは独立したゴルーチンで動き、ポーリングのタイムアウトは
// 「変更なし」として扱って即座に再ポーリングする。接続エラーでは
// 少し待って再試行し、自分から勝手に終了することはない。
// マージとコールバック配送は次のポーリングを発行する前に完了する
// （未完了のロングポーリング要求は常に高々1つ）。
type Listener struct {
	mu     sync.Mutex
	state  ListenerState
	cancel context.CancelFunc
	done   chan struct{}

	transport   transport.Transport
	devices     qwikswitch.Devices
	callbacks   *callbackRegistry
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewListener はリスナーを作成する。Start するまでループは動かない。
func NewListener(t transport.Transport, devices qwikswitch.Devices, callbacks *callbackRegistry, pollTimeout, retryDelay time.Duration) *Listener {
	return &Listener{
		state:       StateIdle,
		transport:   t,
		devices:     devices,
		callbacks:   callbacks,
		pollTimeout: pollTimeout,
		retryDelay:  retryDelay,
	}
}

// State は現在の状態を返す
func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Done はループが Idle に戻ったときに閉じられるチャンネルを返す。
// 一度も Start されていない場合は nil。
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Start はポーリングループを開始する。Idle 以外からの呼び出しは
// ErrListenerNotIdle になる（クライアントごとにループは1つだけ）。
// 呼び出し側のゴルーチンはすぐに戻る。
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return ErrListenerNotIdle
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.state = StateRunning

	go l.loop(loopCtx, l.done)
	return nil
}

// Stop は停止を要求する。実行中のロングポーリング待ちはトランスポートの
// キャンセル契約で打ち切られ、ループは次の反復境界で Idle に戻る。
// Idle や Stopping からの呼び出しは何もしない（冪等）。
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRunning {
		return
	}
	l.state = StateStopping
	l.cancel()
}

// setIdle はループ終了時に状態を Idle に戻す
func (l *Listener) setIdle(done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
	l.cancel = nil
	close(done)
}

func (l *Listener) loop(ctx context.Context, done chan struct{}) {
	defer l.setIdle(done)

	slog.Debug("listen loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("listen loop stopped")
			return
		default:
		}

		packet, err := l.transport.Listen(ctx, l.pollTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				// 変更なしで満了。定常状態なので即座に再ポーリング。
				continue
			}
			if ctx.Err() != nil {
				slog.Debug("listen loop stopped")
				return
			}
			// 一時的なネットワーク障害。方針としてループは決して
			// 自分から死なず、少し待って再試行する。
			slog.Error("listen failed, retrying", "err", err)
			if !sleepCtx(ctx, l.retryDelay) {
				slog.Debug("listen loop stopped")
				return
			}
			continue
		}

		l.handlePacket(packet)
	}
}

// handlePacket は変更イベントをキャッシュへマージし、値が変わった
// デバイスについて登録済みコールバックを呼び出す。ボタン操作は状態を
// 持たないので値が変わらなくても配送する。
func (l *Listener) handlePacket(packet *qwikswitch.Packet) {
	if packet == nil || packet.Cmd == "" && packet.ID == "" {
		return
	}
	if packet.ID == "" {
		slog.Debug("ignoring packet without id", "cmd", packet.Cmd)
		return
	}

	update := qwikswitch.Device{
		ID:    packet.ID,
		Value: packet.Data,
		RSSI:  packet.RSSI,
	}
	changed := l.devices.Merge([]qwikswitch.Device{update})

	if len(changed) == 0 && packet.IsButton() {
		changed = []string{packet.ID}
	}
	for _, id := range changed {
		if dev, ok := l.devices.Get(id); ok {
			l.callbacks.Dispatch(dev)
		}
	}
}

// sleepCtx は d だけ待つ。ctx がキャンセルされたら false を返す。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
