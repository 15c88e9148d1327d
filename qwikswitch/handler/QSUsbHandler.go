// Package handler は QSUSB ゲートウェイのクライアント本体を提供します。
// デバイスキャッシュ・&listen ループ・コールバック登録簿をまとめ、
// アプリケーションに公開するサーフェスになります。
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qsusb-list/qwikswitch"
	"qsusb-list/qwikswitch/transport"
)

// ErrDeviceNotFound は未知のデバイスIDへの Set を示す
var ErrDeviceNotFound = errors.New("device not found")

// noReplyData はゲートウェイがコマンドを受け付けなかったことを表す応答
const noReplyData = "NO REPLY"

// Options は QSUsbHandler の設定
type Options struct {
	// DimAdj は調光カーブの補正指数。定義域は [1.0, 2.0]。
	DimAdj float64
	// PollTimeout は &listen のロングポーリングの待ち時間上限
	PollTimeout time.Duration
	// RetryDelay は接続障害後の再試行までの待ち時間
	RetryDelay time.Duration
	// SetRetries は Set コマンドの最大試行回数
	SetRetries int
}

// DefaultOptions は原典実装と同じ既定値を返す
func DefaultOptions() Options {
	return Options{
		DimAdj:      1.0,
		PollTimeout: 300 * time.Second,
		RetryDelay:  30 * time.Second,
		SetRetries:  5,
	}
}

// QSUsbHandler は QSUSB ゲートウェイに対するクライアント。
// デバイス状態のメモリ内ビューを維持し、変更を購読者へ通知する。
// 状態は再起動をまたいで永続化されず、起動のたびに /&device で再同期する。
type QSUsbHandler struct {
	ctx       context.Context
	transport transport.Transport
	devices   qwikswitch.Devices
	callbacks *callbackRegistry
	listener  *Listener
	opts      Options
}

// NewQSUsbHandler はハンドラを作成する。dim_adj が定義域の外なら
// エラーになる（設定ミスであって実行時のノイズではないため）。
func NewQSUsbHandler(ctx context.Context, t transport.Transport, opts Options) (*QSUsbHandler, error) {
	if err := qwikswitch.ValidateDimAdj(opts.DimAdj); err != nil {
		return nil, err
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultOptions().PollTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	if opts.SetRetries <= 0 {
		opts.SetRetries = DefaultOptions().SetRetries
	}

	devices := qwikswitch.NewDevices()
	callbacks := newCallbackRegistry()
	return &QSUsbHandler{
		ctx:       ctx,
		transport: t,
		devices:   devices,
		callbacks: callbacks,
		listener:  NewListener(t, devices, callbacks, opts.PollTimeout, opts.RetryDelay),
		opts:      opts,
	}, nil
}

// DimAdj は設定済みの調光補正指数を返す
func (h *QSUsbHandler) DimAdj() float64 {
	return h.opts.DimAdj
}

// Devices は /&device からキャッシュを更新してスナップショットを返す。
// 通信に失敗した場合はエラーをそのまま返す（黙って失敗しない）。
func (h *QSUsbHandler) Devices(ctx context.Context) ([]qwikswitch.Device, error) {
	devices, err := h.transport.Devices(ctx)
	if err != nil {
		return nil, err
	}
	h.devices.ReplaceAll(devices)
	return h.devices.Snapshot(), nil
}

// Cache は通信せずに現在のスナップショットを返す
func (h *QSUsbHandler) Cache() []qwikswitch.Device {
	return h.devices.Snapshot()
}

// GetDevice は1デバイスのレコードを返す
func (h *QSUsbHandler) GetDevice(id string) (qwikswitch.Device, bool) {
	return h.devices.Get(id)
}

// Set は要求レベル（0〜100）をデバイスに設定する。調光器には調光カーブを
// 適用し、リレーなどは 0 か 100 に丸める。送信したネイティブ値を返す。
//
// ゲートウェイが NO REPLY を返した場合は原典と同じく線形バックオフで
// 再試行する。通信エラーは呼び出し側へ同期的に返す。
func (h *QSUsbHandler) Set(ctx context.Context, id string, percent int) (int, error) {
	dev, ok := h.devices.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	percent = qwikswitch.ClampPercent(percent)
	var native int
	if dev.IsDimmer() {
		native = qwikswitch.ToNative(percent, h.opts.DimAdj)
	} else if percent > 0 {
		native = 100
	}

	var lastErr error
	for attempt := 1; attempt <= h.opts.SetRetries; attempt++ {
		data, err := h.transport.Set(ctx, id, native)
		if err == nil && data != noReplyData {
			slog.Debug("set success", "id", id, "percent", percent, "native", native)
			return native, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("gateway replied %q", data)
		}
		if !sleepCtx(ctx, time.Duration(attempt)*10*time.Millisecond) {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("unable to set %s=%d: %w", id, native, lastErr)
}

// Version は QS Mobile のバージョン文字列を返す
func (h *QSUsbHandler) Version(ctx context.Context) (string, error) {
	return h.transport.Version(ctx)
}

// AddListener は変更コールバックを登録し、解除用のハンドルを返す
func (h *QSUsbHandler) AddListener(cb ChangeCallback) CallbackHandle {
	return h.callbacks.Add(cb)
}

// RemoveListener はハンドルで指定したコールバックを解除する
func (h *QSUsbHandler) RemoveListener(handle CallbackHandle) {
	h.callbacks.Remove(handle)
}

// Listen は &listen のロングポーリングループを開始してすぐに戻る
func (h *QSUsbHandler) Listen() error {
	return h.listener.Start(h.ctx)
}

// Stop はループの停止を要求する。冪等。
func (h *QSUsbHandler) Stop() {
	h.listener.Stop()
}

// ListenerState はループの現在の状態を返す
func (h *QSUsbHandler) ListenerState() ListenerState {
	return h.listener.State()
}

// ListenerDone はループが Idle に戻ったときに閉じられるチャンネルを返す
func (h *QSUsbHandler) ListenerDone() <-chan struct{} {
	return h.listener.Done()
}

// Level はデバイスの現在値をリニアな 0〜100 のレベルにデコードする
func (h *QSUsbHandler) Level(dev qwikswitch.Device) (int, error) {
	return dev.Level(h.opts.DimAdj)
}

// Close はループを止めてリソースを解放する
func (h *QSUsbHandler) Close() error {
	h.Stop()
	return nil
}
