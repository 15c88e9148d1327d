package client

import (
	"context"

	"qsusb-list/qwikswitch"
	"qsusb-list/qwikswitch/handler"
)

// QSUsbClient はコンソールなどの上位層から見たクライアントの共通
// インターフェース。ゲートウェイ直結（LocalClient）と WebSocket 経由
// （WebSocketClient）の両方がこれを満たす。
type QSUsbClient interface {
	// ListDevices は手元のキャッシュからデバイス一覧を返す
	ListDevices() []qwikswitch.Device

	// RefreshDevices はゲートウェイからデバイス一覧を取り直す
	RefreshDevices(ctx context.Context) ([]qwikswitch.Device, error)

	// SetLevel はデバイスにレベルを設定し、送信したネイティブ値を返す
	SetLevel(ctx context.Context, id string, level int) (int, error)

	// Version は QS Mobile のバージョン文字列を返す
	Version(ctx context.Context) (string, error)

	// DimAdj は調光カーブの補正指数を返す
	DimAdj() float64

	// OnDeviceChange はデバイス変更時に呼ばれる関数を登録する
	OnDeviceChange(fn func(qwikswitch.Device))

	Close() error
}

// ListenerController は &listen ループを直接制御できるクライアントが
// 追加で満たすインターフェース。WebSocket 経由ではループはサーバー側に
// あるため、LocalClient だけが実装する。
type ListenerController interface {
	StartListening() error
	StopListening()
	ListenerState() string
}

// LocalClient は QSUsbHandler をそのまま包むクライアント
type LocalClient struct {
	handler *handler.QSUsbHandler
}

// NewLocalClient creates a client backed by a local gateway handler
func NewLocalClient(h *handler.QSUsbHandler) *LocalClient {
	return &LocalClient{handler: h}
}

func (c *LocalClient) ListDevices() []qwikswitch.Device {
	return c.handler.Cache()
}

func (c *LocalClient) RefreshDevices(ctx context.Context) ([]qwikswitch.Device, error) {
	return c.handler.Devices(ctx)
}

func (c *LocalClient) SetLevel(ctx context.Context, id string, level int) (int, error) {
	return c.handler.Set(ctx, id, level)
}

func (c *LocalClient) Version(ctx context.Context) (string, error) {
	return c.handler.Version(ctx)
}

func (c *LocalClient) DimAdj() float64 {
	return c.handler.DimAdj()
}

func (c *LocalClient) OnDeviceChange(fn func(qwikswitch.Device)) {
	c.handler.AddListener(fn)
}

func (c *LocalClient) StartListening() error {
	return c.handler.Listen()
}

func (c *LocalClient) StopListening() {
	c.handler.Stop()
}

func (c *LocalClient) ListenerState() string {
	return c.handler.ListenerState().String()
}

func (c *LocalClient) Close() error {
	return c.handler.Close()
}
