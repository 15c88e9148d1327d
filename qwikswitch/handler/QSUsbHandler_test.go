package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsusb-list/qwikswitch"
	"qsusb-list/qwikswitch/transport"
)

type listenResult struct {
	packet *qwikswitch.Packet
	err    error
}

type setCall struct {
	id    string
	value int
}

// fakeTransport はテスト用のトランスポート。Listen は listenCh から
// 結果を受け取るまでブロックし、ctx のキャンセルで抜ける。
type fakeTransport struct {
	mu         sync.Mutex
	devices    []qwikswitch.Device
	devicesErr error
	listenCh   chan listenResult
	setCalls   []setCall
	setData    []string // 呼び出しごとに先頭から消費。尽きたら最後を繰り返す。
	setErr     error
	version    string
}

var _ transport.Transport = (*fakeTransport)(nil)

func newFakeTransport(devices []qwikswitch.Device) *fakeTransport {
	return &fakeTransport{
		devices:  devices,
		listenCh: make(chan listenResult, 16),
		setData:  []string{"ok"},
		version:  "1.1.8",
	}
}

func (f *fakeTransport) Devices(ctx context.Context) ([]qwikswitch.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	out := make([]qwikswitch.Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeTransport) Listen(ctx context.Context, timeout time.Duration) (*qwikswitch.Packet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-f.listenCh:
		return r.packet, r.err
	}
}

func (f *fakeTransport) Set(ctx context.Context, id string, value int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, setCall{id: id, value: value})
	if f.setErr != nil {
		return "", f.setErr
	}
	data := f.setData[0]
	if len(f.setData) > 1 {
		f.setData = f.setData[1:]
	}
	return data, nil
}

func (f *fakeTransport) Version(ctx context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeTransport) SetCalls() []setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]setCall, len(f.setCalls))
	copy(out, f.setCalls)
	return out
}

func testDevices() []qwikswitch.Device {
	return []qwikswitch.Device{
		{ID: "@0a1b2c", Name: "hall", Type: "rel", Value: "OFF"},
		{ID: "@0ac2f0", Name: "lounge", Type: "dim", Value: "20%"},
	}
}

func newTestHandler(t *testing.T, ft *fakeTransport, opts Options) *QSUsbHandler {
	t.Helper()
	if opts.PollTimeout == 0 {
		opts = Options{
			DimAdj:      opts.DimAdj,
			PollTimeout: time.Second,
			RetryDelay:  10 * time.Millisecond,
			SetRetries:  opts.SetRetries,
		}
	}
	if opts.DimAdj == 0 {
		opts.DimAdj = 1.0
	}
	h, err := NewQSUsbHandler(context.Background(), ft, opts)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNewQSUsbHandler_DimAdjValidation(t *testing.T) {
	ft := newFakeTransport(nil)
	for _, adj := range []float64{0.5, 2.5, -1} {
		_, err := NewQSUsbHandler(context.Background(), ft, Options{DimAdj: adj})
		assert.Error(t, err, "dim_adj=%v", adj)
	}
	h, err := NewQSUsbHandler(context.Background(), ft, Options{DimAdj: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1.5, h.DimAdj())
}

func TestHandlerDevices_PopulatesCache(t *testing.T) {
	ft := newFakeTransport(testDevices())
	h := newTestHandler(t, ft, Options{})

	got, err := h.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDevices(), got)
	assert.Equal(t, testDevices(), h.Cache())

	dev, ok := h.GetDevice("@0ac2f0")
	require.True(t, ok)
	assert.Equal(t, "lounge", dev.Name)
}

func TestHandlerDevices_FetchError(t *testing.T) {
	ft := newFakeTransport(testDevices())
	ft.devicesErr = errors.New("connection refused")
	h := newTestHandler(t, ft, Options{})

	_, err := h.Devices(context.Background())
	assert.Error(t, err)
	assert.Empty(t, h.Cache())
}

func TestSet_DimmerCurve(t *testing.T) {
	tests := []struct {
		name       string
		dimAdj     float64
		percent    int
		wantNative int
	}{
		{"identity", 1.0, 50, 50},
		{"curve adjusted", 2.0, 50, 7},
		{"full on", 2.0, 100, 10},
		{"off", 2.0, 0, 0},
		{"low floor", 2.0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport(testDevices())
			h := newTestHandler(t, ft, Options{DimAdj: tt.dimAdj})
			_, err := h.Devices(context.Background())
			require.NoError(t, err)

			native, err := h.Set(context.Background(), "@0ac2f0", tt.percent)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNative, native)

			calls := ft.SetCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, setCall{id: "@0ac2f0", value: tt.wantNative}, calls[0])
		})
	}
}

// リレーは中間レベルを持たないので 0 か 100 に丸める
func TestSet_RelayRounding(t *testing.T) {
	ft := newFakeTransport(testDevices())
	h := newTestHandler(t, ft, Options{DimAdj: 2.0})
	_, err := h.Devices(context.Background())
	require.NoError(t, err)

	native, err := h.Set(context.Background(), "@0a1b2c", 30)
	require.NoError(t, err)
	assert.Equal(t, 100, native)

	native, err = h.Set(context.Background(), "@0a1b2c", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, native)
}

func TestSet_UnknownDevice(t *testing.T) {
	ft := newFakeTransport(testDevices())
	h := newTestHandler(t, ft, Options{})

	_, err := h.Set(context.Background(), "@ffffff", 50)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Empty(t, ft.SetCalls())
}

func TestSet_RetriesOnNoReply(t *testing.T) {
	ft := newFakeTransport(testDevices())
	ft.setData = []string{"NO REPLY", "NO REPLY", "ok"}
	h := newTestHandler(t, ft, Options{})
	_, err := h.Devices(context.Background())
	require.NoError(t, err)

	native, err := h.Set(context.Background(), "@0a1b2c", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, native)
	assert.Len(t, ft.SetCalls(), 3)
}

func TestSet_GivesUpAfterRetries(t *testing.T) {
	ft := newFakeTransport(testDevices())
	ft.setData = []string{"NO REPLY"}
	h := newTestHandler(t, ft, Options{SetRetries: 3})
	_, err := h.Devices(context.Background())
	require.NoError(t, err)

	_, err = h.Set(context.Background(), "@0a1b2c", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO REPLY")
	assert.Len(t, ft.SetCalls(), 3)
}

func TestVersion(t *testing.T) {
	ft := newFakeTransport(nil)
	h := newTestHandler(t, ft, Options{})

	v, err := h.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.1.8", v)
}

func TestLevel(t *testing.T) {
	ft := newFakeTransport(nil)
	h := newTestHandler(t, ft, Options{DimAdj: 2.0})

	level, err := h.Level(qwikswitch.Device{ID: "@0a1b2c", Type: "rel", Value: "ON"})
	require.NoError(t, err)
	assert.Equal(t, 100, level)

	// 調光器の生値 7% は補正指数 2.0 で 49% に復元される
	level, err = h.Level(qwikswitch.Device{ID: "@0ac2f0", Type: "dim", Value: "7%"})
	require.NoError(t, err)
	assert.Equal(t, 49, level)
}
