package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"qsusb-list/protocol"
	"qsusb-list/qwikswitch"
)

// WebSocketClient implements the QSUsbClient interface over a WebSocket
// connection to a bridge server. The server owns the gateway connection;
// this client mirrors its device cache from initial_state and
// device_changed notifications.
type WebSocketClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	url    string

	devicesMutex sync.RWMutex
	devices      map[string]qwikswitch.Device
	dimAdj       float64

	callbacksMutex sync.RWMutex
	callbacks      []func(qwikswitch.Device)

	requestIDMutex sync.Mutex
	requestID      int

	responseChMutex sync.Mutex
	responseCh      map[string]chan *protocol.Message

	// 接続時の initial_state を受け取ったら close される
	initialized chan struct{}
	initOnce    sync.Once
}

// NewWebSocketClient creates a new WebSocket client for the given server URL
// (e.g. ws://localhost:8080/ws)
func NewWebSocketClient(ctx context.Context, serverURL string) (*WebSocketClient, error) {
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &WebSocketClient{
		ctx:         clientCtx,
		cancel:      cancel,
		url:         serverURL,
		devices:     make(map[string]qwikswitch.Device),
		dimAdj:      1.0,
		responseCh:  make(map[string]chan *protocol.Message),
		initialized: make(chan struct{}),
	}, nil
}

// Connect connects to the WebSocket server and waits for the initial state
func (c *WebSocketClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("error connecting to WebSocket server: %v", err)
	}
	c.conn = conn

	go c.listenForMessages()

	select {
	case <-c.initialized:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for initial state")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() error {
	c.cancel()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ListDevices はサーバーから同期済みのキャッシュを ID 順で返す
func (c *WebSocketClient) ListDevices() []qwikswitch.Device {
	c.devicesMutex.RLock()
	defer c.devicesMutex.RUnlock()

	result := make([]qwikswitch.Device, 0, len(c.devices))
	for _, device := range c.devices {
		result = append(result, device)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RefreshDevices はサーバーにゲートウェイからの取り直しを要求する
func (c *WebSocketClient) RefreshDevices(ctx context.Context) ([]qwikswitch.Device, error) {
	result, err := c.sendCommand(protocol.MessageTypeRefreshDevices, protocol.RefreshDevicesPayload{})
	if err != nil {
		return nil, err
	}

	var data protocol.ListDevicesData
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return nil, fmt.Errorf("error parsing device list: %v", err)
	}

	devices := make([]qwikswitch.Device, 0, len(data.Devices))
	c.devicesMutex.Lock()
	c.devices = make(map[string]qwikswitch.Device, len(data.Devices))
	for _, protoDevice := range data.Devices {
		device := protocol.DeviceFromProtocol(protoDevice)
		c.devices[device.ID] = device
		devices = append(devices, device)
	}
	c.devicesMutex.Unlock()

	return devices, nil
}

// SetLevel はサーバー経由でデバイスにレベルを設定する
func (c *WebSocketClient) SetLevel(ctx context.Context, id string, level int) (int, error) {
	result, err := c.sendCommand(protocol.MessageTypeSetLevel, protocol.SetLevelPayload{
		Target: id,
		Level:  level,
	})
	if err != nil {
		return 0, err
	}

	var data protocol.SetLevelData
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return 0, fmt.Errorf("error parsing set_level result: %v", err)
	}
	return data.Native, nil
}

// Version はサーバー経由でゲートウェイのバージョンを問い合わせる
func (c *WebSocketClient) Version(ctx context.Context) (string, error) {
	result, err := c.sendCommand(protocol.MessageTypeGetVersion, protocol.GetVersionPayload{})
	if err != nil {
		return "", err
	}

	var data protocol.VersionData
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return "", fmt.Errorf("error parsing version result: %v", err)
	}
	return data.Version, nil
}

// DimAdj はサーバーが initial_state で知らせてきた補正指数を返す
func (c *WebSocketClient) DimAdj() float64 {
	c.devicesMutex.RLock()
	defer c.devicesMutex.RUnlock()
	return c.dimAdj
}

// OnDeviceChange はデバイス変更時に呼ばれる関数を登録する
func (c *WebSocketClient) OnDeviceChange(fn func(qwikswitch.Device)) {
	c.callbacksMutex.Lock()
	defer c.callbacksMutex.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// sendCommand はコマンドを送って command_result の成功データを返す。
// success=false の応答はエラーに変換する。
func (c *WebSocketClient) sendCommand(msgType protocol.MessageType, payload interface{}) (*protocol.CommandResultPayload, error) {
	response, err := c.sendRequest(msgType, payload)
	if err != nil {
		return nil, err
	}

	var result protocol.CommandResultPayload
	if err := protocol.ParsePayload(response, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %v", err)
	}
	if !result.Success {
		if result.Error != nil {
			return nil, fmt.Errorf("%s: %s", result.Error.Code, result.Error.Message)
		}
		return nil, fmt.Errorf("command %s failed: unknown error", msgType)
	}
	return &result, nil
}

func (c *WebSocketClient) sendRequest(msgType protocol.MessageType, payload interface{}) (*protocol.Message, error) {
	c.requestIDMutex.Lock()
	c.requestID++
	requestID := fmt.Sprintf("req-%d", c.requestID)
	c.requestIDMutex.Unlock()

	responseCh := make(chan *protocol.Message, 1)
	c.responseChMutex.Lock()
	c.responseCh[requestID] = responseCh
	c.responseChMutex.Unlock()

	data, err := protocol.CreateMessage(msgType, payload, requestID)
	if err != nil {
		return nil, fmt.Errorf("error creating message: %v", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("error sending message: %v", err)
	}

	select {
	case response := <-responseCh:
		return response, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("timeout waiting for response")
	case <-c.ctx.Done():
		return nil, fmt.Errorf("context canceled")
	}
}

func (c *WebSocketClient) listenForMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				slog.Debug("WebSocket read loop ended", "err", err)
				return
			}

			msg, err := protocol.ParseMessage(message)
			if err != nil {
				slog.Debug("Error parsing server message", "err", err)
				continue
			}

			if msg.RequestID != "" {
				c.responseChMutex.Lock()
				if ch, ok := c.responseCh[msg.RequestID]; ok {
					ch <- msg
					delete(c.responseCh, msg.RequestID)
				}
				c.responseChMutex.Unlock()
			} else {
				c.handleNotification(msg)
			}
		}
	}
}

// handleNotification handles a notification from the WebSocket server
func (c *WebSocketClient) handleNotification(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeInitialState:
		c.handleInitialState(msg)
	case protocol.MessageTypeDeviceChanged:
		c.handleDeviceChanged(msg)
	case protocol.MessageTypeErrorNotification:
		c.handleErrorNotification(msg)
	}
}

// handleInitialState handles an initial_state message
func (c *WebSocketClient) handleInitialState(msg *protocol.Message) {
	var payload protocol.InitialStatePayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing initial_state payload", "err", err)
		return
	}

	c.devicesMutex.Lock()
	c.devices = make(map[string]qwikswitch.Device, len(payload.Devices))
	for id, protoDevice := range payload.Devices {
		c.devices[id] = protocol.DeviceFromProtocol(protoDevice)
	}
	if payload.DimAdj > 0 {
		c.dimAdj = payload.DimAdj
	}
	c.devicesMutex.Unlock()

	c.initOnce.Do(func() { close(c.initialized) })
}

// handleDeviceChanged handles a device_changed message
func (c *WebSocketClient) handleDeviceChanged(msg *protocol.Message) {
	var payload protocol.DeviceChangedPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing device_changed payload", "err", err)
		return
	}

	device := protocol.DeviceFromProtocol(payload.Device)
	if device.ID == "" {
		return
	}

	c.devicesMutex.Lock()
	c.devices[device.ID] = device
	c.devicesMutex.Unlock()

	c.callbacksMutex.RLock()
	callbacks := make([]func(qwikswitch.Device), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.callbacksMutex.RUnlock()

	for _, fn := range callbacks {
		fn(device)
	}
}

// handleErrorNotification handles an error_notification message
func (c *WebSocketClient) handleErrorNotification(msg *protocol.Message) {
	var payload protocol.ErrorNotificationPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		return
	}
	slog.Error("Server error notification", "code", payload.Code, "message", payload.Message)
}
