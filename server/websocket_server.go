package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qsusb-list/protocol"
	"qsusb-list/qwikswitch"
	"qsusb-list/qwikswitch/handler"
)

// WebSocketServer はQSUSBゲートウェイへの接続をWebSocketクライアントに
// 橋渡しするサーバー。デバイスの変更通知をブロードキャストし、
// クライアントからの set_level などのコマンドをハンドラへ中継する。
type WebSocketServer struct {
	ctx            context.Context
	cancel         context.CancelFunc
	transport      WebSocketTransport
	handler        *handler.QSUsbHandler
	startupTime    time.Time
	changeListener handler.CallbackHandle
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(ctx context.Context, addr string, h *handler.QSUsbHandler) (*WebSocketServer, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	ws := &WebSocketServer{
		ctx:         serverCtx,
		cancel:      cancel,
		transport:   NewDefaultWebSocketTransport(serverCtx, addr),
		handler:     h,
		startupTime: time.Now(),
	}

	ws.transport.SetConnectHandler(ws.handleClientConnect)
	ws.transport.SetMessageHandler(ws.handleClientMessage)
	ws.transport.SetDisconnectHandler(ws.handleClientDisconnect)

	// ゲートウェイ側の変更をブロードキャストする
	ws.changeListener = h.AddListener(ws.broadcastDeviceChange)

	return ws, nil
}

// Start starts the WebSocket server
func (ws *WebSocketServer) Start(options StartOptions) error {
	return ws.transport.Start(options)
}

// Stop stops the WebSocket server
func (ws *WebSocketServer) Stop() error {
	ws.handler.RemoveListener(ws.changeListener)
	ws.cancel()
	return ws.transport.Stop()
}

// handleClientConnect is called when a new client connects
func (ws *WebSocketServer) handleClientConnect(connID string) error {
	slog.Debug("New WebSocket connection established", "connID", connID)
	return ws.sendInitialStateToClient(connID)
}

// handleClientMessage is called when a message is received from a client
func (ws *WebSocketServer) handleClientMessage(connID string, message []byte) error {
	msg, err := protocol.ParseMessage(message)
	if err != nil {
		slog.Error("Error parsing message", "err", err)
		errorPayload := protocol.ErrorNotificationPayload{
			Code:    protocol.ErrorCodeInvalidRequestFormat,
			Message: fmt.Sprintf("Error parsing message: %v", err),
		}
		return ws.sendMessageToClient(connID, protocol.MessageTypeErrorNotification, errorPayload, "")
	}

	switch msg.Type {
	case protocol.MessageTypeListDevices:
		return ws.handleListDevicesFromClient(connID, msg)
	case protocol.MessageTypeRefreshDevices:
		return ws.handleRefreshDevicesFromClient(connID, msg)
	case protocol.MessageTypeSetLevel:
		return ws.handleSetLevelFromClient(connID, msg)
	case protocol.MessageTypeGetVersion:
		return ws.handleGetVersionFromClient(connID, msg)
	default:
		slog.Debug("Unknown message type", "type", msg.Type)
		errorPayload := protocol.ErrorNotificationPayload{
			Code:    protocol.ErrorCodeInvalidRequestFormat,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		}
		return ws.sendMessageToClient(connID, protocol.MessageTypeErrorNotification, errorPayload, msg.RequestID)
	}
}

// handleClientDisconnect is called when a client disconnects
func (ws *WebSocketServer) handleClientDisconnect(connID string) {
	slog.Debug("WebSocket connection closed", "connID", connID)
}

// sendInitialStateToClient sends the current device cache to a client
func (ws *WebSocketServer) sendInitialStateToClient(connID string) error {
	devices := ws.handler.Cache()

	protoDevices := make(map[string]protocol.Device, len(devices))
	for _, device := range devices {
		protoDevices[device.ID] = protocol.DeviceToProtocol(device, ws.handler.DimAdj())
	}

	payload := protocol.InitialStatePayload{
		Devices:           protoDevices,
		DimAdj:            ws.handler.DimAdj(),
		ServerStartupTime: ws.startupTime,
	}

	return ws.sendMessageToClient(connID, protocol.MessageTypeInitialState, payload, "")
}

// broadcastDeviceChange はハンドラの変更通知を device_changed として配信する
func (ws *WebSocketServer) broadcastDeviceChange(device qwikswitch.Device) {
	payload := protocol.DeviceChangedPayload{
		Device: protocol.DeviceToProtocol(device, ws.handler.DimAdj()),
	}
	ws.broadcastMessageToClients(protocol.MessageTypeDeviceChanged, payload)
}

// sendMessageToClient sends a message to a client
func (ws *WebSocketServer) sendMessageToClient(connID string, msgType protocol.MessageType, payload interface{}, requestID string) error {
	data, err := protocol.CreateMessage(msgType, payload, requestID)
	if err != nil {
		return fmt.Errorf("error creating message: %v", err)
	}
	return ws.transport.SendMessage(connID, data)
}

// broadcastMessageToClients sends a message to all connected clients
func (ws *WebSocketServer) broadcastMessageToClients(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.CreateMessage(msgType, payload, "")
	if err != nil {
		slog.Error("Error creating broadcast message", "err", err)
		return
	}
	if err := ws.transport.BroadcastMessage(data); err != nil {
		slog.Error("Error broadcasting message", "err", err)
	}
}
