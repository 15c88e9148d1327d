package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"qsusb-list/protocol"
	"qsusb-list/qwikswitch/handler"
)

// sendSuccessResult は command_result (success=true) を返す
func (ws *WebSocketServer) sendSuccessResult(connID string, msg *protocol.Message, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return ws.sendErrorResult(connID, msg, protocol.ErrorCodeInternalServerError, err.Error())
		}
		raw = encoded
	}
	payload := protocol.CommandResultPayload{
		Success: true,
		Data:    raw,
	}
	return ws.sendMessageToClient(connID, protocol.MessageTypeCommandResult, payload, msg.RequestID)
}

// sendErrorResult は command_result (success=false) を返す
func (ws *WebSocketServer) sendErrorResult(connID string, msg *protocol.Message, code protocol.ErrorCode, message string) error {
	payload := protocol.CommandResultPayload{
		Success: false,
		Error: &protocol.Error{
			Code:    code,
			Message: message,
		},
	}
	return ws.sendMessageToClient(connID, protocol.MessageTypeCommandResult, payload, msg.RequestID)
}

// handleListDevicesFromClient はキャッシュ内容をそのまま返す
func (ws *WebSocketServer) handleListDevicesFromClient(connID string, msg *protocol.Message) error {
	devices := ws.handler.Cache()

	protoDevices := make([]protocol.Device, 0, len(devices))
	for _, device := range devices {
		protoDevices = append(protoDevices, protocol.DeviceToProtocol(device, ws.handler.DimAdj()))
	}

	return ws.sendSuccessResult(connID, msg, protocol.ListDevicesData{Devices: protoDevices})
}

// handleRefreshDevicesFromClient はゲートウェイからデバイス一覧を
// 取り直してから返す
func (ws *WebSocketServer) handleRefreshDevicesFromClient(connID string, msg *protocol.Message) error {
	devices, err := ws.handler.Devices(ws.ctx)
	if err != nil {
		return ws.sendErrorResult(connID, msg, protocol.ErrorCodeGatewayCommunicationError, err.Error())
	}

	protoDevices := make([]protocol.Device, 0, len(devices))
	for _, device := range devices {
		protoDevices = append(protoDevices, protocol.DeviceToProtocol(device, ws.handler.DimAdj()))
	}

	return ws.sendSuccessResult(connID, msg, protocol.ListDevicesData{Devices: protoDevices})
}

// handleSetLevelFromClient は set_level コマンドを処理する
func (ws *WebSocketServer) handleSetLevelFromClient(connID string, msg *protocol.Message) error {
	var payload protocol.SetLevelPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		return ws.sendErrorResult(connID, msg, protocol.ErrorCodeInvalidRequestFormat,
			fmt.Sprintf("Error parsing set_level payload: %v", err))
	}
	if payload.Target == "" {
		return ws.sendErrorResult(connID, msg, protocol.ErrorCodeInvalidParameters, "target is required")
	}

	native, err := ws.handler.Set(ws.ctx, payload.Target, payload.Level)
	if err != nil {
		if errors.Is(err, handler.ErrDeviceNotFound) {
			return ws.sendErrorResult(connID, msg, protocol.ErrorCodeDeviceNotFound, err.Error())
		}
		return ws.sendErrorResult(connID, msg, protocol.ErrorCodeGatewayCommunicationError, err.Error())
	}

	return ws.sendSuccessResult(connID, msg, protocol.SetLevelData{
		Target: payload.Target,
		Level:  payload.Level,
		Native: native,
	})
}

// handleGetVersionFromClient は get_version コマンドを処理する
func (ws *WebSocketServer) handleGetVersionFromClient(connID string, msg *protocol.Message) error {
	version, err := ws.handler.Version(ws.ctx)
	if err != nil {
		return ws.sendErrorResult(connID, msg, protocol.ErrorCodeGatewayCommunicationError, err.Error())
	}
	return ws.sendSuccessResult(connID, msg, protocol.VersionData{Version: version})
}
