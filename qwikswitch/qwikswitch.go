// Package qwikswitch は QwikSwitch QSUSB ゲートウェイ（USBモデム）の
// デバイスモデルと値デコードを提供します。
//
// リレー・調光器・ボタンと各種センサーに対応しています。
// See: http://www.qwikswitch.co.za/qs-usb.php
package qwikswitch

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ゲートウェイのHTTPエンドポイント書式
const (
	URLDevices = "%s/&device"   // デバイス一覧の取得
	URLListen  = "%s/&listen"   // ロングポーリングによる変更通知
	URLVersion = "%s/&version?" // QS Mobile のバージョン
	URLSet     = "%s/%s=%d"     // デバイスへの値設定
)

// QSType はQSUSBデバイスのハードウェア系統を表す型
type QSType int

const (
	TypeUnknown             QSType = iota // 未対応のタイプコード
	TypeRelay                             // rel
	TypeDimmer                            // dim
	TypeHumidityTemperature               // hum
)

// デバイスレコードの type フィールドに現れるタイプコード
const (
	TypeCodeRelay               = "rel"
	TypeCodeDimmer              = "dim"
	TypeCodeHumidityTemperature = "hum"
)

var qsTypeNames = map[QSType]string{
	TypeUnknown:             "unknown",
	TypeRelay:               "relay",
	TypeDimmer:              "dimmer",
	TypeHumidityTemperature: "humidity_temperature",
}

func (t QSType) String() string {
	if name, ok := qsTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("QSType(%d)", int(t))
}

// ParseQSType はタイプコード文字列を QSType に変換する。
// 未知のコードは TypeUnknown になる（エラーではない）。
func ParseQSType(code string) QSType {
	switch code {
	case TypeCodeRelay:
		return TypeRelay
	case TypeCodeDimmer:
		return TypeDimmer
	case TypeCodeHumidityTemperature:
		return TypeHumidityTemperature
	}
	return TypeUnknown
}

// ButtonCommands は &listen パケットの cmd に現れるQSボタンのコマンド。
//
//	TOGGLE    - 通常ボタン
//	SCENE EXE - シーン実行
//	LEVEL     - 全消灯
var ButtonCommands = []string{"TOGGLE", "SCENE EXE", "LEVEL"}

// CmdUpdate is the synthetic command some gateways emit for heartbeats.
const CmdUpdate = "update"

// Packet は &listen のロングポーリング1回分の応答を表す
type Packet struct {
	ID   string `json:"id,omitempty"`   // デバイスID（例: @0c2700）
	Cmd  string `json:"cmd,omitempty"`  // ボタンコマンドなど
	Data string `json:"data,omitempty"` // 生の値（hex文字列）
	RSSI string `json:"rssi,omitempty"` // 電波強度（例: 61%）
}

// IsButton はパケットがボタン操作によるものかどうかを返す
func (p Packet) IsButton() bool {
	return slices.Contains(ButtonCommands, p.Cmd)
}

// DecodeError は既知のタイプコードの値文字列が壊れていることを表すエラー。
// 未知のタイプコードはエラーにはならない（前方互換のため）。
type DecodeError struct {
	Type string // タイプコードまたはフォーマット系統
	Raw  string // 問題のあった値文字列
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("qwikswitch: cannot decode %q value %q", e.Type, e.Raw)
}
