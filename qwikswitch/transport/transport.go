// Package transport は QSUSB ゲートウェイとの通信経路を抽象化します。
// コアの各コンポーネントは HTTP の詳細ではなくこの契約に依存します。
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qsusb-list/qwikswitch"
)

// ErrTimeout はロングポーリングが変更なしで満了したことを示す。
// これはプロトコル上の「変更なし」のシグナルであって障害ではない。
var ErrTimeout = errors.New("long poll timed out with no change")

// Error はゲートウェイとの通信に失敗したことを表す。
// 一回限りの呼び出し（Devices, Set）では呼び出し側へそのまま返し、
// Listener のループ内ではバックオフ付きで再試行される。
type Error struct {
	Op  string // devices, listen, set, version
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("qsusb %s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport はゲートウェイのHTTPサーフェスの抽象契約。
//
// Listen は bounded wait のロングポーリングで、変更が無いまま満了した
// 場合は ErrTimeout を返す。ctx のキャンセルは ctx.Err() として返る。
type Transport interface {
	// Devices は /&device の全デバイス一覧を取得する
	Devices(ctx context.Context) ([]qwikswitch.Device, error)

	// Listen は /&listen をロングポーリングし、変更イベントを1つ返す
	Listen(ctx context.Context, timeout time.Duration) (*qwikswitch.Packet, error)

	// Set はデバイスにネイティブ値を設定し、応答の data を返す
	Set(ctx context.Context, id string, value int) (string, error)

	// Version は /&version? の応答本文を返す
	Version(ctx context.Context) (string, error)
}
