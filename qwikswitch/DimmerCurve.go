package qwikswitch

import (
	"errors"
	"fmt"
	"math"
)

// 調光カーブの補正指数 dim_adj の定義域。
// 1.0 でリニア（恒等変換）、2.0 に近づくほど低域が圧縮され
// 体感的に滑らかな明るさの変化になる。
const (
	DimAdjMin = 1.0
	DimAdjMax = 2.0
)

// ErrDimAdjRange は dim_adj が定義域 [1.0, 2.0] の外であることを示す。
// これは実行時のノイズではなく設定ミスなので、クランプせずエラーにする。
var ErrDimAdjRange = errors.New("dim_adj must be in [1.0, 2.0]")

// ValidateDimAdj は dim_adj の定義域を検証する
func ValidateDimAdj(dimAdj float64) error {
	if dimAdj < DimAdjMin || dimAdj > DimAdjMax {
		return fmt.Errorf("%w: %v", ErrDimAdjRange, dimAdj)
	}
	return nil
}

// ClampPercent はパーセント値を [0, 100] に収める。
// 上流の丸め誤差で範囲を外れた値は拒否せずクランプする。
func ClampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// ToNative はリニアな 0〜100 の要求値をゲートウェイのネイティブ値に変換する。
// 変換は round(percent^(1/dimAdj)) の単調な累乗カーブで、dimAdj=1.0 のとき
// 恒等変換になる。0 だけが消灯（ネイティブ 0）に対応し、0 より大きい
// 要求値が 0 になることはない。
func ToNative(percent int, dimAdj float64) int {
	percent = ClampPercent(percent)
	if percent == 0 {
		return 0
	}
	native := int(math.Round(math.Pow(float64(percent), 1/dimAdj)))
	if native < 1 {
		native = 1
	}
	return native
}

// FromNative はゲートウェイから受けたネイティブなレベルをリニアな
// 0〜100 のレベルに戻す（ToNative の逆方向、100 でキャップ）。
func FromNative(level int, dimAdj float64) int {
	if level <= 0 {
		return 0
	}
	linear := int(math.Round(math.Pow(float64(level), dimAdj)))
	if linear > 100 {
		return 100
	}
	return linear
}
