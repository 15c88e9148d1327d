package qwikswitch

import (
	"math"
	"strconv"
	"strings"
)

// Device は /&device が返す1デバイス分のレコードを表す。
// Value は常にゲートウェイのネイティブ表現そのままで保持する。
type Device struct {
	ID    string `json:"id"`   // ゲートウェイが割り当てる安定ID（例: @0c2700）
	Name  string `json:"name"` // 表示名
	Type  string `json:"type"` // タイプコード（rel, dim, ...）
	Value string `json:"val"`  // ネイティブ値（意味はタイプコードに依存）
	Time  string `json:"time"` // ゲートウェイ時計での最終確認時刻
	RSSI  string `json:"rssi"` // 電波強度
}

// QSType はタイプコードから求めたハードウェア系統を返す
func (d Device) QSType() QSType {
	return ParseQSType(d.Type)
}

// IsDimmer は調光器かどうかを返す
func (d Device) IsDimmer() bool {
	return d.QSType() == TypeDimmer
}

// DisplayName は表示名を返す。名前が設定されていなければIDを返す。
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// LegacyStatus はリレー・調光器のネイティブ値を 0〜100 のレベルに
// デコードする。デコード規則は qsmobile.js 由来:
//
//   - "30"/"47" プレフィクス: RX1 CT。5文字目が 0 なら 0、8 なら 100
//   - "7e" は 0、"7f" は 100
//   - 6桁hexの旧形式: 先頭2桁がハードウェア種別
//     01 = 旧調光器, 02 = 旧リレー, 28 = LED調光器
//   - "ON"/"OFF" を含む文字列（リレー）
//   - "NN%" 形式（新型調光器）
//
// どの規則にも合致しない値は DecodeError になる。
func LegacyStatus(stat string) (int, error) {
	if len(stat) >= 5 && (stat[:2] == "30" || stat[:2] == "47") { // RX1 CT
		switch stat[4] {
		case '0':
			return 0, nil
		case '8':
			return 100, nil
		}
	}
	switch stat {
	case "7e":
		return 0, nil
	case "7f":
		return 100, nil
	}
	if len(stat) == 6 { // 旧形式
		val, err := strconv.ParseInt(stat[4:], 16, 32)
		if err != nil {
			val = 0
		}
		switch stat[:2] {
		case "01": // 旧調光器
			return int(math.Round((125 - float64(val)) / 125 * 100)), nil
		case "02": // 旧リレー
			if val == 127 {
				return 100, nil
			}
			return 0, nil
		case "28": // LED調光器
			if stat[2:4] == "01" && stat[4:] == "78" {
				return 0, nil
			}
			return int(math.Round((120 - float64(val)) / 120 * 100)), nil
		}
	}

	// qsmobile.js には無い追加のデコード
	upper := strings.ToUpper(stat)
	if strings.Contains(upper, "ON") { // リレー
		return 100, nil
	}
	if stat == "" || strings.Contains(upper, "OFF") {
		return 0, nil
	}
	if strings.HasSuffix(stat, "%") { // 新型調光器
		if n, err := strconv.Atoi(strings.TrimSuffix(stat, "%")); err == nil {
			return n, nil
		}
	}
	return 0, &DecodeError{Type: "legacy", Raw: stat}
}

// Level は Value をレベルにデコードし、調光器の場合は知覚補正を戻す。
// dimAdj はゲートウェイから受けた値を元のリニアなレベルに戻すために使う。
func (d Device) Level(dimAdj float64) (int, error) {
	level, err := LegacyStatus(d.Value)
	if err != nil {
		return 0, &DecodeError{Type: d.Type, Raw: d.Value}
	}
	if d.IsDimmer() {
		level = FromNative(level, dimAdj)
	}
	return level, nil
}
