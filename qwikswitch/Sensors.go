package qwikswitch

import (
	"fmt"
	"math"
	"strconv"
)

// SensorKind はデコード済みセンサー値の種類を表す
type SensorKind int

const (
	SensorBool            SensorKind = iota // ドア・PIR・imod など
	SensorNumber                            // 数値（調光レベル、電流など）
	SensorTempHumidity                      // 温湿度の組
)

// SensorReading は1回分のデコード済みセンサー値。
// デコードは (タイプコード, 生の値文字列) の純粋関数で行われる。
type SensorReading struct {
	Kind        SensorKind
	On          bool    // SensorBool のとき有効
	Value       float64 // SensorNumber のとき有効
	Temperature float64 // SensorTempHumidity のとき有効（°C）
	Humidity    float64 // SensorTempHumidity のとき有効（%）
	Unit        string
}

func (r SensorReading) String() string {
	switch r.Kind {
	case SensorBool:
		return strconv.FormatBool(r.On)
	case SensorNumber:
		return fmt.Sprintf("%v%s", r.Value, r.Unit)
	case SensorTempHumidity:
		return fmt.Sprintf("%v°C %v%%", r.Temperature, r.Humidity)
	}
	return "?"
}

// sensorDecoder は1センサー系統分のデコード関数。
// 生の値文字列が系統の固定レイアウトに合わない場合は DecodeError を返す。
type sensorDecoder func(raw string, channel int) (SensorReading, error)

// sensorTable はタイプコードからデコーダへの静的な対応表。
// 未知のタイプコードは表に無いだけでエラーではない。
var sensorTable = map[string]sensorDecoder{
	TypeCodeRelay:               decodeRelay,
	TypeCodeDimmer:              decodeDimmer,
	TypeCodeHumidityTemperature: decodeTempHumidity,
	"imod":                      decodeIMod,
	"door":                      decodeDoor,
	"pir":                       decodePIR,
	"temperature":               decodeTemperature,
	"humidity":                  decodeHumidity,
	"qwikcord":                  decodeQwikcord,
}

// SupportedSensorTypes は対応しているタイプコードの一覧を返す
func SupportedSensorTypes() []string {
	types := make([]string, 0, len(sensorTable))
	for code := range sensorTable {
		types = append(types, code)
	}
	return types
}

// DecodeSensor はタイプコードと生の値文字列から型付きのセンサー値を求める。
// channel は多チャネルのセンサー（imod, qwikcord）でのみ 1 以外を取れる。
//
// 2番目の返り値は対応しているタイプコードかどうかを表す。未知のコードは
// (zero, false, nil) で、新しいハードウェアが現れても劣化動作で済む。
// 既知のコードでレイアウトに合わない値は壊れたペイロードなので
// DecodeError を返す。
func DecodeSensor(typeCode, raw string, channel int) (SensorReading, bool, error) {
	decode, ok := sensorTable[typeCode]
	if !ok {
		return SensorReading{}, false, nil
	}
	reading, err := decode(raw, channel)
	if err != nil {
		return SensorReading{}, true, err
	}
	return reading, true, nil
}

func decodeRelay(raw string, channel int) (SensorReading, error) {
	if channel != 1 {
		return SensorReading{}, &DecodeError{Type: TypeCodeRelay, Raw: raw}
	}
	level, err := LegacyStatus(raw)
	if err != nil {
		return SensorReading{}, &DecodeError{Type: TypeCodeRelay, Raw: raw}
	}
	return SensorReading{Kind: SensorBool, On: level > 0}, nil
}

func decodeDimmer(raw string, channel int) (SensorReading, error) {
	if channel != 1 {
		return SensorReading{}, &DecodeError{Type: TypeCodeDimmer, Raw: raw}
	}
	level, err := LegacyStatus(raw)
	if err != nil {
		return SensorReading{}, &DecodeError{Type: TypeCodeDimmer, Raw: raw}
	}
	return SensorReading{Kind: SensorNumber, Value: float64(level), Unit: "%"}, nil
}

// imod のペイロードレイアウト（hex 8文字）:
//
//	byte 0: 4e = imod
//	byte 1: ファームウェア
//	byte 2: ビット値（チャネル1〜4は 0004 0321 の並び）
//	byte 3: 最終変化
//
// チャネルごとに (文字位置, ビットマスク) が決まっていて、ビットが
// 落ちていれば閉（true）。4チャネル品が基本で6チャネル品も報告がある。
var imodChannelMap = [6]struct {
	pos  int
	mask int64
}{
	{5, 1}, {5, 2}, {5, 4}, {4, 1}, {5, 1}, {5, 2},
}

func decodeIMod(raw string, channel int) (SensorReading, error) {
	if channel < 1 || channel > len(imodChannelMap) {
		return SensorReading{}, &DecodeError{Type: "imod", Raw: raw}
	}
	if len(raw) != 8 || raw[:2] != "4e" {
		return SensorReading{}, &DecodeError{Type: "imod", Raw: raw}
	}
	m := imodChannelMap[channel-1]
	nibble, err := strconv.ParseInt(raw[m.pos:m.pos+1], 16, 32)
	if err != nil {
		return SensorReading{}, &DecodeError{Type: "imod", Raw: raw}
	}
	return SensorReading{Kind: SensorBool, On: nibble&m.mask == 0}, nil
}

// ドアセンサーのペイロードレイアウト（hex 6文字）:
//
//	byte 0: 46 = ドアセンサー
//	byte 1: ファームウェア
//	byte 2: 末尾が 0 なら開
func decodeDoor(raw string, channel int) (SensorReading, error) {
	if channel != 1 || len(raw) != 6 || raw[:2] != "46" {
		return SensorReading{}, &DecodeError{Type: "door", Raw: raw}
	}
	return SensorReading{Kind: SensorBool, On: raw[5] == '0'}, nil
}

// PIR のペイロードレイアウト（hex 8文字）:
//
//	byte 0:   0f = pir
//	byte 1:   ファームウェア
//	byte 2-3: 反応すべき秒数（hex）。0 より大きければ検知中。
func decodePIR(raw string, channel int) (SensorReading, error) {
	if channel != 1 || len(raw) != 8 || raw[:2] != "0f" {
		return SensorReading{}, &DecodeError{Type: "pir", Raw: raw}
	}
	seconds, err := strconv.ParseInt(raw[4:8], 16, 32)
	if err != nil {
		return SensorReading{}, &DecodeError{Type: "pir", Raw: raw}
	}
	return SensorReading{Kind: SensorBool, On: seconds > 0}, nil
}

// 温湿度センサーのペイロードレイアウト（hex 12文字）:
//
//	byte 0:   34 = 温湿度
//	byte 1:   ファームウェア
//	byte 2-3: 湿度
//	byte 4-5: 温度
//
// 変換式はセンサー素子（SHT系）の一次式をそのまま使う。
func parseTempHumidityPayload(typeCode, raw string) (temperature, humidity float64, err error) {
	if len(raw) != 12 || raw[:2] != "34" {
		return 0, 0, &DecodeError{Type: typeCode, Raw: raw}
	}
	rawHum, err := strconv.ParseInt(raw[4:8], 16, 32)
	if err != nil {
		return 0, 0, &DecodeError{Type: typeCode, Raw: raw}
	}
	rawTemp, err := strconv.ParseInt(raw[8:12], 16, 32)
	if err != nil {
		return 0, 0, &DecodeError{Type: typeCode, Raw: raw}
	}
	temperature = math.Round(-46.85 + 175.72*(float64(rawTemp)/65536))
	humidity = math.Round(-6 + 125*(float64(rawHum)/65536))
	return temperature, humidity, nil
}

func decodeTemperature(raw string, channel int) (SensorReading, error) {
	if channel != 1 {
		return SensorReading{}, &DecodeError{Type: "temperature", Raw: raw}
	}
	temperature, _, err := parseTempHumidityPayload("temperature", raw)
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{Kind: SensorNumber, Value: temperature, Unit: "°C"}, nil
}

func decodeHumidity(raw string, channel int) (SensorReading, error) {
	if channel != 1 {
		return SensorReading{}, &DecodeError{Type: "humidity", Raw: raw}
	}
	_, humidity, err := parseTempHumidityPayload("humidity", raw)
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{Kind: SensorNumber, Value: humidity, Unit: "%"}, nil
}

func decodeTempHumidity(raw string, channel int) (SensorReading, error) {
	if channel != 1 {
		return SensorReading{}, &DecodeError{Type: TypeCodeHumidityTemperature, Raw: raw}
	}
	temperature, humidity, err := parseTempHumidityPayload(TypeCodeHumidityTemperature, raw)
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{Kind: SensorTempHumidity, Temperature: temperature, Humidity: humidity}, nil
}

// qwikcord（電流計）のペイロードレイアウト（hex 16文字の val）:
//
//	文字 6-11:  CTavg（チャネル1）
//	文字 12-15: CTsum（チャネル2）
func decodeQwikcord(raw string, channel int) (SensorReading, error) {
	if channel < 1 || channel > 2 || len(raw) != 16 {
		return SensorReading{}, &DecodeError{Type: "qwikcord", Raw: raw}
	}
	var section string
	if channel == 1 {
		section = raw[6:12] // CTavg
	} else {
		section = raw[12:16] // CTsum
	}
	value, err := strconv.ParseInt(section, 16, 64)
	if err != nil {
		return SensorReading{}, &DecodeError{Type: "qwikcord", Raw: raw}
	}
	return SensorReading{Kind: SensorNumber, Value: float64(value), Unit: "A/s"}, nil
}
