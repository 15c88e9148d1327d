package qwikswitch

import (
	"sync"
)

// DevicesImpl はデバイスキャッシュの実体。
// ロックの粒度はキャッシュ全体で1つ。更新頻度が低いドメインなので
// これで十分で、読み手がマージ途中の状態を見ることはない。
type DevicesImpl struct {
	mu    sync.RWMutex
	data  map[string]Device // key はデバイスID
	order []string          // Snapshot の並び。最後の一括置換の順序を保つ。
}

// Devices は /&device と &listen から得た最新のデバイス状態を保持する
// キャッシュ。Listener（書き手）と Devices() の呼び出し側（読み手）で
// 共有される。
type Devices struct {
	*DevicesImpl
}

func NewDevices() Devices {
	return Devices{
		DevicesImpl: &DevicesImpl{
			data: make(map[string]Device),
		},
	}
}

// Snapshot はキャッシュの不変なコピーを返す。順序は最後の ReplaceAll の
// 順序で安定していて、マージで挿入されたデバイスは末尾に並ぶ。
func (d Devices) Snapshot() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]Device, 0, len(d.order))
	for _, id := range d.order {
		if dev, ok := d.data[id]; ok {
			result = append(result, dev)
		}
	}
	return result
}

// Get は1デバイスのレコードのコピーを返す
func (d Devices) Get(id string) (Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.data[id]
	return dev, ok
}

func (d Devices) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.data)
}

// ReplaceAll は /&device の全件取得結果でキャッシュを丸ごと置き換える。
// 置換はアトミックで、順序はレスポンスの順序がそのまま Snapshot の
// 順序になる。IDの無いレコードは捨てる。
func (d Devices) ReplaceAll(devices []Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.data = make(map[string]Device, len(devices))
	d.order = d.order[:0]
	for _, dev := range devices {
		if dev.ID == "" {
			continue
		}
		if _, exists := d.data[dev.ID]; !exists {
			d.order = append(d.order, dev.ID)
		}
		d.data[dev.ID] = dev
	}
}

// Merge は変更イベントをキャッシュに統合し、値が変わったデバイスIDを
// イベント内の並びで返す。
//
//   - 未知のIDは挿入して「変更あり」
//   - 既知のIDは Value が異なるときだけ「変更あり」
//   - Time や RSSI だけの更新は記録はするが変更としては数えない
//     （ハートビートだけの応答で通知の嵐にならないように）
//
// 空のフィールドは既存レコードの値を上書きしない。&listen のパケットは
// 値と電波強度しか運ばないため。同じイベントをもう一度マージしても
// 結果は変わらず、変更は報告されない。
func (d Devices) Merge(updates []Device) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var changed []string
	for _, update := range updates {
		if update.ID == "" {
			continue
		}
		current, exists := d.data[update.ID]
		if !exists {
			d.order = append(d.order, update.ID)
			d.data[update.ID] = update
			changed = append(changed, update.ID)
			continue
		}

		merged := current
		if update.Name != "" {
			merged.Name = update.Name
		}
		if update.Type != "" {
			merged.Type = update.Type
		}
		if update.Time != "" {
			merged.Time = update.Time
		}
		if update.RSSI != "" {
			merged.RSSI = update.RSSI
		}
		if update.Value != "" && update.Value != current.Value {
			merged.Value = update.Value
			changed = append(changed, update.ID)
		}
		d.data[update.ID] = merged
	}
	return changed
}
