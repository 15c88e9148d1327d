package qwikswitch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func exampleDevices() []Device {
	return []Device{
		{ID: "@0a1b2c", Name: "hall", Type: "rel", Value: "OFF", Time: "1460146507", RSSI: "59%"},
		{ID: "@0ac2f0", Name: "lounge", Type: "dim", Value: "20%", Time: "1460146508", RSSI: "61%"},
		{ID: "@500001", Name: "Temp Sensor", Type: "hum", Value: "340172b06450", Time: "1460146509", RSSI: "48%"},
	}
}

func TestDevicesReplaceAllAndSnapshot(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	snap := d.Snapshot()
	if diff := cmp.Diff(exampleDevices(), snap); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}

	// スナップショットは不変なコピーで、書き換えてもキャッシュに影響しない
	snap[0].Value = "ON"
	if dev, _ := d.Get("@0a1b2c"); dev.Value != "OFF" {
		t.Error("Snapshot must return copies, not live references")
	}

	// 一括置換で順序が更新される
	reversed := []Device{exampleDevices()[2], exampleDevices()[0]}
	d.ReplaceAll(reversed)
	snap = d.Snapshot()
	if diff := cmp.Diff(reversed, snap); diff != "" {
		t.Errorf("Snapshot after second ReplaceAll (-want +got):\n%s", diff)
	}
}

func TestDevicesReplaceAll_DropsRecordsWithoutID(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll([]Device{{Name: "no id"}, {ID: "@0a1b2c", Value: "OFF"}})
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDevicesMerge_ChangeDetection(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	// 値が変わったときだけ「変更あり」
	changed := d.Merge([]Device{{ID: "@0a1b2c", Value: "ON"}})
	if diff := cmp.Diff([]string{"@0a1b2c"}, changed); diff != "" {
		t.Errorf("changed ids (-want +got):\n%s", diff)
	}
	if dev, _ := d.Get("@0a1b2c"); dev.Value != "ON" {
		t.Errorf("merged value = %q, want ON", dev.Value)
	}

	// 同じイベントをもう一度マージしても結果は変わらず、変更は報告されない
	changed = d.Merge([]Device{{ID: "@0a1b2c", Value: "ON"}})
	if len(changed) != 0 {
		t.Errorf("second merge reported changes: %v", changed)
	}
}

// タイムスタンプや電波強度だけの更新は変更として数えない
func TestDevicesMerge_HeartbeatOnly(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	changed := d.Merge([]Device{{ID: "@0a1b2c", Value: "OFF", Time: "1460146999", RSSI: "44%"}})
	if len(changed) != 0 {
		t.Errorf("heartbeat-only merge reported changes: %v", changed)
	}
	dev, _ := d.Get("@0a1b2c")
	if dev.Time != "1460146999" || dev.RSSI != "44%" {
		t.Errorf("heartbeat fields not recorded: %+v", dev)
	}
}

// マージは空のフィールドで既存レコードを上書きしない
// （&listen のパケットは値と電波強度しか運ばない）
func TestDevicesMerge_PartialUpdate(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	d.Merge([]Device{{ID: "@0ac2f0", Value: "55%"}})
	dev, _ := d.Get("@0ac2f0")
	want := Device{ID: "@0ac2f0", Name: "lounge", Type: "dim", Value: "55%", Time: "1460146508", RSSI: "61%"}
	if diff := cmp.Diff(want, dev); diff != "" {
		t.Errorf("partial merge (-want +got):\n%s", diff)
	}
}

// 未知のIDは挿入されて「変更あり」になり、スナップショットの末尾に並ぶ
func TestDevicesMerge_InsertsUnknown(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	changed := d.Merge([]Device{{ID: "@999999", Value: "ON"}})
	if diff := cmp.Diff([]string{"@999999"}, changed); diff != "" {
		t.Errorf("changed ids (-want +got):\n%s", diff)
	}
	snap := d.Snapshot()
	if snap[len(snap)-1].ID != "@999999" {
		t.Errorf("inserted device should be last in snapshot, got %v", snap)
	}
}

// 読み手がマージ途中の状態を見ないことの軽い煙テスト
func TestDevicesConcurrentAccess(t *testing.T) {
	d := NewDevices()
	d.ReplaceAll(exampleDevices())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Merge([]Device{{ID: "@0a1b2c", Value: fmt.Sprintf("%d%%", j)}})
				d.Snapshot()
				d.Get("@0ac2f0")
			}
		}(i)
	}
	wg.Wait()
}
