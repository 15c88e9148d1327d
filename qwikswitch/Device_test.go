package qwikswitch

import (
	"errors"
	"testing"
)

func TestLegacyStatus(t *testing.T) {
	tests := []struct {
		name string
		stat string
		want int
	}{
		{"rx1 ct on", "30008", 100},
		{"rx1 ct off", "300c0d", 0},
		{"rx1 ct 47 off", "47000", 0},
		{"7e is off", "7e", 0},
		{"7f is on", "7f", 100},
		{"old dim full", "010000", 100},
		{"old dim off", "01007d", 0},
		{"old rel on", "02007f", 100},
		{"old rel off", "020000", 0},
		{"led dim off", "280178", 0},
		{"led dim full", "280100", 100},
		{"led dim half", "28003c", 50},
		{"relay on", "ON", 100},
		{"relay off", "OFF", 0},
		{"relay status ack", "OFF,RX1REL,V50", 0},
		{"empty is off", "", 0},
		{"new dimmer percent", "55%", 55},
		{"new dimmer zero", "0%", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LegacyStatus(tt.stat)
			if err != nil {
				t.Fatalf("LegacyStatus(%q) returned error: %v", tt.stat, err)
			}
			if got != tt.want {
				t.Errorf("LegacyStatus(%q) = %d, want %d", tt.stat, got, tt.want)
			}
		})
	}
}

func TestLegacyStatus_Malformed(t *testing.T) {
	for _, stat := range []string{"zzz", "12345", "x%"} {
		_, err := LegacyStatus(stat)
		if err == nil {
			t.Errorf("LegacyStatus(%q) should fail", stat)
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("LegacyStatus(%q) error should be a DecodeError, got %T", stat, err)
		}
	}
}

func TestDeviceQSType(t *testing.T) {
	tests := []struct {
		code string
		want QSType
	}{
		{"rel", TypeRelay},
		{"dim", TypeDimmer},
		{"hum", TypeHumidityTemperature},
		{"imod", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		dev := Device{ID: "@0a1b2c", Type: tt.code}
		if got := dev.QSType(); got != tt.want {
			t.Errorf("QSType of %q = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDeviceDisplayName(t *testing.T) {
	dev := Device{ID: "@0a1b2c", Name: "hall"}
	if got := dev.DisplayName(); got != "hall" {
		t.Errorf("DisplayName = %q, want hall", got)
	}
	dev.Name = ""
	if got := dev.DisplayName(); got != "@0a1b2c" {
		t.Errorf("DisplayName = %q, want @0a1b2c", got)
	}
}

func TestDeviceLevel(t *testing.T) {
	rel := Device{ID: "@0a1b2c", Type: "rel", Value: "ON"}
	level, err := rel.Level(1.0)
	if err != nil || level != 100 {
		t.Errorf("relay Level = %d, %v; want 100, nil", level, err)
	}

	// 調光器はゲートウェイのレベルを dim_adj で元のリニア値に戻す
	dim := Device{ID: "@0a1b2d", Type: "dim", Value: "7%"}
	level, err = dim.Level(2.0)
	if err != nil || level != 49 {
		t.Errorf("dimmer Level = %d, %v; want 49, nil", level, err)
	}

	bad := Device{ID: "@0a1b2e", Type: "rel", Value: "zzz"}
	if _, err := bad.Level(1.0); err == nil {
		t.Error("corrupt relay value should fail to decode")
	}
}

func TestPacketIsButton(t *testing.T) {
	for _, cmd := range ButtonCommands {
		if !(Packet{Cmd: cmd}).IsButton() {
			t.Errorf("%q should be a button command", cmd)
		}
	}
	if (Packet{Cmd: "STATUS.ACK"}).IsButton() {
		t.Error("STATUS.ACK is not a button command")
	}
}
