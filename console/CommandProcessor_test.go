package console

import (
	"context"
	"errors"
	"testing"

	"qsusb-list/qwikswitch"
)

// fakeClient は QSUsbClient をテスト用に実装する
type fakeClient struct {
	devices    []qwikswitch.Device
	setCalls   []string
	setErr     error
	versionErr error
	listening  bool
}

func (f *fakeClient) ListDevices() []qwikswitch.Device {
	return f.devices
}

func (f *fakeClient) RefreshDevices(ctx context.Context) ([]qwikswitch.Device, error) {
	return f.devices, nil
}

func (f *fakeClient) SetLevel(ctx context.Context, id string, level int) (int, error) {
	f.setCalls = append(f.setCalls, id)
	if f.setErr != nil {
		return 0, f.setErr
	}
	return level, nil
}

func (f *fakeClient) Version(ctx context.Context) (string, error) {
	if f.versionErr != nil {
		return "", f.versionErr
	}
	return "1.1.8", nil
}

func (f *fakeClient) DimAdj() float64 { return 1.0 }

func (f *fakeClient) OnDeviceChange(fn func(qwikswitch.Device)) {}

func (f *fakeClient) StartListening() error {
	f.listening = true
	return nil
}

func (f *fakeClient) StopListening() { f.listening = false }

func (f *fakeClient) ListenerState() string {
	if f.listening {
		return "running"
	}
	return "idle"
}

func (f *fakeClient) Close() error { return nil }

func startProcessor(t *testing.T, c *fakeClient) *CommandProcessor {
	t.Helper()
	p := NewCommandProcessor(context.Background(), c)
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func TestProcessor_SetCommand(t *testing.T) {
	c := &fakeClient{devices: []qwikswitch.Device{{ID: "@0ac2f0", Type: "dim", Value: "20%"}}}
	p := startProcessor(t, c)

	cmd, err := ParseCommand("set @0ac2f0 50")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SendCommand(cmd); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if len(c.setCalls) != 1 || c.setCalls[0] != "@0ac2f0" {
		t.Errorf("setCalls = %v", c.setCalls)
	}
}

func TestProcessor_SetCommandError(t *testing.T) {
	c := &fakeClient{setErr: errors.New("NO REPLY")}
	p := startProcessor(t, c)

	cmd, err := ParseCommand("set @0a1b2c 100")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SendCommand(cmd); err == nil {
		t.Error("expected error from SendCommand")
	}
}

func TestProcessor_ListenCommandTogglesLoop(t *testing.T) {
	c := &fakeClient{}
	p := startProcessor(t, c)

	cmd, _ := ParseCommand("listen start")
	if err := p.SendCommand(cmd); err != nil {
		t.Fatalf("listen start: %v", err)
	}
	if !c.listening {
		t.Error("StartListening was not called")
	}

	cmd, _ = ParseCommand("listen stop")
	if err := p.SendCommand(cmd); err != nil {
		t.Fatalf("listen stop: %v", err)
	}
	if c.listening {
		t.Error("StopListening was not called")
	}
}

func TestProcessor_VersionError(t *testing.T) {
	c := &fakeClient{versionErr: errors.New("connection refused")}
	p := startProcessor(t, c)

	cmd, _ := ParseCommand("version")
	if err := p.SendCommand(cmd); err == nil {
		t.Error("expected error from version command")
	}
}
