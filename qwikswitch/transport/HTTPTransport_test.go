package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"qsusb-list/qwikswitch"
)

func TestHTTPTransport_Devices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/&device" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"id":"@0a1b2c","name":"hall","type":"rel","val":"OFF","time":"1460146507","rssi":"59%"},
			{"id":"@0ac2f0","name":"lounge","type":"dim","val":"20%","time":"1460146508","rssi":"61%"}
		]`)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	devices, err := tr.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	want := []qwikswitch.Device{
		{ID: "@0a1b2c", Name: "hall", Type: "rel", Value: "OFF", Time: "1460146507", RSSI: "59%"},
		{ID: "@0ac2f0", Name: "lounge", Type: "dim", Value: "20%", Time: "1460146508", RSSI: "61%"},
	}
	if diff := cmp.Diff(want, devices); diff != "" {
		t.Errorf("Devices mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPTransport_DevicesBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	_, err := tr.Devices(context.Background())
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("want *Error, got %T: %v", err, err)
	}
	if terr.Op != "devices" {
		t.Errorf("Op = %q, want devices", terr.Op)
	}
}

func TestHTTPTransport_Listen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/&listen" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"@0a1b2c","cmd":"STATUS.ACK","data":"ON","rssi":"52%"}`)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	packet, err := tr.Listen(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	want := &qwikswitch.Packet{ID: "@0a1b2c", Cmd: "STATUS.ACK", Data: "ON", RSSI: "52%"}
	if diff := cmp.Diff(want, packet); diff != "" {
		t.Errorf("Listen mismatch (-want +got):\n%s", diff)
	}
}

// 応答がないまま待ち時間を使い切ったら ErrTimeout（変更なしのシグナル）
func TestHTTPTransport_ListenTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr := NewHTTPTransport(server.URL, time.Second)
	_, err := tr.Listen(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("want ErrTimeout, got %v", err)
	}
}

// client.Timeout はロングポーリングを打ち切らない
func TestHTTPTransport_ListenOutlivesClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		fmt.Fprint(w, `{"id":"@0a1b2c","cmd":"STATUS.ACK","data":"ON"}`)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 20*time.Millisecond)
	packet, err := tr.Listen(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if packet.ID != "@0a1b2c" {
		t.Errorf("packet.ID = %q", packet.ID)
	}
}

// 呼び出し側のキャンセルはタイムアウトではなくそのまま伝わる
func TestHTTPTransport_ListenCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	tr := NewHTTPTransport(server.URL, time.Second)
	_, err := tr.Listen(ctx, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestHTTPTransport_Set(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/@0ac2f0=7" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"success":true,"data":"7"}`)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	data, err := tr.Set(context.Background(), "@0ac2f0", 7)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if data != "7" {
		t.Errorf("data = %q, want 7", data)
	}
}

func TestHTTPTransport_SetNoReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"data":"NO REPLY"}`)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	data, err := tr.Set(context.Background(), "@0a1b2c", 100)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if data != "NO REPLY" {
		t.Errorf("data = %q, want NO REPLY", data)
	}
}

func TestHTTPTransport_Version(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/&version" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, "1.1.8")
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, 5*time.Second)
	v, err := tr.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "1.1.8" {
		t.Errorf("version = %q, want 1.1.8", v)
	}
}

func TestNewHTTPTransport_TrimsTrailingSlash(t *testing.T) {
	tr := NewHTTPTransport("http://127.0.0.1:2020/", time.Second)
	if tr.BaseURL() != "http://127.0.0.1:2020" {
		t.Errorf("BaseURL = %q", tr.BaseURL())
	}
}
