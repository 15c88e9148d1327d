package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"qsusb-list/qwikswitch"
)

// HTTPTransport は Transport のHTTP実装。
// QSUSBゲートウェイはローカルネットワーク上の小さなHTTPサーバーなので
// コネクションプールは標準の http.Client に任せる。
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport は指定のベースURL（例: http://127.0.0.1:2020）への
// トランスポートを作成する。timeout は一回限りの呼び出しに適用され、
// Listen には適用されない（ロングポーリングは自前の期限を持つ）。
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL はベースURLを返す
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

func (t *HTTPTransport) Devices(ctx context.Context) ([]qwikswitch.Device, error) {
	url := fmt.Sprintf(qwikswitch.URLDevices, t.baseURL)
	var devices []qwikswitch.Device
	if err := t.getJSON(ctx, t.client, url, &devices); err != nil {
		return nil, &Error{Op: "devices", URL: url, Err: err}
	}
	return devices, nil
}

func (t *HTTPTransport) Listen(ctx context.Context, timeout time.Duration) (*qwikswitch.Packet, error) {
	url := fmt.Sprintf(qwikswitch.URLListen, t.baseURL)

	// ロングポーリングは一回限りの呼び出しより長く待つので、
	// client.Timeout ではなくコンテキストの期限で打ち切る。
	listenCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Timeout: 0 でクライアント側のタイムアウトを外したクローン
	listenClient := &http.Client{Transport: t.client.Transport}

	var packet qwikswitch.Packet
	err := t.getJSON(listenCtx, listenClient, url, &packet)
	if err != nil {
		// 呼び出し側のキャンセルはそのまま返す
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// 期限切れは「変更なし」のシグナル
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &Error{Op: "listen", URL: url, Err: err}
	}
	return &packet, nil
}

func (t *HTTPTransport) Set(ctx context.Context, id string, value int) (string, error) {
	url := fmt.Sprintf(qwikswitch.URLSet, t.baseURL, id, value)
	var ack struct {
		Success bool   `json:"success"`
		Data    string `json:"data"`
	}
	if err := t.getJSON(ctx, t.client, url, &ack); err != nil {
		return "", &Error{Op: "set", URL: url, Err: err}
	}
	return ack.Data, nil
}

func (t *HTTPTransport) Version(ctx context.Context) (string, error) {
	url := fmt.Sprintf(qwikswitch.URLVersion, t.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{Op: "version", URL: url, Err: err}
	}
	res, err := t.client.Do(req)
	if err != nil {
		return "", &Error{Op: "version", URL: url, Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return "", &Error{Op: "version", URL: url, Err: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &Error{Op: "version", URL: url, Err: err}
	}
	return string(body), nil
}

// getJSON はGETしてJSONをデコードする（原典の get_json に相当）
func (t *HTTPTransport) getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	slog.Debug("GET", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		// url.Error に包まれた期限切れを呼び出し側で判別できるようにする
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(v)
}
