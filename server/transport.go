package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// StartOptions は WebSocketServer の起動オプションを表す
type StartOptions struct {
	// TLS証明書ファイルのパス (TLSを使用する場合)
	CertFile string
	// TLS秘密鍵ファイルのパス (TLSを使用する場合)
	KeyFile string
	// Ready が非nilなら、待ち受け開始時に close される
	Ready chan struct{}
}

// WebSocketTransport はWebSocketサーバーのネットワーク層を抽象化するインターフェース
type WebSocketTransport interface {
	// Start はWebSocketサーバーを起動する
	Start(options StartOptions) error

	// Stop はWebSocketサーバーを停止する
	Stop() error

	// SetMessageHandler はクライアントからメッセージを受信した時に呼び出されるハンドラを設定する
	// connID はクライアント接続を識別するための一意なID
	SetMessageHandler(handler func(connID string, message []byte) error)

	// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
	SetConnectHandler(handler func(connID string) error)

	// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
	SetDisconnectHandler(handler func(connID string))

	// SendMessage は特定のクライアントにメッセージを送信する
	SendMessage(connID string, message []byte) error

	// BroadcastMessage は接続中の全クライアントにメッセージを送信する
	BroadcastMessage(message []byte) error
}

// clientConnection は1本のWebSocket接続。書き込みは mutex で直列化する。
type clientConnection struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

// DefaultWebSocketTransport は WebSocketTransport インターフェースのデフォルト実装
type DefaultWebSocketTransport struct {
	ctx               context.Context
	cancel            context.CancelFunc
	server            *http.Server
	upgrader          websocket.Upgrader
	clients           map[string]*clientConnection
	clientsMutex      sync.RWMutex
	messageHandler    func(connID string, message []byte) error
	connectHandler    func(connID string) error
	disconnectHandler func(connID string)
}

// NewDefaultWebSocketTransport は addr で待ち受けるトランスポートを作成する
func NewDefaultWebSocketTransport(ctx context.Context, addr string) *DefaultWebSocketTransport {
	transportCtx, cancel := context.WithCancel(ctx)

	transport := &DefaultWebSocketTransport{
		ctx:    transportCtx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// ローカルネットワーク内のブリッジなので全オリジンを許可
				return true
			},
		},
		clients: make(map[string]*clientConnection),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", transport.handleWebSocket)

	transport.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return transport
}

// Start はWebSocketサーバーを起動する。Serve と同様、Stop されるまで戻らない。
func (t *DefaultWebSocketTransport) Start(options StartOptions) error {
	// 先にリスナーをバインドしてから待ち受け完了を通知する
	listener, err := net.Listen("tcp", t.server.Addr)
	if err != nil {
		return err
	}
	if options.Ready != nil {
		close(options.Ready)
	}
	slog.Info("WebSocket server starting", "addr", t.server.Addr)

	if options.CertFile != "" && options.KeyFile != "" {
		slog.Info("Using TLS with certificate", "certFile", options.CertFile)
		return t.server.ServeTLS(listener, options.CertFile, options.KeyFile)
	}

	return t.server.Serve(listener)
}

// Stop はWebSocketサーバーを停止する
func (t *DefaultWebSocketTransport) Stop() error {
	slog.Info("Stopping WebSocket server", "addr", t.server.Addr)
	t.cancel()
	err := t.server.Shutdown(context.Background())
	if err != nil {
		slog.Info("Error shutting down WebSocket server", "err", err)
	}
	return err
}

func (t *DefaultWebSocketTransport) SetMessageHandler(handler func(connID string, message []byte) error) {
	t.messageHandler = handler
}

func (t *DefaultWebSocketTransport) SetConnectHandler(handler func(connID string) error) {
	t.connectHandler = handler
}

func (t *DefaultWebSocketTransport) SetDisconnectHandler(handler func(connID string)) {
	t.disconnectHandler = handler
}

// isConnectionClosedError checks if the error indicates a closed connection
func isConnectionClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) ||
		strings.Contains(err.Error(), "close sent") ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// removeClient はクライアントを登録から外し、切断ハンドラを呼ぶ。
// 既に外されていた場合は false を返す。
func (t *DefaultWebSocketTransport) removeClient(connID string) bool {
	t.clientsMutex.Lock()
	defer t.clientsMutex.Unlock()

	if _, exists := t.clients[connID]; !exists {
		return false
	}
	delete(t.clients, connID)

	// ロックの外で切断ハンドラを呼ぶ
	go func() {
		select {
		case <-t.ctx.Done():
			return
		default:
			if t.disconnectHandler != nil {
				t.disconnectHandler(connID)
			}
		}
	}()

	return true
}

// SendMessage は特定のクライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) SendMessage(connID string, message []byte) error {
	t.clientsMutex.RLock()
	client, exists := t.clients[connID]
	t.clientsMutex.RUnlock()

	if !exists {
		return fmt.Errorf("client with ID %s not found", connID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if isConnectionClosedError(err) {
			t.removeClient(connID)
		}
		return fmt.Errorf("failed to send message to client %s: %w", connID, err)
	}

	return nil
}

// BroadcastMessage は接続中の全クライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) BroadcastMessage(message []byte) error {
	t.clientsMutex.RLock()
	clients := make(map[string]*clientConnection, len(t.clients))
	for connID, client := range t.clients {
		clients[connID] = client
	}
	t.clientsMutex.RUnlock()

	var disconnectedClients []string

	for connID, client := range clients {
		client.mutex.Lock()
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if isConnectionClosedError(err) {
				disconnectedClients = append(disconnectedClients, connID)
			} else {
				slog.Error("Error broadcasting message to client", "err", err, "connID", connID)
			}
		}
		client.mutex.Unlock()
	}

	for _, connID := range disconnectedClients {
		t.removeClient(connID)
	}

	return nil
}

// handleWebSocket はWebSocket接続を処理する
func (t *DefaultWebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Error upgrading to WebSocket", "err", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	connID := fmt.Sprintf("%p", conn)

	client := &clientConnection{conn: conn}
	t.clientsMutex.Lock()
	t.clients[connID] = client
	t.clientsMutex.Unlock()

	defer func() {
		t.removeClient(connID)
	}()

	if t.connectHandler != nil {
		if err := t.connectHandler(connID); err != nil {
			slog.Error("Error in connect handler", "err", err)
			return
		}
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// 1000/1001/1005/1006 は通常の切断としてログを出さない
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				slog.Error("Unexpected WebSocket close error", "err", err)
			}
			break
		}

		if t.messageHandler != nil {
			if err := t.messageHandler(connID, message); err != nil {
				if !isConnectionClosedError(err) {
					slog.Error("Error in message handler", "err", err)
				}
			}
		}
	}
}
