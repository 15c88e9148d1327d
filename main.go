package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qsusb-list/client"
	"qsusb-list/config"
	"qsusb-list/console"
	"qsusb-list/qwikswitch/handler"
	"qsusb-list/qwikswitch/transport"
	"qsusb-list/server"

	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	// コマンドライン引数の解析
	args := config.ParseCommandLineArgs()

	// 設定ファイルの読み込みとコマンドライン引数による上書き
	cfg, err := config.LoadConfig(args.ConfigFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "設定ファイルの読み込みエラー: %v\n", err)
		return 1
	}
	cfg.ApplyCommandLineArgs(args)

	// ロガーのセットアップ
	logger, err := NewLogger(cfg.Log.Filename, cfg.Debug)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ログ設定エラー: %v\n", err)
		return 1
	}
	defer logger.Close()

	// ルートコンテキストの作成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // プログラム終了時にコンテキストをキャンセル

	// シグナルハンドリングの設定 (SIGINT, SIGTERM)
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		fmt.Println("\nシグナルを受信しました。終了します...")
		cancel() // シグナル受信時にコンテキストをキャンセル
	}()

	// ログローテーション用のシグナルハンドリング (SIGHUP)
	rotateSignalCh := make(chan os.Signal, 1)
	signal.Notify(rotateSignalCh, syscall.SIGHUP)
	go func() {
		for range rotateSignalCh {
			if err := logger.Rotate(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "ログローテーションエラー: %v\n", err)
			}
		}
	}()

	// クライアントの作成。ローカルモードではゲートウェイに直接接続し、
	// WebSocketクライアントモードでは稼働中のサーバーに接続する。
	// ws-both では同一プロセス内でサーバーを起動してから接続する。
	var c client.QSUsbClient
	if cfg.WebSocket.Enabled || !cfg.WebSocketClient.Enabled {
		localClient, wsServer, err := startLocal(ctx, cfg)
		if err != nil {
			fmt.Printf("%v\n", err)
			return 1
		}
		if wsServer != nil {
			defer func() { _ = wsServer.Stop() }()
		}
		defer localClient.Close()
		c = localClient
	}
	if cfg.WebSocketClient.Enabled {
		wsClient, err := client.NewWebSocketClient(ctx, cfg.WebSocketClient.Addr)
		if err != nil {
			fmt.Printf("WebSocketクライアントの作成に失敗: %v\n", err)
			return 1
		}
		if err := wsClient.Connect(); err != nil {
			fmt.Printf("WebSocketサーバーへの接続に失敗: %v\n", err)
			return 1
		}
		defer wsClient.Close()
		c = wsClient
	}

	// 標準入力が端末でなければ（サーバー専用モード）、コンソールを起動せず
	// シグナルを待つ
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		slog.Info("No terminal on stdin, running without console")
		<-ctx.Done()
		return 0
	}

	// 対話コンソールの起動。quit コマンドまたは Ctrl-D で戻る
	console.ConsoleProcess(ctx, c)
	return 0
}

// startLocal はQSUSBゲートウェイに直接接続するローカルモードを起動する。
// 設定に応じてWebSocketサーバーも起動する。
func startLocal(ctx context.Context, cfg *config.Config) (*client.LocalClient, *server.WebSocketServer, error) {
	t := transport.NewHTTPTransport(cfg.Gateway.URL, 10*time.Second)
	h, err := handler.NewQSUsbHandler(ctx, t, handler.Options{
		DimAdj:      cfg.Gateway.DimAdj,
		PollTimeout: time.Duration(cfg.Gateway.PollTimeout) * time.Second,
		RetryDelay:  time.Duration(cfg.Gateway.RetryDelay) * time.Second,
		SetRetries:  cfg.Gateway.SetRetries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ハンドラの作成に失敗: %w", err)
	}

	// 起動時にデバイス一覧を取得する。ゲートウェイに届かなくても
	// 起動は継続し、あとから refresh できる
	if devices, err := h.Devices(ctx); err != nil {
		slog.Error("Initial device list failed", "err", err)
		fmt.Printf("デバイス一覧の取得に失敗: %v\n", err)
	} else {
		slog.Info("Devices discovered", "count", len(devices))
	}

	// 変更監視リスナーを開始する
	if err := h.Listen(); err != nil {
		slog.Error("Listener start failed", "err", err)
	}

	localClient := client.NewLocalClient(h)

	// WebSocketサーバーモード
	var wsServer *server.WebSocketServer
	if cfg.WebSocket.Enabled {
		wsServer, err = server.NewWebSocketServer(ctx, cfg.WebSocket.Addr, h)
		if err != nil {
			_ = h.Close()
			return nil, nil, fmt.Errorf("WebSocketサーバーの作成に失敗: %w", err)
		}

		options := server.StartOptions{Ready: make(chan struct{})}
		if cfg.TLS.Enabled {
			options.CertFile = cfg.TLS.CertFile
			options.KeyFile = cfg.TLS.KeyFile
		}
		go func() {
			if err := wsServer.Start(options); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("WebSocket server stopped", "err", err)
			}
		}()
		<-options.Ready
		fmt.Printf("WebSocketサーバーを起動しました: %s\n", cfg.WebSocket.Addr)
	}

	return localClient, wsServer, nil
}
