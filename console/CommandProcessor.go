package console

import (
	"context"
	"fmt"

	"qsusb-list/client"
	"qsusb-list/qwikswitch"
)

// CommandProcessor は、コマンド処理を担当する構造体
type CommandProcessor struct {
	client  client.QSUsbClient
	cmdChan chan *Command
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCommandProcessor は、CommandProcessor の新しいインスタンスを作成する
func NewCommandProcessor(ctx context.Context, c client.QSUsbClient) *CommandProcessor {
	processorCtx, cancel := context.WithCancel(ctx)

	return &CommandProcessor{
		client:  c,
		cmdChan: make(chan *Command),
		done:    make(chan struct{}),
		ctx:     processorCtx,
		cancel:  cancel,
	}
}

// Start は、コマンド処理を開始する
func (p *CommandProcessor) Start() {
	go p.processCommands()
}

// Stop は、コマンド処理を停止する
func (p *CommandProcessor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}

	select {
	case <-p.done:
		return
	default:
		close(p.cmdChan)
		<-p.done // コマンド処理goroutineの終了を待つ
	}
}

// SendCommand は、コマンドを送信し、結果のエラーを返す
func (p *CommandProcessor) SendCommand(cmd *Command) error {
	p.cmdChan <- cmd
	<-cmd.Done       // コマンドの実行が完了するまで待つ
	return cmd.Error // コマンド実行中のエラーを返す
}

// processCommands は、コマンドを処理するgoroutine
func (p *CommandProcessor) processCommands() {
	defer close(p.done)

	for cmd := range p.cmdChan {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		switch cmd.Type {
		case CmdQuit:
			close(cmd.Done) // 終了コマンドの場合は即座に完了を通知して終了
			return
		case CmdDevices:
			cmd.Error = p.processDevicesCommand()
		case CmdRefresh:
			cmd.Error = p.processRefreshCommand()
		case CmdSet:
			cmd.Error = p.processSetCommand(cmd)
		case CmdListen:
			cmd.Error = p.processListenCommand(cmd)
		case CmdVersion:
			cmd.Error = p.processVersionCommand()
		case CmdHelp:
			PrintUsage(cmd.HelpTopic)
		default:
			panic("unhandled default case")
		}

		close(cmd.Done)
	}
}

func (p *CommandProcessor) processDevicesCommand() error {
	devices := p.client.ListDevices()
	if len(devices) == 0 {
		fmt.Println("デバイスがありません（refresh で取得できます）")
		return nil
	}
	p.printDevices(devices)
	return nil
}

func (p *CommandProcessor) processRefreshCommand() error {
	devices, err := p.client.RefreshDevices(p.ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d デバイスを取得しました\n", len(devices))
	p.printDevices(devices)
	return nil
}

// printDevices はデバイス一覧を生値とデコード済みの値の両方で表示する
func (p *CommandProcessor) printDevices(devices []qwikswitch.Device) {
	dimAdj := p.client.DimAdj()
	for _, device := range devices {
		fmt.Printf("%s %s [%s]\n", device.ID, device.DisplayName(), device.Type)
		fmt.Printf("  値: %s", device.Value)
		if reading, ok, err := qwikswitch.DecodeSensor(device.Type, device.Value, 1); ok && err == nil {
			fmt.Printf(" -> %s", reading)
		}
		if device.IsDimmer() {
			if level, err := device.Level(dimAdj); err == nil {
				fmt.Printf("（補正後 %d%%）", level)
			}
		}
		fmt.Println()
		if device.RSSI != "" {
			fmt.Printf("  電波強度: %s\n", device.RSSI)
		}
	}
}

func (p *CommandProcessor) processSetCommand(cmd *Command) error {
	native, err := p.client.SetLevel(p.ctx, cmd.DeviceID, cmd.Level)
	if err != nil {
		return err
	}
	fmt.Printf("%s に %d%% を設定しました（送信値 %d）\n", cmd.DeviceID, cmd.Level, native)
	return nil
}

func (p *CommandProcessor) processListenCommand(cmd *Command) error {
	controller, ok := p.client.(client.ListenerController)
	if !ok {
		// WebSocket経由。ループはサーバー側が持っている。
		fmt.Println("変更通知はサーバー側で購読しています")
		return nil
	}

	switch cmd.ListenAction {
	case "start":
		if err := controller.StartListening(); err != nil {
			return err
		}
		fmt.Println("変更通知の受信を開始しました")
	case "stop":
		controller.StopListening()
		fmt.Println("変更通知の受信を停止しました")
	case "status":
		fmt.Printf("リスナーの状態: %s\n", controller.ListenerState())
	}
	return nil
}

func (p *CommandProcessor) processVersionCommand() error {
	version, err := p.client.Version(p.ctx)
	if err != nil {
		return err
	}
	fmt.Printf("QS Mobile バージョン: %s\n", version)
	return nil
}
