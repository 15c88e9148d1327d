package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"

	"qsusb-list/client"
)

// CommandDefinition はコマンドの定義を保持する構造体
type CommandDefinition struct {
	Name              string                                                        // コマンド名
	Aliases           []string                                                      // 別名（例: devicesとlistなど）
	Summary           string                                                        // 概要（短い説明）
	Syntax            string                                                        // 構文
	Description       []string                                                      // 詳細説明（各行が1つの要素）
	ParseFunc         func(parts []string) (*Command, error)                        // パース関数
	GetCandidatesFunc func(c client.QSUsbClient, d prompt.Document) []prompt.Suggest // 補完候補生成関数
}

// CommandTable はコマンドの定義を格納するテーブル
var CommandTable = []CommandDefinition{
	{
		Name:    "devices",
		Aliases: []string{"list"},
		Summary: "キャッシュ済みデバイスの一覧表示",
		Syntax:  "devices, list",
		Description: []string{
			"手元のキャッシュにあるQwikSwitchデバイスを一覧表示します。",
			"ゲートウェイから取り直すには refresh を使ってください。",
		},
		ParseFunc: func(parts []string) (*Command, error) {
			if len(parts) > 1 {
				return nil, &InvalidArgument{Argument: parts[1]}
			}
			return newCommand(CmdDevices), nil
		},
	},
	{
		Name:    "refresh",
		Summary: "ゲートウェイからデバイス一覧を取り直す",
		Syntax:  "refresh",
		Description: []string{
			"QSUSBゲートウェイの /&device を読み直してキャッシュを更新し、",
			"一覧を表示します。",
		},
		ParseFunc: func(parts []string) (*Command, error) {
			if len(parts) > 1 {
				return nil, &InvalidArgument{Argument: parts[1]}
			}
			return newCommand(CmdRefresh), nil
		},
	},
	{
		Name:    "set",
		Summary: "デバイスのレベルを設定",
		Syntax:  "set deviceId level",
		Description: []string{
			"deviceId: 対象デバイスのID（例: @0ac2f0）",
			"level: 0〜100 のパーセント値",
			"調光器には設定済みの調光カーブが適用されます。",
			"リレーは 0 で OFF、それ以外で ON になります。",
			"例: set @0ac2f0 50",
		},
		GetCandidatesFunc: func(c client.QSUsbClient, d prompt.Document) []prompt.Suggest {
			words := splitWords(d.TextBeforeCursor())
			if len(words) <= 2 {
				return getDeviceCandidates(c)
			}
			return []prompt.Suggest{}
		},
		ParseFunc: func(parts []string) (*Command, error) {
			if len(parts) != 3 {
				return nil, fmt.Errorf("set コマンドにはデバイスIDとレベルが必要です")
			}
			level, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("レベルには整数を指定してください: %s", parts[2])
			}
			if level < 0 || level > 100 {
				return nil, fmt.Errorf("レベルは 0〜100 で指定してください: %d", level)
			}

			cmd := newCommand(CmdSet)
			cmd.DeviceID = parts[1]
			cmd.Level = level
			return cmd, nil
		},
	},
	{
		Name:    "listen",
		Summary: "変更通知ループの制御",
		Syntax:  "listen [start|stop|status]",
		Description: []string{
			"start: /&listen のポーリングループを開始します",
			"stop: ループを停止します",
			"status: 現在の状態を表示します（引数なしと同じ）",
			"WebSocket経由で接続している場合、ループはサーバー側で動いています。",
		},
		GetCandidatesFunc: func(c client.QSUsbClient, d prompt.Document) []prompt.Suggest {
			words := splitWords(d.TextBeforeCursor())
			if len(words) == 2 {
				return []prompt.Suggest{
					{Text: "start", Description: "ポーリングループを開始"},
					{Text: "stop", Description: "ポーリングループを停止"},
					{Text: "status", Description: "状態を表示"},
				}
			}
			return []prompt.Suggest{}
		},
		ParseFunc: func(parts []string) (*Command, error) {
			cmd := newCommand(CmdListen)
			cmd.ListenAction = "status"

			if len(parts) > 2 {
				return nil, &InvalidArgument{Argument: parts[2]}
			}
			if len(parts) == 2 {
				switch parts[1] {
				case "start", "stop", "status":
					cmd.ListenAction = parts[1]
				default:
					return nil, fmt.Errorf("listen コマンドの引数は start, stop, status のいずれかです")
				}
			}
			return cmd, nil
		},
	},
	{
		Name:    "version",
		Summary: "QS Mobile のバージョンを表示",
		Syntax:  "version",
		ParseFunc: func(parts []string) (*Command, error) {
			return newCommand(CmdVersion), nil
		},
	},
	{
		Name:    "help",
		Summary: "ヘルプを表示",
		Syntax:  "help [command]",
		Description: []string{
			"引数なし: 全コマンドの概要を表示",
			"command: 指定したコマンドの詳細を表示",
		},
		ParseFunc: func(parts []string) (*Command, error) {
			cmd := newCommand(CmdHelp)
			if len(parts) > 1 {
				cmd.HelpTopic = &parts[1]
			}
			return cmd, nil
		},
	},
	{
		Name:    "quit",
		Aliases: []string{"exit"},
		Summary: "終了",
		Syntax:  "quit",
		Description: []string{
			"プログラムを終了します。",
		},
		ParseFunc: func(parts []string) (*Command, error) {
			return newCommand(CmdQuit), nil
		},
	},
}

// PrintCommandSummary は、全コマンドの簡単なサマリーを表示する
func PrintCommandSummary() {
	fmt.Println("コマンド:")

	for _, cmd := range CommandTable {
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = fmt.Sprintf(", %s", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Printf("  %-10s: %s\n", cmd.Name+aliases, cmd.Summary)
	}

	fmt.Println("")
	fmt.Println("詳細は 'help <コマンド名>' で確認できます。例: 'help set'")
}

// PrintCommandDetail は、特定のコマンドの詳細情報を表示する
func PrintCommandDetail(commandName string) {
	for _, cmd := range CommandTable {
		if cmd.Name == commandName || slices.Contains(cmd.Aliases, commandName) {
			fmt.Printf("  %s: %s\n", cmd.Name, cmd.Summary)
			fmt.Printf("  構文: %s\n", cmd.Syntax)

			if len(cmd.Description) > 0 {
				fmt.Println("  詳細:")
				for _, line := range cmd.Description {
					fmt.Printf("    %s\n", line)
				}
			}
			return
		}
	}

	fmt.Printf("不明なコマンド: %s\n", commandName)
	fmt.Println("利用可能なコマンドを確認するには 'help' を入力してください")
}

// コマンドの使用方法を表示する
func PrintUsage(commandName *string) {
	if commandName == nil {
		fmt.Println("QwikSwitch QSUSB クライアント")
		PrintCommandSummary()
	} else {
		PrintCommandDetail(*commandName)
	}
}
