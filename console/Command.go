package console

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// CommandType は、コマンドの種類を表す型
type CommandType int

const (
	CmdNone CommandType = iota
	CmdDevices
	CmdRefresh
	CmdSet
	CmdListen
	CmdVersion
	CmdHelp
	CmdQuit
)

// Command は、パース済みのコマンドを表す構造体
type Command struct {
	Type         CommandType
	DeviceID     string        // set の対象デバイス
	Level        int           // set のレベル（0〜100）
	ListenAction string        // listen のサブコマンド（start/stop/status）
	HelpTopic    *string       // help の対象コマンド
	Done         chan struct{} // コマンド実行完了を通知
	Error        error         // コマンド実行中のエラー
}

func newCommand(t CommandType) *Command {
	return &Command{Type: t, Done: make(chan struct{})}
}

// InvalidArgument は、解釈できない引数を表すエラー
type InvalidArgument struct {
	Argument string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("引数を解釈できません: %s", e.Argument)
}

// ParseCommand は1行の入力をコマンドにパースする。
// 空行は (nil, nil) を返す。
func ParseCommand(line string) (*Command, error) {
	parts := splitWords(strings.TrimSpace(line))
	if len(parts) == 0 || parts[0] == "" {
		return nil, nil
	}

	for _, cmdDef := range CommandTable {
		if cmdDef.Name == parts[0] || slices.Contains(cmdDef.Aliases, parts[0]) {
			return cmdDef.ParseFunc(parts)
		}
	}

	return nil, fmt.Errorf("不明なコマンド: %s（help で一覧を表示）", parts[0])
}
