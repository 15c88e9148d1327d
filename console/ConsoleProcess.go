package console

import (
	"context"
	"fmt"
	"os"

	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"
	"golang.org/x/term"

	"qsusb-list/client"
)

// ConsoleProcess は対話コンソールを開始し、quit が入力されるまで戻らない
func ConsoleProcess(ctx context.Context, c client.QSUsbClient) {
	// コマンドプロセッサの作成と開始
	processor := NewCommandProcessor(ctx, c)
	processor.Start()

	// go-prompt は異常終了時に端末を raw モードのまま残すことがあるため、
	// 元の端末状態を保存しておき終了時に復元する
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if state, err := term.GetState(fd); err == nil {
			defer func() { _ = term.Restore(fd, state) }()
		}
	}

	// コマンドの使用方法を表示
	fmt.Println("help for usage, quit to exit")

	completer := func(d prompt.Document) []prompt.Suggest {
		return completeInput(c, d)
	}

	var history []string
	for {
		select {
		case <-ctx.Done():
			processor.Stop()
			return
		default:
		}

		line := prompt.Input("> ", completer, prompt.OptionHistory(history))

		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Printf("エラー: %v\n", err)
			continue
		}
		if cmd == nil {
			continue
		}
		history = append(history, line)

		if cmd.Type == CmdQuit {
			// quitコマンドはチャネル経由で送らず、直接終了処理を行う
			close(cmd.Done)
			processor.Stop()
			break
		}

		if err := processor.SendCommand(cmd); err != nil {
			fmt.Printf("エラー: %v\n", err)
		}
	}
}

// completeInput は入力位置に応じた補完候補を返す
func completeInput(c client.QSUsbClient, d prompt.Document) []prompt.Suggest {
	words := splitWords(d.TextBeforeCursor())
	if len(words) <= 1 {
		// コマンド名の補完
		return prompt.FilterHasPrefix(getCommandCandidates(), d.GetWordBeforeCursor(), true)
	}

	// コマンド引数の補完
	for _, cmdDef := range CommandTable {
		if cmdDef.Name == words[0] || slices.Contains(cmdDef.Aliases, words[0]) {
			if cmdDef.GetCandidatesFunc != nil {
				return prompt.FilterHasPrefix(cmdDef.GetCandidatesFunc(c, d), d.GetWordBeforeCursor(), true)
			}
			break
		}
	}
	return []prompt.Suggest{}
}
