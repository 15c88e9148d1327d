package console

import (
	"github.com/c-bata/go-prompt"

	"qsusb-list/client"
)

// --- 補完候補生成のためのヘルパー関数群 ---
// これらは CommandTable.go 内の GetCandidatesFunc や ConsoleProcess.go の completer から呼び出される

// getDeviceCandidates はデバイスIDの候補を返す
func getDeviceCandidates(c client.QSUsbClient) []prompt.Suggest {
	devices := c.ListDevices()
	suggests := make([]prompt.Suggest, 0, len(devices))
	for _, device := range devices {
		suggests = append(suggests, prompt.Suggest{
			Text:        device.ID,
			Description: device.DisplayName(),
		})
	}
	return suggests
}

// getCommandCandidates はコマンド名の候補を返す
func getCommandCandidates() []prompt.Suggest {
	suggests := make([]prompt.Suggest, 0, len(CommandTable))
	for _, cmdDef := range CommandTable {
		suggests = append(suggests, prompt.Suggest{
			Text:        cmdDef.Name,
			Description: cmdDef.Summary,
		})
	}
	return suggests
}

// splitWords は入力行を単語に分割する補助関数
// go-prompt の Document.TextBeforeCursor と組み合わせて使う
func splitWords(line string) []string {
	// 空の入力の場合は空のスライスを返す
	if line == "" {
		return []string{}
	}

	words := make([]string, 0) // non-nil スライスとして初期化
	var word string
	inQuote := false
	lastWasSpace := true // 最初はスペースとみなす

	for _, r := range line {
		switch r {
		case ' ', '\t':
			if !inQuote {
				if !lastWasSpace && word != "" {
					words = append(words, word)
					word = ""
				}
				lastWasSpace = true
			} else { // inQuote
				word += string(r)
				lastWasSpace = false
			}
		case '"', '\'':
			inQuote = !inQuote
			lastWasSpace = false
		default:
			word += string(r)
			lastWasSpace = false
		}
	}

	if word != "" {
		words = append(words, word)
	}

	// 末尾が空白だった場合、空の単語を1つだけ追加
	if lastWasSpace {
		words = append(words, "")
	}

	return words
}
