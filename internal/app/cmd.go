package app

import (
	"fmt"
	"strings"
)

// Command はlocalbiteバイナリのサブコマンドを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker はいいね数の定期再計算ワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandReconcile はいいね数の再計算を1回だけ実行して終了する。
	CommandReconcile Command = "reconcile"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージ用のヘルスチェックを実行する。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。
var commands = []Command{CommandServe, CommandWorker, CommandReconcile, CommandMigrate, CommandHealthcheck}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。
// 未知のサブコマンドは、APIサーバーが意図せず重複起動しないようエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := Command(strings.ToLower(strings.TrimSpace(args[0])))
	for _, c := range commands {
		if c == name {
			return c, nil
		}
	}

	valid := make([]string, len(commands))
	for i, c := range commands {
		valid[i] = string(c)
	}
	return "", fmt.Errorf("unknown command %q (valid: %s)", args[0], strings.Join(valid, ", "))
}
