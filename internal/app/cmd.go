package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は延滞集計ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandExportLoans は貸出履歴をファイルへ書き出す。
	CommandExportLoans Command = "export-loans"
	// CommandImportLoans は貸出履歴をファイルから取り込む。
	CommandImportLoans Command = "import-loans"
	// CommandExportBooks は蔵書一覧をCSVファイルへ書き出す。
	CommandExportBooks Command = "export-books"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandHealthcheck,
		CommandExportLoans, CommandImportLoans, CommandExportBooks:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// commandArg はサブコマンドに続くi番目の引数を返す。存在しない場合は空文字を返す。
func commandArg(args []string, i int) string {
	if len(args) <= i+1 {
		return ""
	}
	return args[i+1]
}
