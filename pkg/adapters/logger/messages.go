package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Estimator level messages (info/debug)
		"Estimating milestones over %d nodes":      "%d ノードのマイルストーンを推定中",
		"Rough fully-settled estimate: %.1f ms":    "完全settled の概算推定: %.1f ms",

		// Simulator component
		"Starting %s run over %d nodes":            "%s 実行を開始します (%d ノード)",
		"Clock advanced %.3f ms to %.3f ms":        "時計を %.3f ms 進めて %.3f ms になりました",
		"Node %s (%s) started at %.3f ms":          "ノード %s (%s) が %.3f ms に開始しました",
		"Node %s (%s) completed at %.3f ms":        "ノード %s (%s) が %.3f ms に完了しました",
		"Run finished at %.3f ms":                  "実行が %.3f ms で終了しました",

		// Errors
		"simulation stalled: no node can make progress": "シミュレーションが停止しました: 進行できるノードがありません",
	})
}
