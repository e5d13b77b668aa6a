package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Opening %s":                             "%s を開いています",
		"Run ID %s":                              "実行ID %s",
		"Input: %s %s, %d access units":          "入力: %s %s, %d アクセスユニット",
		"Decoding completed":                     "デコードが完了しました",
		"Summary saved to %s":                    "サマリーを %s に保存しました",
		"Frames saved to %s":                     "フレームを %s に保存しました",
		"Interrupted, shutting down...":          "中断されました。シャットダウン中...",
		"Platform %s is not available, using %s": "プラットフォーム %s は利用できません。%s を使用します",

		// Pump
		"Decoding %d access units":                   "%d アクセスユニットをデコード中",
		"Decoded %d frames in %d ms":                 "%d フレームを %d ms でデコードしました",
		"Skipping access unit %d: %s":                "アクセスユニット %d をスキップします: %s",
		"%d frames were not returned by the decoder": "%d フレームがデコーダから返されませんでした",
		"Decoder returned unknown frame identity %d": "デコーダが不明なフレーム識別子 %d を返しました",

		// Decoder session (decoder component)
		"Decoder started: %s %s on %s":                   "デコーダを開始しました: %s %s (%s)",
		"Decoder output changed (%d)":                    "デコーダの出力形式が変更されました (%d)",
		"Decoder destroyed":                              "デコーダを破棄しました",
		"Error deleting format (%d)":                     "フォーマットの削除に失敗しました (%d)",
		"Error deleting codec (%d)":                      "コーデックの削除に失敗しました (%d)",
		"Error closing image reader (%s)":                "イメージリーダーのクローズに失敗しました (%s)",
		"Error returning oversized input buffer %d (%d)": "サイズ超過の入力バッファ %d の返却に失敗しました (%d)",

		// GPU context (graphics component)
		"Using graphics adapter %s (%s)":         "グラフィックスアダプタ %s (%s) を使用します",
		"Graphics backend %s unavailable (%s)":   "グラフィックスバックエンド %s は利用できません (%s)",
		"Error waiting for graphics device (%s)": "グラフィックスデバイスの待機に失敗しました (%s)",

		// GStreamer backend (gstreamer component)
		"Using GStreamer decoder %s":   "GStreamer デコーダ %s を使用します",
		"GStreamer pipeline error: %s": "GStreamer パイプラインエラー: %s",

		// Errors
		"Failed to read input: %s":        "入力の読み込みに失敗しました: %s",
		"Failed to start decoder: %s":     "デコーダの開始に失敗しました: %s",
		"Failed to allocate textures: %s": "テクスチャの確保に失敗しました: %s",
		"Decoding failed: %s":             "デコードに失敗しました: %s",
		"Failed to write summary: %s":     "サマリーの書き込みに失敗しました: %s",
	})
}
