// Package main provides localization for the texdecode CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Input":   "入力",
		"Decoder": "デコーダ",
		"Output":  "出力",
		"Logging": "ログ",

		// Root command
		"Decode H.264/HEVC video into GPU texture slices": "H.264/HEVC 動画を GPU テクスチャのスライスにデコード",
		"texdecode feeds compressed video to the platform hardware decoder and copies every decoded picture into a slice of a texture array.": "texdecodeは圧縮動画をプラットフォームのハードウェアデコーダに渡し、デコードされた各ピクチャをテクスチャ配列のスライスにコピーします。",

		// Decode command
		"Decode an MP4 file into texture slices":                 "MP4ファイルをテクスチャスライスにデコード",
		"YAML configuration file":                                "YAML設定ファイル",
		"Override the detected codec (h264, hevc)":               "検出されたコーデックを上書き (h264, hevc)",
		"Override the detected video width":                      "検出された動画の幅を上書き",
		"Override the detected video height":                     "検出された動画の高さを上書き",
		"Decode at most this many access units (0 = all)":        "デコードするアクセスユニットの最大数 (0 = すべて)",
		"Decoder platform (auto, android, gstreamer, simulated)": "デコーダプラットフォーム (auto, android, gstreamer, simulated)",
		"GStreamer decoder element (default: first available)":   "GStreamer デコーダ要素 (デフォルト: 最初に利用可能なもの)",
		"Number of texture array slices":                         "テクスチャ配列のスライス数",
		"Input buffer wait in milliseconds":                      "入力バッファの待ち時間 (ミリ秒)",
		"Output buffer wait in milliseconds":                     "出力バッファの待ち時間 (ミリ秒)",
		"Directory for decoded frame images":                     "デコードしたフレーム画像の保存先ディレクトリ",
		"Frame image format (png, jpeg)":                         "フレーム画像の形式 (png, jpeg)",
		"Draw the frame identity on saved images":                "保存する画像にフレーム識別子を描画",
		"Scale saved images down to this width":                  "保存する画像をこの幅まで縮小",
		"Write a run summary to this path (.md or .yaml)":        "実行サマリーをこのパスに書き出す (.md または .yaml)",
		"Log level (debug, info, warn, error)":                   "ログレベル (debug, info, warn, error)",
		"Suppress all log output":                                "すべてのログ出力を抑制",
		"An input file is required":                              "入力ファイルが必要です",

		// Inspect command
		"Show the codec and size of an MP4 file": "MP4ファイルのコーデックとサイズを表示",
		"Codec: %s (%s)":                         "コーデック: %s (%s)",
		"Size: %s":                               "サイズ: %s",
		"Timescale: %d":                          "タイムスケール: %d",
		"Fragmented: %t":                         "フラグメント化: %t",
		"Parameter sets: %d bytes":               "パラメータセット: %d バイト",

		// Version command
		"Show version information": "バージョン情報を表示",
		"texdecode version %s":     "texdecode バージョン %s",

		// Summary
		"Decode Summary":          "デコードサマリー",
		"Results":                 "結果",
		"File":                    "ファイル",
		"Codec":                   "コーデック",
		"Video Size":              "動画サイズ",
		"Container":               "コンテナ",
		"Fragmented MP4":          "フラグメント化MP4",
		"Progressive MP4":         "プログレッシブMP4",
		"Access Units":            "アクセスユニット数",
		"Stream Size":             "ストリームサイズ",
		"Platform":                "プラットフォーム",
		"Run ID":                  "実行ID",
		"Texture Layers":          "テクスチャレイヤー数",
		"Push Timeout":            "入力タイムアウト",
		"Pull Timeout":            "出力タイムアウト",
		"Options":                 "オプション",
		"Frames Pushed":           "投入フレーム数",
		"Frames Decoded":          "デコード済みフレーム数",
		"Skipped (too large)":     "スキップ (サイズ超過)",
		"Reordered":               "並べ替え",
		"Missing":                 "欠落",
		"Elapsed":                 "経過時間",
		"Throughput":              "スループット",
		"Directory":               "ディレクトリ",
		"Format":                  "形式",
		"Frames Saved":            "保存フレーム数",
		"Generated at":            "生成日時",
		"2006-01-02 15:04:05 MST": "2006年01月02日 15:04:05 MST",
	})
}
