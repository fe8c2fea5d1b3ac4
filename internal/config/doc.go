// Package config はデプロイ時設定を読み込む。
//
// 設定は環境ごとの .env.<env> ファイルとプロセス環境変数から viper で読み込む。
// ファイルの値はプロセス環境変数より優先される。Basic認証ゲートの各リストは
// 空白区切り文字列として与えられ、添字を揃えた basicauth.Config に変換される。
package config
