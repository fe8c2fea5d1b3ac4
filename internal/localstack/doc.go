// Package localstack は宣言されたキーバリューテーブルをSQLite上に再現する。
//
// ローカル開発用に、パーティションキーとソートキーを持つテーブルと
// INCLUDE射影のグローバルセカンダリインデックスを提供する。
// 項目はJSONとして保存し、インデックスはjson_extractの式インデックスで表現する。
package localstack
