// Package stack はサーベイアプリの配信・ストレージ・コンピュート・データベース・DNS・証明書の
// あるべき状態（desired state）を組み立てる。
//
// この package は宣言を作るだけで、クラウドAPIは呼び出さない。
// 組み立てた Stack は YAML/JSON に描画するか Pulumi のスタック出力として
// 外部のプロビジョニングエンジンに渡す。ローカルのエッジランタイムも
// 同じ Distribution の定義を使ってルーティングする。
package stack
