// Package edge はコンテンツ配信層をローカルで再現するエッジランタイムを提供する。
//
// 配信のビヘイビア（パスパターン・許可メソッド・オリジン）を評価順に適用し、
// ゲートが有効なビヘイビアではBasic認証ゲートをリクエスト前フックとして実行する。
// アプリオリジンへは共有シークレットヘッダーを付与して中継し、
// 静的アセットとストレージキャッシュはS3互換オブジェクトストレージから配信する。
package edge
