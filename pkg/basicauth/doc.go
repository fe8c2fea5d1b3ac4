// Package basicauth はエッジで実行されるBasic認証ゲートを提供する。
//
// ゲートはリクエストのパスとAuthorizationヘッダーだけを入力とし、
// 転送・404・認証チャレンジ・認証情報不正のいずれかの判定を返す純粋関数である。
// I/Oもログ出力も行わず、構築後の設定は読み取り専用のため並行呼び出しに安全。
package basicauth
