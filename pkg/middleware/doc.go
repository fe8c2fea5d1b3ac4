// Package middleware はエッジランタイムのGinサーバーで使用する共通ミドルウェアを提供する。
//
// Basic認証ゲートの適用、リクエストID付与、構造化リクエストログ、
// パニックリカバリ、CORS設定を含む。
package middleware
