// Package httpclient はオリジンとのHTTP通信を行うクライアントを提供する。
//
// エッジランタイムがアプリオリジンへリクエストを中継する際と、
// デプロイ前チェックがオリジンの疎通を確認する際に使用する。
// オリジン保護用の共有シークレットヘッダーは固定ヘッダーとして全リクエストに付与する。
package httpclient
