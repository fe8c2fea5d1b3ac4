// Package preflight はデプロイ前の環境チェックを提供する。
//
// 呼び出し元のAWSアカウントが設定と一致すること、デプロイ成果物のバケットが
// 存在すること、アプリオリジンが共有シークレット付きで応答することを確認する。
package preflight
