package basicauth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// schemePrefix はBasic認証ヘッダーのスキームトークン。
	schemePrefix = "Basic "
	// exactMatchSuffix は完全一致パターンを示す末尾文字。
	exactMatchSuffix = "$"
	// serviceSeparator はサービス定義内の代替パスの区切り文字。
	serviceSeparator = ":"
	// credentialSeparator はユーザー名とパスワードの区切り文字。
	credentialSeparator = ":"
)

// Config はゲートの設定。デプロイ時に一度だけ構築され、以後変更されない。
// Services, Realms, Usernames, Passwords は同じ添字同士が対応する。
// ゲートは長さの一致を検証しない。
type Config struct {
	// PublicPaths は認証不要のパスパターン。末尾が"$"なら完全一致、それ以外は前方一致。
	PublicPaths []string
	// Services は":"区切りの代替パスプレフィックス群のリスト。
	Services []string
	// Realms は各サービスのレルム。
	Realms []string
	// Usernames は各サービスのユーザー名。
	Usernames []string
	// Passwords は各サービスのパスワード。
	Passwords []string
}

// Kind は判定の種類を表す。
type Kind int

const (
	// KindForward はリクエストをそのままオリジンへ転送することを表す。
	KindForward Kind = iota
	// KindNotFound はどのサービスにも該当しないことを表す。
	KindNotFound
	// KindChallenge は認証情報が無いため401チャレンジを返すことを表す。
	KindChallenge
	// KindInvalidCredentials は認証情報が一致しないことを表す。
	KindInvalidCredentials
)

// String は判定種類の名前を返す。メトリクスのラベルに使う。
func (k Kind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindNotFound:
		return "not_found"
	case KindChallenge:
		return "challenge"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Decision はゲートの判定結果。
type Decision struct {
	// Kind は判定の種類。
	Kind Kind
	// ServiceIndex は解決されたサービスの添字。公開パスまたは未解決の場合は-1。
	ServiceIndex int
	// Realm はチャレンジに使うレルム。チャレンジ系の判定でのみ設定される。
	Realm string
}

// Forwarded はリクエストを転送すべき判定かどうかを返す。
func (d Decision) Forwarded() bool {
	return d.Kind == KindForward
}

// StatusCode は判定に対応するHTTPステータスコードを返す。転送の場合は0。
func (d Decision) StatusCode() int {
	switch d.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindChallenge, KindInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return 0
	}
}

// StatusDescription は判定に対応するステータス説明文を返す。
func (d Decision) StatusDescription() string {
	switch d.Kind {
	case KindNotFound:
		return "Service not found"
	case KindChallenge:
		return "Authentication required"
	case KindInvalidCredentials:
		return "Invalid credentials"
	default:
		return ""
	}
}

// WWWAuthenticate はチャレンジ用のWWW-Authenticateヘッダー値を返す。
// チャレンジ系以外の判定では空文字列。
func (d Decision) WWWAuthenticate() string {
	if d.Kind != KindChallenge && d.Kind != KindInvalidCredentials {
		return ""
	}
	return `Basic realm="` + d.Realm + `"`
}

// Gate はBasic認証ゲート。
type Gate struct {
	publicPaths []publicPattern
	services    [][]string
	realms      []string
	usernames   []string
	passwords   []string
}

// publicPattern は前処理済みの公開パスパターン。
type publicPattern struct {
	value string
	exact bool
}

// New は設定からゲートを生成する。
// 設定のスライスはコピーされるため、呼び出し側がその後変更しても影響しない。
func New(cfg Config) *Gate {
	g := &Gate{
		realms:    append([]string(nil), cfg.Realms...),
		usernames: append([]string(nil), cfg.Usernames...),
		passwords: append([]string(nil), cfg.Passwords...),
	}
	for _, p := range cfg.PublicPaths {
		if v, ok := strings.CutSuffix(p, exactMatchSuffix); ok {
			g.publicPaths = append(g.publicPaths, publicPattern{value: v, exact: true})
			continue
		}
		g.publicPaths = append(g.publicPaths, publicPattern{value: p})
	}
	for _, s := range cfg.Services {
		g.services = append(g.services, strings.Split(s, serviceSeparator))
	}
	return g
}

// Evaluate はパスとAuthorizationヘッダー値から判定を返す。
// authorizationが空文字列の場合はヘッダー無しとして扱う。
func (g *Gate) Evaluate(path, authorization string) Decision {
	if g.isPublic(path) {
		return Decision{Kind: KindForward, ServiceIndex: -1}
	}

	idx := g.resolveService(path)
	if idx < 0 {
		return Decision{Kind: KindNotFound, ServiceIndex: -1}
	}
	realm := at(g.realms, idx)

	encoded, ok := strings.CutPrefix(authorization, schemePrefix)
	if !ok {
		return Decision{Kind: KindChallenge, ServiceIndex: idx, Realm: realm}
	}

	username, password, ok := decodeCredentials(encoded)
	if !ok || !g.verify(idx, username, password) {
		return Decision{Kind: KindInvalidCredentials, ServiceIndex: idx, Realm: realm}
	}
	return Decision{Kind: KindForward, ServiceIndex: idx}
}

// isPublic はパスが公開パスパターンのいずれかに一致するかを返す。
func (g *Gate) isPublic(path string) bool {
	for _, p := range g.publicPaths {
		if p.exact {
			if path == p.value {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, p.value) {
			return true
		}
	}
	return false
}

// resolveService はパスに一致する最後のサービスの添字を返す。一致しなければ-1。
// 空の代替パスは一致とみなさない。
func (g *Gate) resolveService(path string) int {
	idx := -1
	for i, alternatives := range g.services {
		for _, prefix := range alternatives {
			if prefix != "" && strings.HasPrefix(path, prefix) {
				idx = i
				break
			}
		}
	}
	return idx
}

// verify は添字idxのサービスの認証情報と一致するかを返す。
// 設定が欠けている添字では常にfalse。
func (g *Gate) verify(idx int, username, password string) bool {
	if idx >= len(g.usernames) || idx >= len(g.passwords) {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.usernames[idx])) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.passwords[idx])) == 1
	return userOK && passOK
}

// decodeCredentials はbase64エンコードされた"username:password"を分解する。
// パスワードは最初の":"以降すべて。
func decodeCredentials(encoded string) (username, password string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	text := string(raw)
	if !utf8.ValidString(text) {
		return "", "", false
	}
	return strings.Cut(text, credentialSeparator)
}

// at は範囲外の場合に空文字列を返すインデックスアクセス。
func at(list []string, i int) string {
	if i < 0 || i >= len(list) {
		return ""
	}
	return list[i]
}
