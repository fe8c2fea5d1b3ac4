package basicauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// headerAuthorization はイベントのヘッダーマップにおけるAuthorizationのキー。
// エッジランタイムはヘッダー名を小文字で渡す。
const headerAuthorization = "authorization"

// headerWWWAuthenticate はチャレンジレスポンスに付与するヘッダーのキー。
const headerWWWAuthenticate = "www-authenticate"

// HeaderValue はエッジイベントのヘッダー値。
type HeaderValue struct {
	Value string `json:"value"`
}

// Request はエッジイベント中のビューアーリクエスト。
type Request struct {
	// Method はHTTPメソッド。
	Method string `json:"method,omitempty"`
	// URI はリクエストパス。
	URI string `json:"uri"`
	// Querystring はクエリパラメータ。ゲートは参照しない。
	Querystring map[string]HeaderValue `json:"querystring,omitempty"`
	// Headers は小文字のヘッダー名から値へのマップ。
	Headers map[string]HeaderValue `json:"headers"`
}

// Response はエッジイベント中のレスポンス。ゲートが短絡する場合にも使う。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int `json:"statusCode"`
	// StatusDescription はステータスの説明文。
	StatusDescription string `json:"statusDescription,omitempty"`
	// Headers は小文字のヘッダー名から値へのマップ。
	Headers map[string]HeaderValue `json:"headers,omitempty"`
}

// Event はエッジランタイムがゲートに渡すイベント。
type Event struct {
	// Request はビューアーリクエスト。
	Request Request `json:"request"`
	// Response はレスポンス経路でのみ設定される。
	Response *Response `json:"response,omitempty"`
}

// Result はHandleEventの戻り値。RequestとResponseのどちらか一方だけが設定される。
type Result struct {
	// Request はオリジンへ転送するリクエスト。
	Request *Request
	// Response は短絡して返すレスポンス。
	Response *Response
}

// MarshalJSON は設定されている方の形だけをJSONにする。
func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Response != nil:
		return json.Marshal(r.Response)
	case r.Request != nil:
		return json.Marshal(r.Request)
	default:
		return nil, errors.New("Resultにリクエストもレスポンスも設定されていません")
	}
}

// HandleEvent はエッジイベントを評価し、転送するリクエストか短絡レスポンスを返す。
// 転送の場合、リクエストは変更せずにそのまま返す。
func HandleEvent(g *Gate, ev Event) Result {
	req := ev.Request
	authorization := ""
	if h, ok := req.Headers[headerAuthorization]; ok {
		authorization = h.Value
	}

	d := g.Evaluate(req.URI, authorization)
	if d.Forwarded() {
		return Result{Request: &req}
	}
	return Result{Response: ResponseFor(d)}
}

// ResponseFor は短絡判定に対応するレスポンスを組み立てる。転送判定ではnil。
func ResponseFor(d Decision) *Response {
	if d.Forwarded() {
		return nil
	}
	res := &Response{
		StatusCode:        d.StatusCode(),
		StatusDescription: d.StatusDescription(),
	}
	if v := d.WWWAuthenticate(); v != "" {
		res.Headers = map[string]HeaderValue{headerWWWAuthenticate: {Value: v}}
	}
	return res
}

// String はレスポンスを"401 Authentication required"の形式で返す。
func (r *Response) String() string {
	text := r.StatusDescription
	if text == "" {
		text = http.StatusText(r.StatusCode)
	}
	return strconv.Itoa(r.StatusCode) + " " + text
}
