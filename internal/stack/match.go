package stack

// MatchPattern はCloudFront形式のパスパターンにパスが一致するかを返す。
// "*"は0文字以上の任意の文字列（"/"を含む）、"?"は任意の1文字に一致する。大文字小文字は区別する。
func MatchPattern(pattern, path string) bool {
	p, s := 0, 0
	star, mark := -1, 0
	for s < len(path) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, s
			p++
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == path[s]):
			p++
			s++
		case star >= 0:
			p = star + 1
			mark++
			s = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// Resolve はパスに適用するビヘイビアを返す。
// 追加ビヘイビアを定義順に評価し、どれにも一致しなければデフォルトビヘイビアを返す。
func (d Distribution) Resolve(path string) Behavior {
	for _, b := range d.Behaviors {
		if MatchPattern(b.PathPattern, path) {
			return b
		}
	}
	return d.DefaultBehavior
}
