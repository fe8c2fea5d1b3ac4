package localstack

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/nao1215/survey-edge/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

var (
	// ErrUnknownTable はテーブルが存在しないことを表す。
	ErrUnknownTable = errors.New("テーブルが存在しません")
	// ErrUnknownIndex はインデックスが存在しないことを表す。
	ErrUnknownIndex = errors.New("インデックスが存在しません")
	// ErrInvalidKey は項目のキー属性が不正であることを表す。
	ErrInvalidKey = errors.New("キー属性が不正です")
	// ErrItemNotFound は項目が存在しないことを表す。
	ErrItemNotFound = errors.New("項目が見つかりません")
)

// Item はテーブルの項目。
type Item map[string]any

// Store はSQLite上のローカルテーブル。
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.RWMutex
	tables map[string]stack.Table
}

// Open はSQLiteデータベースを開く。dsnには":memory:"またはファイルパスを指定する。
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別になり、ファイルDBも書き込みは直列化されるため1本に絞る
	db.SetMaxOpenConns(1)

	return &Store{db: db, logger: logger, tables: make(map[string]stack.Table)}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Provision はテーブルとインデックスを作成し、定義をカタログに記録する。
// 既に存在するテーブルとインデックスはそのまま残す。
func (s *Store) Provision(ctx context.Context, tables []stack.Table) error {
	if err := migration.Run(ctx, s.db, migrationsFS, "migrations", s.logger); err != nil {
		return fmt.Errorf("カタログの初期化に失敗: %w", err)
	}

	var stmts []string
	for _, t := range tables {
		stmts = append(stmts, tableDDL(t)...)
	}
	if err := migration.Ensure(ctx, s.db, stmts...); err != nil {
		return fmt.Errorf("テーブルの作成に失敗: %w", err)
	}

	for _, t := range tables {
		def, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("テーブル定義のシリアライズに失敗: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO local_tables (name, logical_id, definition) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				logical_id = excluded.logical_id,
				definition = excluded.definition,
				updated_at = datetime('now')
		`, t.Name, t.ID, string(def)); err != nil {
			return fmt.Errorf("テーブル %s の記録に失敗: %w", t.Name, err)
		}
		s.setTable(t)
		s.logger.Info("テーブルを作成しました",
			zap.String("table", t.Name),
			zap.Int("indexes", len(t.Indexes)),
		)
	}
	return nil
}

// Load はカタログに記録済みのテーブル定義を読み込む。
// 別プロセスで作成したテーブルを操作する場合に使う。
func (s *Store) Load(ctx context.Context) error {
	if err := migration.Run(ctx, s.db, migrationsFS, "migrations", s.logger); err != nil {
		return fmt.Errorf("カタログの初期化に失敗: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT definition FROM local_tables")
	if err != nil {
		return fmt.Errorf("テーブル定義の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return fmt.Errorf("テーブル定義の読み取りに失敗: %w", err)
		}
		var t stack.Table
		if err := json.Unmarshal([]byte(def), &t); err != nil {
			return fmt.Errorf("テーブル定義のデシリアライズに失敗: %w", err)
		}
		s.setTable(t)
	}
	return rows.Err()
}

// Tables はカタログに記録されたテーブル名を名前順に返す。
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM local_tables ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("テーブル一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("テーブル名の読み取りに失敗: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Put は項目を保存する。同じキーの項目は置き換える。
func (s *Store) Put(ctx context.Context, table string, item Item) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	pk, err := keyValue(item, t.PartitionKey)
	if err != nil {
		return err
	}
	sk, err := keyValue(item, t.SortKey)
	if err != nil {
		return err
	}
	if err := validateIndexKeys(t, item); err != nil {
		return err
	}

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("項目のシリアライズに失敗: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (pk, sk, item) VALUES (?, ?, ?)
		ON CONFLICT(pk, sk) DO UPDATE SET item = excluded.item
	`, quoteIdent(t.Name))
	if _, err := s.db.ExecContext(ctx, query, pk, sk, string(body)); err != nil {
		return fmt.Errorf("項目の保存に失敗: %w", err)
	}
	return nil
}

// Get はキーで項目を取得する。
func (s *Store) Get(ctx context.Context, table, pk, sk string) (Item, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	var body string
	query := fmt.Sprintf("SELECT item FROM %s WHERE pk = ? AND sk = ?", quoteIdent(t.Name))
	if err := s.db.QueryRowContext(ctx, query, pk, sk).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s[%s, %s]", ErrItemNotFound, t.Name, pk, sk)
		}
		return nil, fmt.Errorf("項目の取得に失敗: %w", err)
	}
	return decodeItem(body)
}

// Delete はキーで項目を削除する。存在しない場合も成功とする。
func (s *Store) Delete(ctx context.Context, table, pk, sk string) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE pk = ? AND sk = ?", quoteIdent(t.Name))
	if _, err := s.db.ExecContext(ctx, query, pk, sk); err != nil {
		return fmt.Errorf("項目の削除に失敗: %w", err)
	}
	return nil
}

// Query はパーティションキーが一致する項目をソートキー順に返す。
// indexが空の場合はテーブル本体を、それ以外は指定インデックスを検索する。
// インデックス検索では射影された属性のみを返し、インデックスのキーを持たない項目は含まない。
func (s *Store) Query(ctx context.Context, table, index, pk string) ([]Item, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	if index == "" {
		query := fmt.Sprintf("SELECT item FROM %s WHERE pk = ? ORDER BY sk", quoteIdent(t.Name))
		return s.queryItems(ctx, query, pk, nil)
	}

	idx, ok := t.Index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownIndex, t.Name, index)
	}
	query := fmt.Sprintf("SELECT item FROM %s WHERE %s = ? ORDER BY %s, sk",
		quoteIdent(t.Name), jsonPath(idx.PartitionKey.Name), jsonPath(idx.SortKey.Name))
	return s.queryItems(ctx, query, pk, projection(t, idx))
}

// queryItems はクエリ結果の項目を返す。keepがnilでない場合は含まれる属性のみ残す。
func (s *Store) queryItems(ctx context.Context, query, pk string, keep []string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, pk)
	if err != nil {
		return nil, fmt.Errorf("項目の検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("項目の読み取りに失敗: %w", err)
		}
		item, err := decodeItem(body)
		if err != nil {
			return nil, err
		}
		if keep != nil {
			for k := range item {
				if !slices.Contains(keep, k) {
					delete(item, k)
				}
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// table は名前でテーブルを探す。
func (s *Store) table(name string) (stack.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return stack.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// setTable はテーブル定義を登録する。
func (s *Store) setTable(t stack.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = t
}

// tableDDL はテーブルとインデックスを作成するDDLを返す。
func tableDDL(t stack.Table) []string {
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		pk TEXT NOT NULL,
		sk TEXT NOT NULL,
		item TEXT NOT NULL,
		PRIMARY KEY (pk, sk)
	)`, quoteIdent(t.Name))}
	for _, idx := range t.Indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s, %s)",
			quoteIdent(idx.Name), quoteIdent(t.Name), jsonPath(idx.PartitionKey.Name), jsonPath(idx.SortKey.Name)))
	}
	return stmts
}

// projection はインデックス検索で返す属性を返す。
// テーブルとインデックスのキーは常に含み、INCLUDEの場合は非キー属性を加える。
func projection(t stack.Table, idx stack.Index) []string {
	if idx.ProjectionType == "ALL" {
		return nil
	}
	keep := []string{t.PartitionKey.Name, t.SortKey.Name, idx.PartitionKey.Name, idx.SortKey.Name}
	if idx.ProjectionType == "INCLUDE" {
		keep = append(keep, idx.NonKeyAttributes...)
	}
	return keep
}

// keyValue は項目からキー属性の値を取り出す。キーは空でない文字列でなければならない。
func keyValue(item Item, key stack.KeyAttribute) (string, error) {
	v, ok := item[key.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s がありません", ErrInvalidKey, key.Name)
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", fmt.Errorf("%w: %s は空でない文字列でなければなりません", ErrInvalidKey, key.Name)
	}
	return str, nil
}

// validateIndexKeys は項目が持つインデックスのキー属性を検証する。
// インデックスのキー属性が無い項目はそのインデックスに含まれないだけで、エラーにはしない。
func validateIndexKeys(t stack.Table, item Item) error {
	for _, idx := range t.Indexes {
		for _, key := range []stack.KeyAttribute{idx.PartitionKey, idx.SortKey} {
			if key.Name == "" {
				continue
			}
			if _, ok := item[key.Name]; !ok {
				continue
			}
			if _, err := keyValue(item, key); err != nil {
				return fmt.Errorf("%s: %w", idx.Name, err)
			}
		}
	}
	return nil
}

// decodeItem はJSONの項目を復元する。
func decodeItem(body string) (Item, error) {
	var item Item
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return nil, fmt.Errorf("項目のデシリアライズに失敗: %w", err)
	}
	return item, nil
}

// quoteIdent はSQLの識別子を引用符で囲む。
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// jsonPath は項目の属性を取り出す式を返す。
func jsonPath(attr string) string {
	return "json_extract(item, '$." + strings.ReplaceAll(attr, `'`, `''`) + "')"
}
