package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hitoshi/guestdesk/internal/model"
)

// FilePersister はIdentityをJSONファイルに保存する。
// トークンを含むため、ファイルは所有者のみ読み書き可能（0600）で作成する。
type FilePersister struct {
	path string
}

// NewFilePersister は新しいFilePersisterを生成する。
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load はファイルからIdentityを読み込む。ファイルがなければ (nil, nil)。
func (p *FilePersister) Load(_ context.Context) (*model.Identity, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	var id model.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("セッションファイルのパースに失敗しました: %w", err)
	}
	return &id, nil
}

// Save はIdentityをファイルに書き込む。一時ファイルに書いてから置き換える。
func (p *FilePersister) Save(_ context.Context, id model.Identity) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗しました: %w", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗しました: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("セッションファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("セッションファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

// Clear はファイルを削除する。存在しない場合は何もしない。
func (p *FilePersister) Clear(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
	}
	return nil
}

var _ Persister = (*FilePersister)(nil)
