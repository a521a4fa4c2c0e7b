package chat

import (
	"context"
	"time"
)

// RefreshSource は再取得のタイミングを供給する。
// 既定はインターバルによるポーリングだが、サーバーからのプッシュ通知に差し替えられる。
type RefreshSource interface {
	// Refreshes はctxが終了するまで再取得のシグナルを送るチャネルを返す。
	// ctx終了時にチャネルは閉じられる。
	Refreshes(ctx context.Context, interval time.Duration) <-chan struct{}
}

// TickerSource はtime.Tickerによるポーリングのシグナルを送る。
type TickerSource struct{}

// Refreshes はintervalごとにシグナルを送る。
// 受信側の処理が間に合わない場合、シグナルは1つにまとめられる。
func (TickerSource) Refreshes(ctx context.Context, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch
}

var _ RefreshSource = TickerSource{}
