package server

import (
	"strconv"
	"sync/atomic"
	"time"

	"hakobiya/internal/httpd"
)

// trackedStatuses は集計するステータスコード
var trackedStatuses = []int{
	httpd.StatusOK,
	httpd.StatusBadRequest,
	httpd.StatusForbidden,
	httpd.StatusNotFound,
	httpd.StatusMethodNotAllowed,
}

// counters はワーカー1つ分の統計
// 書き込むのは所有するワーカーだけで、他からは読み取りのみ
type counters struct {
	served     atomic.Uint64 // レスポンスを送れた接続数
	aborted    atomic.Uint64 // レスポンスを送れなかった接続数
	bytesSent  atomic.Uint64
	byStatus   [5]atomic.Uint64 // trackedStatuses と同じ順序
	lastAccept atomic.Int64     // UnixNano
}

func (c *counters) record(res httpd.Result) {
	c.bytesSent.Add(uint64(res.Bytes))
	if res.Status == 0 {
		c.aborted.Add(1)
		return
	}
	c.served.Add(1)
	for i, code := range trackedStatuses {
		if code == res.Status {
			c.byStatus[i].Add(1)
			return
		}
	}
}

// WorkerStats はワーカーの統計のスナップショット
type WorkerStats struct {
	ID         int               `json:"id"`
	Busy       bool              `json:"busy"`
	Served     uint64            `json:"served"`
	Aborted    uint64            `json:"aborted"`
	BytesSent  uint64            `json:"bytes_sent"`
	ByStatus   map[string]uint64 `json:"by_status"`
	LastAccept *time.Time        `json:"last_accept,omitempty"`
}

func (c *counters) snapshot(id int, busy bool) WorkerStats {
	ws := WorkerStats{
		ID:        id,
		Busy:      busy,
		Served:    c.served.Load(),
		Aborted:   c.aborted.Load(),
		BytesSent: c.bytesSent.Load(),
		ByStatus:  make(map[string]uint64, len(trackedStatuses)),
	}
	for i, code := range trackedStatuses {
		ws.ByStatus[strconv.Itoa(code)] = c.byStatus[i].Load()
	}
	if ns := c.lastAccept.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		ws.LastAccept = &t
	}
	return ws
}

// Status はサーバー全体の状態のスナップショット
type Status struct {
	State     string            `json:"state"`
	Address   string            `json:"address"`
	Root      string            `json:"root"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Served    uint64            `json:"served"`
	Aborted   uint64            `json:"aborted"`
	ByStatus  map[string]uint64 `json:"by_status"`
	Workers   []WorkerStats     `json:"workers"`
}
