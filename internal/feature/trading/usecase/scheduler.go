package usecase

import (
	"container/heap"
	"time"
)

// expiry は満期キューの1要素です。
type expiry struct {
	at time.Time
	id string
}

// expiryHeap は (at, id) 昇順の最小ヒープです。
type expiryHeap []expiry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) { *h = append(*h, x.(expiry)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// schedule は満期キューです。ロックは呼び出し側が保持します。
type schedule struct {
	h expiryHeap
}

func (s *schedule) add(id string, at time.Time) {
	heap.Push(&s.h, expiry{at: at, id: id})
}

// next は最も早い満期を返します。
func (s *schedule) next() (time.Time, bool) {
	if len(s.h) == 0 {
		return time.Time{}, false
	}
	return s.h[0].at, true
}

// popDue は now 以前に満期を迎えたIDを (at, id) 順に取り出します。
func (s *schedule) popDue(now time.Time) []string {
	var ids []string
	for len(s.h) > 0 && !s.h[0].at.After(now) {
		ids = append(ids, heap.Pop(&s.h).(expiry).id)
	}
	return ids
}

func (s *schedule) len() int { return len(s.h) }
