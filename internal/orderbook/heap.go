package orderbook

import (
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// sideHeap 单边价格堆
// 买方按价格降序，卖方按价格升序；同价按入簿序号（先到先得）。
// 终态订单留在堆里惰性剔除，peek/pop 时跳过。
type sideHeap struct {
	orders []*domain.Order
	isBid  bool
}

func (h *sideHeap) Len() int { return len(h.orders) }

func (h *sideHeap) Less(i, j int) bool {
	a, b := h.orders[i], h.orders[j]
	if a.Price != b.Price {
		if h.isBid {
			return a.Price > b.Price
		}
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

func (h *sideHeap) Swap(i, j int) {
	h.orders[i], h.orders[j] = h.orders[j], h.orders[i]
}

func (h *sideHeap) Push(x interface{}) {
	h.orders = append(h.orders, x.(*domain.Order))
}

func (h *sideHeap) Pop() interface{} {
	old := h.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	return o
}
