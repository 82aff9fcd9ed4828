package metrics

import "expvar"

var (
	TicksTotal     = expvar.NewInt("sim_ticks_total")
	TradesTotal    = expvar.NewInt("sim_trades_total")
	NewsTotal      = expvar.NewInt("sim_news_total")
	OrdersRejected = expvar.NewInt("sim_orders_rejected")
	CircuitBreaks  = expvar.NewInt("sim_circuit_breaks")
)
