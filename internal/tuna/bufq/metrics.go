package bufq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// spuriousWakeupsTotal counts wakeups of the worker's condition
// variable that found no event and no exit flag. The fatal threshold
// is five consecutive anomalies; this counter
// makes the condition observable as it approaches that threshold
// rather than only at the moment it becomes fatal.
var spuriousWakeupsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tuna_queue_spurious_wakeups_total",
	Help: "Cross-thread queue worker wakeups that found no event and no exit flag.",
})
