package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drive",
		Subsystem: "purge",
		Name:      "files_purged_total",
		Help:      "Total number of flagged files physically removed",
	})
	blobDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drive",
		Subsystem: "purge",
		Name:      "blob_delete_failures_total",
		Help:      "Total number of blob deletions that failed during purge",
	})
	purgeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drive",
		Subsystem: "purge",
		Name:      "record_delete_failures_total",
		Help:      "Total number of file records that could not be purged",
	})
)
