package stats

import (
	"bufio"
	"context"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const gigabyte = 1 << 30

// EnableRuntimeStatistics starts a goroutine that periodically logs memory
// usage and goroutine count of the daemon. When the context is canceled the
// default prometheus metrics are dumped to the given path.
func EnableRuntimeStatistics(
	ctx context.Context, interval time.Duration, dumpPath string,
) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logMemoryStatistics()
				logNumOfRoutines()
			case <-ctx.Done():
				if err := dumpPrometheusDefaults(dumpPath); err != nil {
					log.WithError(err).Warn("unable to dump runtime metrics")
				}
				return
			}
		}
	}()
}

func toGigabytes(bytes uint64) float64 {
	return float64(bytes) / gigabyte
}

func logMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Infof(
		"Total allocated: %.3fGB, Heap allocated: %.3fGB, "+
			"Allocated objects count: %v, Freed objects count: %v",
		toGigabytes(memStats.TotalAlloc),
		toGigabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

func logNumOfRoutines() {
	log.Infof("Num of go routines: %v", runtime.NumGoroutine())
}

// dumpPrometheusDefaults writes the default prometheus metrics to a file.
func dumpPrometheusDefaults(path string) error {
	file, err := os.OpenFile(
		path,
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}
	return writer.Flush()
}
