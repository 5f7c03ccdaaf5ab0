package util

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterOrGet registers c with reg and returns it. When a collector with
// the same descriptor is already registered, that collector is returned
// instead, so components created more than once per process share their
// metrics. A nil reg leaves c unregistered.
func RegisterOrGet[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(T)
		}
		panic(err)
	}
	return c
}
