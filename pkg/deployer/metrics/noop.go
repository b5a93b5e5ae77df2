package metrics

import "time"

type noopMetrics struct{}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordStep(string, string, time.Duration) {}
func (*noopMetrics) RecordTxSent(string)                      {}
func (*noopMetrics) RecordTxConfirmed(time.Duration)          {}
func (*noopMetrics) RecordNonce(uint64)                       {}
func (*noopMetrics) RecordStateEntries(int)                   {}
func (*noopMetrics) RecordError(string)                       {}
