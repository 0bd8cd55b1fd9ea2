package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ MetricsRecorder  = NopMetricsRecorder{}
	_ EventHandler     = EventHandlerFunc{}
	_ DispatchObserver = (*Runtime)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
