package logger

import "fmt"

// Adapter can be used as an adapter for logging from other frameworks/libraries.
// Just keep adding the required methods to make it function.
type Adapter Logger

// Log satisfies the dd-trace-go logger interface.
func (log *Adapter) Log(msg string) {
	if log == nil {
		return
	}
	(*Logger)(log).Info(msg)
}

// Errorf, Warnf and Debugf satisfy resty.Logger.
func (log *Adapter) Errorf(format string, v ...any) {
	if log == nil {
		return
	}
	(*Logger)(log).Error(fmt.Sprintf(format, v...))
}

func (log *Adapter) Warnf(format string, v ...any) {
	if log == nil {
		return
	}
	(*Logger)(log).Warn(fmt.Sprintf(format, v...))
}

func (log *Adapter) Debugf(format string, v ...any) {
	if log == nil {
		return
	}
	(*Logger)(log).Debug(fmt.Sprintf(format, v...))
}
