package simulator

import "github.com/user/loadsim/pkg/ports"

// noopLogger keeps the engine free of nil checks when no logger is
// injected.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...interface{}) {}
func (noopLogger) Info(msg string, args ...interface{})  {}
func (noopLogger) Warn(msg string, args ...interface{})  {}
func (noopLogger) Error(msg string, args ...interface{}) {}
func (noopLogger) WithComponent(component string) ports.Logger {
	return noopLogger{}
}
