package logger

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// BridgeKlog redirects client-go's internal klog output through this
// package's structured logger, so discovery/watch/informer internals
// (which log exclusively via klog) end up on the same pipeline as every
// other component instead of klog's default stderr writer.
func BridgeKlog() {
	klog.SetLogger(logr.New(&klogSink{}))
}

type klogSink struct {
	name   string
	fields map[string]string
}

func (s *klogSink) Init(logr.RuntimeInfo) {}

func (s *klogSink) Enabled(int) bool { return true }

func (s *klogSink) Info(_ int, msg string, kvs ...interface{}) {
	Log(LevelInfo, s.merge(kvs), nil, s.withName(msg))
}

func (s *klogSink) Error(err error, msg string, kvs ...interface{}) {
	Log(LevelError, s.merge(kvs), err, s.withName(msg))
}

func (s *klogSink) WithValues(kvs ...interface{}) logr.LogSink {
	return &klogSink{name: s.name, fields: s.merge(kvs)}
}

func (s *klogSink) WithName(name string) logr.LogSink {
	newName := name
	if s.name != "" {
		newName = s.name + "." + name
	}
	return &klogSink{name: newName, fields: s.fields}
}

func (s *klogSink) withName(msg string) string {
	if s.name == "" {
		return msg
	}
	return s.name + ": " + msg
}

func (s *klogSink) merge(kvs []interface{}) map[string]string {
	fields := make(map[string]string, len(s.fields)+len(kvs)/2)
	for k, v := range s.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		fields[key] = fmt.Sprintf("%v", kvs[i+1])
	}
	return fields
}
