package zerolog

import (
	"github.com/rs/zerolog"
	"github.com/unkn0wn-root/memocache"
)

var _ memocache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func (z Logger) Debug(msg string, f memocache.Fields) { emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f memocache.Fields)  { emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f memocache.Fields)  { emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f memocache.Fields) { emit(z.L.Error(), msg, f) }

func emit(e *zerolog.Event, msg string, f memocache.Fields) {
	if e == nil { // level disabled
		return
	}
	for k, v := range f {
		if err, ok := v.(error); ok {
			e = e.AnErr(k, err)
			continue
		}
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
