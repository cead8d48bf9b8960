package logo

import (
	"context"
)

// Resolve drives l against p until a candidate loads or the list runs out.
// It returns the final state; the error is only set when ctx ends first.
func Resolve(ctx context.Context, l *Loader, p Prober) (State, error) {
	for {
		name, ok := l.Current()
		if !ok {
			return StateTextFallback, nil
		}
		if l.State() == StateLoaded {
			return StateLoaded, nil
		}
		if err := ctx.Err(); err != nil {
			return l.State(), err
		}

		if err := p.Probe(ctx, name); err == nil {
			l.Loaded()
			return StateLoaded, nil
		}
		if err := ctx.Err(); err != nil {
			return l.State(), err
		}
		l.Fail()
	}
}
