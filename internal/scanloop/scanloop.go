// Package scanloop runs the periodic cycle loops of the simulator and
// monitor background tasks.
package scanloop

import "time"

// Run executes fn immediately, then once per interval until stopCh is
// closed. The interval timer is the only suspension point between cycles.
func Run(stopCh <-chan struct{}, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Second
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C // drain initial fire

	for {
		fn()

		timer.Reset(interval)
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
	}
}
