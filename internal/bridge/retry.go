package bridge

import (
	"time"

	"github.com/danmuck/bridgectl/internal/efi"
)

// retryStatus runs fn until it succeeds, allowing up to retries additional
// attempts after the first, sleeping delay between attempts. It returns the
// status of the last attempt. onFail, if set, is called after every failed
// attempt that will be retried.
func retryStatus(retries int, delay time.Duration, sleep func(time.Duration), fn func(try int) efi.Status, onFail func(try int, st efi.Status)) efi.Status {
	for try := 0; ; try++ {
		st := fn(try)
		if !st.IsError() {
			return st
		}
		if try >= retries {
			return st
		}
		if onFail != nil {
			onFail(try, st)
		}
		if delay > 0 && sleep != nil {
			sleep(delay)
		}
	}
}
