package service

import "time"

// Clock supplies wall-clock time so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }
