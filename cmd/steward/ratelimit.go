package main

import (
	"strconv"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
)

// Per-caller request limiter. Idle callers age out of the LRU and start over with a fresh window.
type callerLimiter struct {
	perSecond int64
	lk        sync.Mutex
	limiters  *expirable.LRU[string, *slidingwindow.Limiter]
}

func newCallerLimiter(perSecond int64) *callerLimiter {
	return &callerLimiter{
		perSecond: perSecond,
		limiters:  expirable.NewLRU[string, *slidingwindow.Limiter](100_000, nil, 10*time.Minute),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func (cl *callerLimiter) Allow(key string) bool {
	cl.lk.Lock()
	lim, ok := cl.limiters.Get(key)
	if !ok {
		lim, _ = slidingwindow.NewLimiter(time.Second, cl.perSecond, windowFunc)
		cl.limiters.Add(key, lim)
	}
	cl.lk.Unlock()
	return lim.Allow()
}

// Authenticated callers are limited by user ID, anonymous ones by client IP.
func callerKey(c echo.Context) string {
	if actor := actorOf(c); actor.UserID > 0 {
		return "user/" + strconv.FormatInt(actor.UserID, 10)
	}
	return "ip/" + c.RealIP()
}

func (srv *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if srv.limiter != nil && !srv.limiter.Allow(callerKey(c)) {
			requestsLimited.Inc()
			return errTooManyRequests
		}
		return next(c)
	}
}
