package appshell

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MemoryCookieStore is an in-memory CookieStore used by headless
// engines and tests. Cookies are partitioned by scope; expired entries
// are rejected on read and swept periodically by a cron schedule.
type MemoryCookieStore struct {
	mu     sync.Mutex
	scopes map[string]map[string]Cookie
	cron   *cron.Cron
}

// NewMemoryCookieStore creates a store. schedule is a cron expression
// for the expiry sweep (for example "@every 1m"); an empty schedule
// disables sweeping.
func NewMemoryCookieStore(schedule string) (*MemoryCookieStore, error) {
	s := &MemoryCookieStore{
		scopes: make(map[string]map[string]Cookie),
	}
	if schedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(schedule, s.purgeExpired); err != nil {
			return nil, err
		}
		s.cron.Start()
	}
	return s, nil
}

// Set stores a cookie. Cookies already past their expiry are rejected.
func (s *MemoryCookieStore) Set(scope string, cookie Cookie) bool {
	if cookie.Name == "" {
		return false
	}
	if !cookie.Expires.IsZero() && cookie.Expires.Before(time.Now()) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.scopes[scope]
	if !ok {
		bucket = make(map[string]Cookie)
		s.scopes[scope] = bucket
	}
	bucket[cookieKey(cookie)] = cookie
	return true
}

// Get retrieves a cookie by scope, domain, path and name.
func (s *MemoryCookieStore) Get(scope, domain, path, name string) (Cookie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.scopes[scope]
	if !ok {
		return Cookie{}, false
	}
	cookie, ok := bucket[domain+"|"+path+"|"+name]
	if !ok {
		return Cookie{}, false
	}
	if !cookie.Expires.IsZero() && cookie.Expires.Before(time.Now()) {
		return Cookie{}, false
	}
	return cookie, true
}

// Len reports the number of stored cookies across all scopes.
func (s *MemoryCookieStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, bucket := range s.scopes {
		total += len(bucket)
	}
	return total
}

// purgeExpired drops cookies past their expiry.
func (s *MemoryCookieStore) purgeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for scope, bucket := range s.scopes {
		for key, cookie := range bucket {
			if !cookie.Expires.IsZero() && cookie.Expires.Before(now) {
				delete(bucket, key)
			}
		}
		if len(bucket) == 0 {
			delete(s.scopes, scope)
		}
	}
}

// Close stops the expiry sweep.
func (s *MemoryCookieStore) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func cookieKey(cookie Cookie) string {
	return cookie.Domain + "|" + cookie.Path + "|" + cookie.Name
}
